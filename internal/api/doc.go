// Package api hosts the HTTP trigger for the watcher. Notable routes:
//   - POST /v1/invoke runs one polling invocation and answers with the fixed
//     completion signal.
//   - GET /v1/last reports the outcome of the most recent invocation.
//   - GET /healthz / readyz for probes.
//   - GET /metrics for Prometheus scraping.
package api
