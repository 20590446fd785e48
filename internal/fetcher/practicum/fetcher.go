// Package practicum implements the remote state fetcher for the homework review API.
package practicum

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/homework"
)

// Config controls the API client.
type Config struct {
	Endpoint string
	Token    string
	Timeout  time.Duration
}

// Fetcher issues one GET per call against the review API.
type Fetcher struct {
	cfg    Config
	client *http.Client
	logger *zap.Logger
}

// New builds a Fetcher. A nil client gets a default one bounded by cfg.Timeout.
func New(cfg Config, client *http.Client, logger *zap.Logger) (*Fetcher, error) {
	if strings.TrimSpace(cfg.Endpoint) == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("parse endpoint: %w", err)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Fetcher{cfg: cfg, client: client, logger: logger}, nil
}

// Fetch requests the review statuses updated since cursor (a unix timestamp, 0 for all)
// and returns the decoded JSON payload without interpreting it.
func (f *Fetcher) Fetch(ctx context.Context, cursor int64) (any, error) {
	u, err := url.Parse(f.cfg.Endpoint)
	if err != nil {
		return nil, &homework.RequestError{Err: err}
	}
	q := u.Query()
	q.Set("from_date", strconv.FormatInt(cursor, 10))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, &homework.RequestError{Err: err}
	}
	req.Header.Set("Authorization", "OAuth "+f.cfg.Token)
	req.Header.Set("Accept", "application/json")

	f.logger.Info("requesting review statuses", zap.Int64("from_date", cursor))
	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &homework.RequestError{Err: err}
	}
	defer func() {
		if cerr := resp.Body.Close(); cerr != nil {
			f.logger.Warn("close response body", zap.Error(cerr))
		}
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, &homework.ResponseCodeError{Code: resp.StatusCode, Endpoint: f.cfg.Endpoint}
	}

	dec := json.NewDecoder(resp.Body)
	dec.UseNumber()
	var payload any
	if err := dec.Decode(&payload); err != nil {
		return nil, &homework.RequestError{Err: fmt.Errorf("decode response: %w", err)}
	}
	f.logger.Debug("review statuses received")
	return payload, nil
}
