package api

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/homework-watcher/internal/homework"
	"github.com/JakeFAU/homework-watcher/internal/metrics"
	"github.com/JakeFAU/homework-watcher/internal/pipeline"
)

// Invoker runs one polling invocation.
type Invoker interface {
	Run(ctx context.Context) pipeline.Result
}

// ReadyFunc reports whether a downstream dependency is usable.
type ReadyFunc func(ctx context.Context) error

// Options tunes the server.
type Options struct {
	// APIKey guards the /v1 routes when non-empty.
	APIKey string
	// InvokeTimeout bounds one invocation triggered over HTTP.
	InvokeTimeout time.Duration
	Ready         []ReadyFunc
}

// Server wires HTTP handlers to the invocation runner.
type Server struct {
	router  chi.Router
	invoker Invoker
	opts    Options
	logger  *zap.Logger

	// invokeMu serialises invocations: the pipeline assumes one run at a time.
	invokeMu sync.Mutex

	lastMu sync.RWMutex
	last   *lastInvocation
}

type lastInvocation struct {
	InvocationID string    `json:"invocation_id"`
	Stage        string    `json:"stage"`
	ErrorKind    string    `json:"error_kind"`
	Error        string    `json:"error,omitempty"`
	Items        int       `json:"items"`
	Changed      int       `json:"changed"`
	Notified     int       `json:"notified"`
	ErrorSent    bool      `json:"error_sent"`
	FinishedAt   time.Time `json:"finished_at"`
}

// NewServer constructs a Server with middleware and routes.
func NewServer(invoker Invoker, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.InvokeTimeout <= 0 {
		opts.InvokeTimeout = 5 * time.Minute
	}
	s := &Server{
		invoker: invoker,
		opts:    opts,
		logger:  logger.Named("api"),
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Handle("/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/invoke", s.invoke)
		r.Get("/last", s.lastResult)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()
	for _, check := range s.opts.Ready {
		if err := check(ctx); err != nil {
			s.logger.Warn("readiness check failed", zap.Error(err))
			s.writeError(w, http.StatusServiceUnavailable, "not ready")
			return
		}
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	s.invokeMu.Lock()
	defer s.invokeMu.Unlock()

	// A client that disconnects must not abort an invocation halfway.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(r.Context()), s.opts.InvokeTimeout)
	defer cancel()
	res := s.invoker.Run(ctx)
	s.remember(res)
	s.writeJSON(w, res.StatusCode, res)
}

func (s *Server) lastResult(w http.ResponseWriter, _ *http.Request) {
	s.lastMu.RLock()
	last := s.last
	s.lastMu.RUnlock()
	if last == nil {
		s.writeError(w, http.StatusNotFound, "no invocation yet")
		return
	}
	s.writeJSON(w, http.StatusOK, last)
}

func (s *Server) remember(res pipeline.Result) {
	last := &lastInvocation{
		InvocationID: res.InvocationID,
		Stage:        res.Stage.String(),
		ErrorKind:    homework.Kind(res.Err),
		Items:        res.Items,
		Changed:      res.Changed,
		Notified:     res.Notified,
		ErrorSent:    res.ErrorSent,
		FinishedAt:   time.Now().UTC(),
	}
	if res.Err != nil {
		last.Error = res.Err.Error()
	}
	s.lastMu.Lock()
	s.last = last
	s.lastMu.Unlock()
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		reqID, _ := r.Context().Value(requestIDKey{}).(string)
		s.logger.Info("request completed",
			zap.String("request_id", reqID),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				s.writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if h, ok := rw.ResponseWriter.(http.Hijacker); ok {
		conn, buf, err := h.Hijack()
		if err != nil {
			return nil, nil, fmt.Errorf("hijack connection: %w", err)
		}
		return conn, buf, nil
	}
	return nil, nil, errors.New("hijacker not supported")
}

type requestIDKey struct{}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusForbidden)
				_, _ = w.Write([]byte(`{"error":"unauthorized"}` + "\n"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("write JSON failed", zap.Error(err))
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, msg string) {
	s.writeJSON(w, status, map[string]string{"error": msg})
}
