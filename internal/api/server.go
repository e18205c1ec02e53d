package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/JakeFAU/job-listing-crawler/internal/crawler"
	"github.com/JakeFAU/job-listing-crawler/internal/guard"
	"github.com/JakeFAU/job-listing-crawler/internal/metrics"
)

// Runner starts crawls in the background and reports the latest result.
type Runner interface {
	Start(ctx context.Context, keywords []string) error
	Latest() (crawler.Report, bool)
	Busy() bool
}

// Options configures the Server.
type Options struct {
	// Keywords are crawled when a trigger request names none.
	Keywords []string
	// APIKey, when set, is required in the X-API-Key header of /v1 routes.
	APIKey string
	// BaseContext bounds background crawls. Nil means context.Background.
	BaseContext context.Context
}

// Server wires HTTP handlers to the crawl pipeline.
type Server struct {
	router chi.Router
	runner Runner
	opts   Options
	logger *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(runner Runner, opts Options, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BaseContext == nil {
		opts.BaseContext = context.Background()
	}
	metrics.Init()
	s := &Server{runner: runner, opts: opts, logger: logger}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)

	r.Get("/healthz", s.healthz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		if opts.APIKey != "" {
			r.Use(apiKeyMiddleware(opts.APIKey))
		}
		r.Post("/crawls", s.triggerCrawl)
		r.Get("/crawls/latest", s.latestCrawl)
	})

	s.router = r
	return s
}

// Handler returns the Router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "crawling": s.runner.Busy()})
}

type crawlRequest struct {
	Keywords []string `json:"keywords"`
}

func (s *Server) triggerCrawl(w http.ResponseWriter, r *http.Request) {
	var req crawlRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	keywords := crawler.NormalizeKeywords(req.Keywords)
	if len(keywords) == 0 {
		keywords = crawler.NormalizeKeywords(s.opts.Keywords)
	}
	if len(keywords) == 0 {
		writeError(w, http.StatusBadRequest, "no keywords given and none configured")
		return
	}

	err := s.runner.Start(s.opts.BaseContext, keywords)
	switch {
	case errors.Is(err, guard.ErrBusy):
		writeError(w, http.StatusConflict, "a crawl is already running")
		return
	case err != nil:
		s.logger.Error("start crawl failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "failed to start crawl")
		return
	}
	s.logger.Info("crawl triggered", zap.Strings("keywords", keywords))
	writeJSON(w, http.StatusAccepted, map[string]any{"status": "started", "keywords": keywords})
}

func (s *Server) latestCrawl(w http.ResponseWriter, _ *http.Request) {
	report, ok := s.runner.Latest()
	if !ok {
		writeError(w, http.StatusNotFound, "no crawl has completed yet")
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type requestIDKey struct{}

// RequestID returns the request id assigned by the server, if any.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func loggingMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(ww, r)
			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.status),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", RequestID(r.Context())),
			)
		})
	}
}

func recoverMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered", zap.Any("panic", rec), zap.String("path", r.URL.Path))
					writeError(w, http.StatusInternalServerError, "internal server error")
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Header.Get("X-API-Key") != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (rw *statusWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
