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

	"github.com/JakeFAU/synthetic-monitor/internal/config"
	"github.com/JakeFAU/synthetic-monitor/internal/metrics"
	"github.com/JakeFAU/synthetic-monitor/internal/monitor"
	"github.com/JakeFAU/synthetic-monitor/internal/validate"
)

const maxBodyBytes = 1 << 20

// Trigger runs one invocation over a URL list.
type Trigger interface {
	Run(ctx context.Context, base monitor.RawConfig, urls any) ([]monitor.Report, error)
}

// Server wires HTTP handlers to the monitor runner.
type Server struct {
	router  chi.Router
	trigger Trigger
	cfg     config.Config
	logger  *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(trigger Trigger, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		trigger: trigger,
		cfg:     cfg,
		logger:  logger,
	}
	timeout := time.Duration(cfg.Server.RequestTimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(timeout))
	if cfg.Auth.Enabled {
		r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Post("/monitor", s.runMonitor)
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

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	if s.trigger == nil {
		s.writeError(w, http.StatusServiceUnavailable, "monitor not configured")
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type monitorRequest struct {
	URLs []string `json:"urls"`
}

type runReport struct {
	RunID         string `json:"run_id"`
	URL           string `json:"url"`
	Outcome       string `json:"outcome"`
	StatusCode    *int   `json:"status_code,omitempty"`
	DocumentsSent int    `json:"documents_sent"`
}

type monitorResponse struct {
	Runs    int         `json:"runs"`
	Reports []runReport `json:"reports"`
}

func (s *Server) runMonitor(w http.ResponseWriter, r *http.Request) {
	var req monitorRequest
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "unreadable body")
		return
	}
	if len(body) > 0 {
		if err := json.Unmarshal(body, &req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid JSON")
			return
		}
	}
	urls := req.URLs
	if len(urls) == 0 {
		urls = s.cfg.Monitor.URLList()
	}

	reports, err := s.trigger.Run(r.Context(), s.cfg.Monitor.Raw(), urls)
	if err != nil {
		status := http.StatusInternalServerError
		switch {
		case errors.Is(err, validate.ErrType), errors.Is(err, validate.ErrValue):
			status = http.StatusBadRequest
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
			status = http.StatusRequestTimeout
		}
		s.writeError(w, status, err.Error())
		return
	}

	resp := monitorResponse{Runs: len(reports), Reports: make([]runReport, 0, len(reports))}
	for _, rep := range reports {
		resp.Reports = append(resp.Reports, runReport{
			RunID:         rep.RunID,
			URL:           rep.URL,
			Outcome:       rep.Outcome.LoadState.String(),
			StatusCode:    rep.Outcome.StatusCode,
			DocumentsSent: rep.DocumentsSent,
		})
	}
	s.writeJSON(w, http.StatusOK, resp)
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

func timeoutMiddleware(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.TimeoutHandler(next, d, "request timed out")
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
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
				_, _ = io.WriteString(w, `{"error":"unauthorized"}`+"\n")
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
