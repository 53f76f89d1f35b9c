// Package server implements the HTTP server that exposes the routing engine
// via a REST API: questions in, routed answers out, plus dataset management,
// health/readiness probes, and Prometheus metrics.
// The server is started by the `dataq serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/54b3r/dataq-go/internal/logging"
	"github.com/54b3r/dataq-go/internal/router"
)

// New constructs a Server from the provided routing engine and config.
func New(engine *router.Engine, cfg *Config) (*Server, error) {
	if engine == nil {
		return nil, fmt.Errorf("server: engine must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Generation against a slow model backend can take a while.
		cfg.WriteTimeout = 2 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = prometheus.DefaultRegisterer
	}

	s := &Server{
		asker:   engine,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.Metrics),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not configured, authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	mux := http.NewServeMux()
	mux.Handle("POST /api/ask", s.protect(http.HandlerFunc(s.handleAsk)))
	mux.Handle("GET /api/datasets", s.protect(http.HandlerFunc(s.handleDatasets)))
	mux.Handle("POST /api/datasets/load", s.protect(http.HandlerFunc(s.handleLoad)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", metricsHandler(cfg.Metrics))

	handler := requestLogger(s.log, rl.middleware(s.metrics.httpMiddleware(mux)))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      handler,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// metricsHandler serves the /metrics endpoint from the configured registry.
// When the registerer is also a Gatherer (the usual case), its metrics are
// served; otherwise the process default is used.
func metricsHandler(reg prometheus.Registerer) http.Handler {
	if g, ok := reg.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		fmt.Printf("dataq server listening on http://%s\n", s.httpServer.Addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// protect wraps a handler with Bearer token authentication.
func (s *Server) protect(next http.Handler) http.Handler {
	return authMiddleware(s.cfg.APIKey, next)
}

// handleAsk handles POST /api/ask. It routes the question through the engine
// and returns the answer with its routing decision and provenance.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	start := time.Now()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Question == "" {
		http.Error(w, "question is required", http.StatusBadRequest)
		return
	}

	mode, err := router.ParseMode(req.Mode)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	a, err := s.asker.Ask(r.Context(), router.Request{
		DatasetID: req.Dataset,
		Question:  req.Question,
		Mode:      mode,
	})
	if err != nil {
		s.metrics.askRequestsTotal.WithLabelValues(outcomeError).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcomeError).Observe(time.Since(start).Seconds())
		log.Error("ask failed", slog.Any("error", err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	outcome := outcomeOK
	if a.Degraded {
		outcome = outcomeDegraded
	}
	s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	s.metrics.routingDecisionsTotal.WithLabelValues(string(a.Decision.Strategy), a.Decision.Reason).Inc()

	chunks := make([]string, 0, len(a.Retrieved))
	for _, res := range a.Retrieved {
		chunks = append(chunks, res.Chunk.ID)
	}

	writeJSON(w, log, http.StatusOK, askResponse{
		ID:       a.ID,
		Answer:   a.Text,
		Decision: a.Decision,
		SQL:      a.SQL,
		Chunks:   chunks,
		Degraded: a.Degraded,
	})
}

// handleDatasets handles GET /api/datasets, listing all indexed dataset IDs.
func (s *Server) handleDatasets(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	ids := s.asker.Datasets()
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, log, http.StatusOK, datasetsResponse{Datasets: ids})
}

// handleLoad handles POST /api/datasets/load. It loads a server-local CSV
// file, registers it under the requested ID, and publishes its index.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req loadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Dataset == "" || req.Path == "" {
		http.Error(w, "dataset and path are required", http.StatusBadRequest)
		return
	}

	ds, err := s.asker.LoadCSV(r.Context(), req.Dataset, req.Path)
	if err != nil {
		log.Error("dataset load failed",
			slog.String("dataset", req.Dataset),
			slog.Any("error", err),
		)
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	cols := make([]string, 0, len(ds.Columns))
	for _, c := range ds.Columns {
		cols = append(cols, c.Name)
	}
	writeJSON(w, log, http.StatusOK, loadResponse{
		Dataset: req.Dataset,
		Rows:    ds.RowCount(),
		Columns: cols,
	})
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

// writeJSON encodes v as the response body with the given status.
func writeJSON(w http.ResponseWriter, log *slog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode error", slog.Any("error", err))
	}
}
