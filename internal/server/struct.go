package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/dataq-go/internal/router"
	"github.com/54b3r/dataq-go/internal/tabular"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Metrics is the Prometheus registry the server registers its metrics
	// against. If nil, the default registerer is used. Tests inject a fresh
	// registry to stay hermetic.
	Metrics prometheus.Registerer
}

// asker is the interface the HTTP handlers call to route questions and manage
// datasets. *router.Engine satisfies it; tests inject a fake.
type asker interface {
	// Ask routes and answers one question.
	Ask(ctx context.Context, req router.Request) (*router.Answer, error)
	// Datasets returns the IDs of all indexed datasets, sorted.
	Datasets() []string
	// LoadCSV registers a CSV dataset under the given ID and publishes its index.
	LoadCSV(ctx context.Context, id, path string) (*tabular.Dataset, error)
}

// Server is the HTTP server that exposes the routing engine.
type Server struct {
	// asker answers all questions and manages datasets; set to the routing
	// engine in production, overridden by a fake in tests.
	asker asker
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds this server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// Question is the user's natural language question.
	Question string `json:"question"`
	// Dataset is the ID of the dataset to ask against.
	Dataset string `json:"dataset"`
	// Mode optionally forces the routing strategy: "auto", "rag", or
	// "traditional". Empty means auto.
	Mode string `json:"mode,omitempty"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// ID is the answer UUID, usable to look the answer up in the history.
	ID string `json:"id"`
	// Answer is the answer text.
	Answer string `json:"answer"`
	// Decision explains how the question was routed.
	Decision router.Decision `json:"decision"`
	// SQL is the generated statement, if the schema path ran.
	SQL string `json:"sql,omitempty"`
	// Chunks are the retrieved chunk IDs, if the RAG path ran.
	Chunks []string `json:"chunks,omitempty"`
	// Degraded is true when a collaborator failed and the answer fell back.
	Degraded bool `json:"degraded"`
}

// datasetsResponse is the JSON response for GET /api/datasets.
type datasetsResponse struct {
	// Datasets is the sorted list of indexed dataset IDs.
	Datasets []string `json:"datasets"`
}

// loadRequest is the JSON body for POST /api/datasets/load.
type loadRequest struct {
	// Dataset is the ID to register the CSV under.
	Dataset string `json:"dataset"`
	// Path is the server-local path of the CSV file to load.
	Path string `json:"path"`
}

// loadResponse is the JSON response for POST /api/datasets/load.
type loadResponse struct {
	// Dataset is the registered dataset ID.
	Dataset string `json:"dataset"`
	// Rows is the number of data rows loaded.
	Rows int `json:"rows"`
	// Columns is the list of column names.
	Columns []string `json:"columns"`
}
