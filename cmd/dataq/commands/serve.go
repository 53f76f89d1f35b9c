package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/spf13/cobra"

	"github.com/54b3r/dataq-go/internal/logging"
	"github.com/54b3r/dataq-go/internal/server"
	"github.com/54b3r/dataq-go/internal/tracing"
)

// NewServeCmd constructs the `dataq serve` command, which starts the HTTP
// server exposing the routing engine as a REST API.
func NewServeCmd() *cobra.Command {
	var host string
	var port int
	var csvPaths []string
	var withSchema bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the DataQ HTTP server",
		Long: `Start the DataQ HTTP server on localhost.

The server exposes POST /api/ask for routed question answering, dataset
management endpoints, health and readiness probes, and Prometheus metrics
on /metrics. Datasets passed with --csv are loaded and indexed at startup;
more can be loaded at runtime via POST /api/datasets/load.

Set DATAQ_API_KEY to require Bearer authentication on the API routes.

Examples:
  dataq serve --csv sales.csv
  DATAQ_DB=shop.db dataq serve --schema --port 9090
  MODEL_PROVIDER=openai dataq serve --csv sales.csv`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", os.Getenv("MODEL_PROVIDER")))

			// Setup Langfuse tracing — opt-in, no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			deps, err := buildEngine(ctx, log, true)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer deps.Close()

			mirror, err := buildMirror(ctx, log)
			if err != nil {
				log.Warn("qdrant mirror unavailable", slog.Any("error", err))
				mirror = nil
			}
			if mirror != nil {
				defer mirror.Close()
			}

			for _, path := range csvPaths {
				id := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
				if _, err := deps.engine.LoadCSV(ctx, id, path); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				if mirror != nil {
					if ix, ok := deps.registry.Get(id); ok {
						if err := mirror.Mirror(ctx, ix); err != nil {
							log.Warn("qdrant mirror failed", slog.String("dataset", id), slog.Any("error", err))
						}
					}
				}
			}
			if withSchema {
				if deps.intro == nil {
					return fmt.Errorf("serve: --schema requires DATAQ_DB to be set")
				}
				if _, err := deps.engine.LoadSchema(ctx, "db"); err != nil {
					return fmt.Errorf("serve: %w", err)
				}
			}

			var pingers []server.Pinger
			if deps.history != nil {
				pingers = append(pingers, server.NewHistoryPinger(deps.history))
			}
			if mirror != nil {
				pingers = append(pingers, server.NewQdrantPinger(mirror))
			}
			if deps.embedder != nil {
				pingers = append(pingers, server.NewEmbedderPinger(deps.embedder, deps.embedderName))
			}

			srv, err := server.New(deps.engine, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("DATAQ_API_KEY"),
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")
	cmd.Flags().StringSliceVar(&csvPaths, "csv", nil, "CSV files to load and index at startup")
	cmd.Flags().BoolVar(&withSchema, "schema", false, "Index the schema of the database at DATAQ_DB at startup")

	return cmd
}
