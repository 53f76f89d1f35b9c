package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/dataq-go/internal/embedder"
	"github.com/54b3r/dataq-go/internal/generator"
	"github.com/54b3r/dataq-go/internal/provider"
	"github.com/54b3r/dataq-go/internal/retrieval"
	"github.com/54b3r/dataq-go/internal/router"
	"github.com/54b3r/dataq-go/internal/schema"
	"github.com/54b3r/dataq-go/internal/store"
)

// engineDeps bundles the routing engine with the resources it owns so
// commands can close them on exit.
type engineDeps struct {
	// engine is the fully wired routing engine.
	engine *router.Engine
	// registry holds the published indexes.
	registry *retrieval.Registry
	// history is the answer trail; nil when disabled.
	history *store.History
	// intro is the relational backend; nil when no database is configured.
	intro *schema.Introspector
	// embedder is the embedding client; nil when indexing runs in keyword mode.
	embedder retrieval.Embedder
	// embedderName labels the embedding backend in readiness probes.
	embedderName string
}

// Close releases the database handles owned by the engine.
func (d *engineDeps) Close() {
	if d.history != nil {
		_ = d.history.Close()
	}
	if d.intro != nil {
		_ = d.intro.Close()
	}
}

// buildEngine constructs the routing engine from environment configuration.
// Missing optional collaborators (model provider, embedder, database,
// history) degrade gracefully: the engine falls back to keyword retrieval
// and template answers rather than failing to start.
func buildEngine(ctx context.Context, log *slog.Logger, withModel bool) (*engineDeps, error) {
	emb, err := embedder.NewFromEnv()
	if err != nil {
		log.Warn("embedder unavailable, indexing with keyword fallback", slog.Any("error", err))
		emb = nil
	}

	registry := retrieval.NewRegistry()
	topK := getEnvInt("DATAQ_TOP_K", 0)
	retriever, err := retrieval.NewEngine(registry, emb, topK)
	if err != nil {
		return nil, fmt.Errorf("retriever: %w", err)
	}
	builder := retrieval.NewBuilder(emb, registry)

	var gen generator.Generator
	if withModel {
		chatModel, mErr := provider.NewFromEnv(ctx)
		if mErr != nil {
			log.Warn("model provider unavailable, using template answers", slog.Any("error", mErr))
		} else {
			gen, mErr = generator.NewModel(chatModel)
			if mErr != nil {
				return nil, fmt.Errorf("generator: %w", mErr)
			}
			log.Info("provider initialised", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "ollama")))
		}
	}

	var intro *schema.Introspector
	if dbPath := os.Getenv("DATAQ_DB"); dbPath != "" {
		intro, err = schema.Open(dbPath)
		if err != nil {
			return nil, fmt.Errorf("database %s: %w", dbPath, err)
		}
		log.Info("database opened", slog.String("path", dbPath))
	}

	history := openHistory(log)

	engine, err := router.New(&router.Config{
		Registry:         registry,
		Retriever:        retriever,
		Builder:          builder,
		Generator:        gen,
		Introspector:     intro,
		History:          history,
		TopK:             topK,
		MaxContextTokens: getEnvInt("DATAQ_MAX_CONTEXT_TOKENS", 0),
	})
	if err != nil {
		return nil, err //nolint:wrapcheck // engine construction errors carry their own prefix
	}

	return &engineDeps{
		engine:       engine,
		registry:     registry,
		history:      history,
		intro:        intro,
		embedder:     emb,
		embedderName: getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama")),
	}, nil
}

// openHistory opens the answer trail. DATAQ_HISTORY_DB overrides the default
// path (~/.dataq/history.db). Set to "disabled" to turn recording off.
// Returns nil (history disabled) on any failure, with a warning logged.
func openHistory(log *slog.Logger) *store.History {
	dbPath := os.Getenv("DATAQ_HISTORY_DB")
	if dbPath == "disabled" {
		log.Info("history: disabled via DATAQ_HISTORY_DB=disabled")
		return nil
	}
	if dbPath == "" {
		var err error
		dbPath, err = store.DefaultDBPath()
		if err != nil {
			log.Warn("history: could not resolve default DB path, disabling", slog.Any("error", err))
			return nil
		}
	}
	h, err := store.Open(dbPath)
	if err != nil {
		log.Warn("history: failed to open store, disabling", slog.Any("error", err))
		return nil
	}
	log.Info("history: store opened", slog.String("path", dbPath))
	return h
}

// buildMirror connects to the optional Qdrant mirror. Mirroring is opt-in:
// it activates only when QDRANT_HOST is set.
func buildMirror(ctx context.Context, log *slog.Logger) (*retrieval.QdrantMirror, error) {
	if os.Getenv("QDRANT_HOST") == "" {
		return nil, nil
	}

	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := getEnvInt("EMBEDDING_DIMENSIONS", embedder.DefaultDimensions(embBackend))

	mirror, err := retrieval.NewQdrantMirror(ctx, &retrieval.QdrantConfig{
		Host:       os.Getenv("QDRANT_HOST"),
		Port:       getEnvInt("QDRANT_PORT", 6334),
		Collection: getEnvOrDefault("QDRANT_COLLECTION", "dataq-chunks"),
		VectorSize: uint64(vectorSize), //nolint:gosec // dimensions are bounded
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant mirror: %w", err)
	}
	log.Info("qdrant mirror connected",
		slog.String("host", os.Getenv("QDRANT_HOST")),
		slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", "dataq-chunks")),
	)
	return mirror, nil
}

// getEnvOrDefault returns the env var value or fallback when unset/empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or
// unparseable.
func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
