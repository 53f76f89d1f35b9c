package server

import (
	"context"
	"fmt"

	"github.com/54b3r/dataq-go/internal/retrieval"
	"github.com/54b3r/dataq-go/internal/store"
)

// HistoryPinger probes the SQLite history database. It satisfies the Pinger
// interface and is used by GET /api/ready.
type HistoryPinger struct {
	// history is the answer trail to probe.
	history *store.History
}

// NewHistoryPinger constructs a HistoryPinger for the given history store.
func NewHistoryPinger(h *store.History) *HistoryPinger {
	return &HistoryPinger{history: h}
}

// Name returns the dependency label used in readiness responses.
func (p *HistoryPinger) Name() string { return "history" }

// Ping verifies the history database connection.
func (p *HistoryPinger) Ping(ctx context.Context) error {
	return p.history.Ping(ctx)
}

// QdrantPinger probes the optional Qdrant mirror using its native HealthCheck
// RPC. It satisfies the Pinger interface and is used by GET /api/ready.
type QdrantPinger struct {
	// mirror is the Qdrant mirror to probe.
	mirror *retrieval.QdrantMirror
}

// NewQdrantPinger constructs a QdrantPinger for the given mirror.
func NewQdrantPinger(m *retrieval.QdrantMirror) *QdrantPinger {
	return &QdrantPinger{mirror: m}
}

// Name returns the dependency label used in readiness responses.
func (p *QdrantPinger) Name() string { return "qdrant" }

// Ping calls the Qdrant HealthCheck RPC.
func (p *QdrantPinger) Ping(ctx context.Context) error {
	return p.mirror.Ping(ctx)
}

// EmbedderPinger probes the embedding backend by embedding a single short
// string. Failure here means new datasets will be indexed in keyword mode.
type EmbedderPinger struct {
	// emb is the embedding client to probe.
	emb retrieval.Embedder
	// name identifies the backend in readiness responses (e.g. "ollama").
	name string
}

// NewEmbedderPinger constructs an EmbedderPinger for the given client and
// backend name.
func NewEmbedderPinger(e retrieval.Embedder, name string) *EmbedderPinger {
	return &EmbedderPinger{emb: e, name: name}
}

// Name returns the backend label used in readiness responses.
func (p *EmbedderPinger) Name() string { return p.name }

// Ping embeds a single token and verifies a vector comes back.
func (p *EmbedderPinger) Ping(ctx context.Context) error {
	vecs, err := p.emb.Embed(ctx, []string{"ping"})
	if err != nil {
		return fmt.Errorf("embed failed: %w", err)
	}
	if len(vecs) == 0 || len(vecs[0]) == 0 {
		return fmt.Errorf("embed returned no vector")
	}
	return nil
}
