package retrieval

import (
	"context"
	"sync"

	"github.com/54b3r/dataq-go/internal/chunk"
	"github.com/54b3r/dataq-go/internal/logging"
)

// Builder turns chunk sets into published indexes. With an embedder it builds
// vector indexes; without one, or after the embedder proves unavailable, it
// builds keyword indexes. The unavailability downgrade is decided once and
// logged once, not per chunk.
type Builder struct {
	// embedder embeds chunk text. Nil means keyword-only operation.
	embedder Embedder

	// registry receives the built indexes.
	registry *Registry

	mu sync.Mutex
	// degraded is set after the first embedding failure; later builds skip
	// the embedder entirely.
	degraded bool
}

// NewBuilder constructs a Builder. embedder may be nil for keyword-only
// indexing.
func NewBuilder(embedder Embedder, registry *Registry) *Builder {
	return &Builder{embedder: embedder, registry: registry}
}

// Build indexes the chunks for a dataset and publishes the result. Embedding
// failure is not an error: the build degrades to a keyword index and the
// engine keeps answering. The returned index is the one published.
func (b *Builder) Build(ctx context.Context, datasetID string, chunks []chunk.Chunk) (*Index, error) {
	log := logging.FromContext(ctx)

	var vectors [][]float32
	if b.embedder != nil && !b.isDegraded() {
		texts := make([]string, len(chunks))
		for i, c := range chunks {
			texts[i] = c.Text
		}
		embedded, err := b.embedder.Embed(ctx, texts)
		if err != nil {
			b.markDegraded()
			log.Warn("embedding unavailable, indexing with keyword fallback",
				"dataset", datasetID, "error", err)
		} else {
			vectors = embedded
		}
	}

	ix := NewIndex(datasetID, chunks, vectors)
	b.registry.Publish(ix)
	log.Info("index published",
		"dataset", datasetID, "chunks", ix.Len(), "mode", ix.Mode.String())
	return ix, nil
}

// Degraded reports whether the builder has given up on the embedder.
func (b *Builder) Degraded() bool { return b.isDegraded() }

func (b *Builder) isDegraded() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.degraded
}

func (b *Builder) markDegraded() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.degraded = true
}
