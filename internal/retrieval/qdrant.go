package retrieval

import (
	"context"
	"fmt"

	"github.com/qdrant/go-client/qdrant"

	"github.com/54b3r/dataq-go/internal/chunk"
)

// QdrantConfig holds connection parameters for an optional Qdrant mirror.
type QdrantConfig struct {
	// Host is the Qdrant server hostname (default: localhost).
	Host string

	// Port is the Qdrant gRPC port (default: 6334).
	Port int

	// Collection is the Qdrant collection name to use.
	Collection string

	// VectorSize is the dimensionality of the embeddings stored in this collection.
	VectorSize uint64

	// APIKey is the optional Qdrant API key for authenticated clusters.
	APIKey string

	// UseTLS enables TLS for the gRPC connection.
	UseTLS bool
}

// QdrantMirror copies vector indexes into a Qdrant collection so indexed
// chunks survive restarts and can be inspected with Qdrant tooling. The
// in-memory registry stays the source of truth for retrieval; the mirror is
// write-mostly.
type QdrantMirror struct {
	// client is the underlying Qdrant gRPC client.
	client *qdrant.Client

	// cfg holds the resolved configuration for this mirror.
	cfg *QdrantConfig
}

// NewQdrantMirror creates a QdrantMirror, ensuring the target collection
// exists (creating it if necessary).
func NewQdrantMirror(ctx context.Context, cfg *QdrantConfig) (*QdrantMirror, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 6334
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: failed to create client: %w", err)
	}

	m := &QdrantMirror{client: client, cfg: cfg}
	if err := m.ensureCollection(ctx); err != nil {
		return nil, err
	}
	return m, nil
}

// ensureCollection creates the Qdrant collection if it does not already exist.
func (m *QdrantMirror) ensureCollection(ctx context.Context) error {
	exists, err := m.client.CollectionExists(ctx, m.cfg.Collection)
	if err != nil {
		return fmt.Errorf("qdrant: failed to check collection existence: %w", err)
	}
	if exists {
		return nil
	}

	err = m.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: m.cfg.Collection,
		VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
			Size:     m.cfg.VectorSize,
			Distance: qdrant.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: failed to create collection %q: %w", m.cfg.Collection, err)
	}
	return nil
}

// Mirror upserts a vector index's chunks and embeddings. Chunk IDs are
// deterministic, so re-mirroring a rebuilt dataset replaces its points.
// Keyword indexes have no vectors and are skipped.
func (m *QdrantMirror) Mirror(ctx context.Context, ix *Index) error {
	if ix.Mode != ModeVector {
		return nil
	}

	points := make([]*qdrant.PointStruct, 0, ix.Len())
	for i, c := range ix.Chunks {
		points = append(points, &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(pointUUID(c)),
			Vectors: qdrant.NewVectors(ix.Vectors[i]...),
			Payload: qdrant.NewValueMap(map[string]interface{}{
				"chunk_id": c.ID,
				"dataset":  c.DatasetID,
				"kind":     string(c.Kind),
				"text":     c.Text,
			}),
		})
	}

	_, err := m.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: m.cfg.Collection,
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert failed: %w", err)
	}
	return nil
}

// Delete removes all mirrored points for a dataset.
func (m *QdrantMirror) Delete(ctx context.Context, datasetID string) error {
	_, err := m.client.Delete(ctx, &qdrant.DeletePoints{
		CollectionName: m.cfg.Collection,
		Points: qdrant.NewPointsSelectorFilter(&qdrant.Filter{
			Must: []*qdrant.Condition{
				qdrant.NewMatch("dataset", datasetID),
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: delete failed: %w", err)
	}
	return nil
}

// Ping calls the Qdrant HealthCheck RPC. It is used by the server's
// readiness probes.
func (m *QdrantMirror) Ping(ctx context.Context) error {
	if _, err := m.client.HealthCheck(ctx); err != nil {
		return fmt.Errorf("qdrant: health check failed: %w", err)
	}
	return nil
}

// Close closes the underlying Qdrant gRPC connection.
func (m *QdrantMirror) Close() error {
	return m.client.Close()
}

// pointUUID renders a chunk ID (16 hash bytes in hex) in the 8-4-4-4-12 form
// Qdrant accepts as a point UUID.
func pointUUID(c chunk.Chunk) string {
	h := c.ID
	if len(h) != 32 {
		return h
	}
	return fmt.Sprintf("%s-%s-%s-%s-%s", h[0:8], h[8:12], h[12:16], h[16:20], h[20:32])
}
