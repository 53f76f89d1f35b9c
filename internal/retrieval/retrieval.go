// Package retrieval implements the chunk indexer and retrieval engine: it
// builds per-dataset indexes over text chunks (dense vectors when an embedder
// is available, keyword term sets otherwise), publishes them atomically in a
// registry, and scores queries against them. A published index is immutable;
// re-indexing a dataset swaps the whole index pointer so readers never see a
// partial state.
package retrieval

import (
	"context"
	"strings"
	"unicode"

	"github.com/54b3r/dataq-go/internal/chunk"
)

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Mode says how an index scores queries.
type Mode int

const (
	// ModeKeyword scores by normalised term overlap. Used when no embedder
	// is configured or embedding failed at build time.
	ModeKeyword Mode = iota
	// ModeVector scores by cosine similarity over embeddings.
	ModeVector
)

// String returns the mode name used in logs and index listings.
func (m Mode) String() string {
	if m == ModeVector {
		return "vector"
	}
	return "keyword"
}

// Result is one retrieved chunk with its relevance score.
type Result struct {
	// Chunk is the retrieved chunk.
	Chunk chunk.Chunk
	// Score is the relevance score in [0, 1]; higher is more relevant.
	Score float64
	// Rank is the 1-based position in the result list.
	Rank int
}

// Index is an immutable snapshot of one dataset's indexed chunks.
// Build it with NewIndex and treat it as read-only afterwards.
type Index struct {
	// DatasetID names the dataset this index covers.
	DatasetID string

	// Mode says how queries are scored against this index.
	Mode Mode

	// Chunks are the indexed chunks in insertion order.
	Chunks []chunk.Chunk

	// Vectors are the chunk embeddings, parallel to Chunks. Nil in
	// keyword mode.
	Vectors [][]float32

	// terms are the tokenised chunk texts, parallel to Chunks. Always
	// populated so vector indexes can degrade to keyword scoring when the
	// query cannot be embedded.
	terms []map[string]bool
}

// NewIndex builds an index over the given chunks. vectors may be nil, which
// forces keyword mode; otherwise it must be parallel to chunks.
func NewIndex(datasetID string, chunks []chunk.Chunk, vectors [][]float32) *Index {
	mode := ModeVector
	if len(vectors) != len(chunks) || len(vectors) == 0 {
		mode = ModeKeyword
		vectors = nil
	}

	terms := make([]map[string]bool, len(chunks))
	for i, c := range chunks {
		terms[i] = tokenize(c.Text)
	}

	return &Index{
		DatasetID: datasetID,
		Mode:      mode,
		Chunks:    chunks,
		Vectors:   vectors,
		terms:     terms,
	}
}

// Len returns the number of indexed chunks.
func (ix *Index) Len() int { return len(ix.Chunks) }

// tokenize lowercases text and splits it into a set of terms, dropping
// single-character fragments.
func tokenize(text string) map[string]bool {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		if len(f) > 1 {
			set[f] = true
		}
	}
	return set
}
