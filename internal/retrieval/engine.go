package retrieval

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/54b3r/dataq-go/internal/logging"
)

// Engine scores queries against published indexes. It is safe for concurrent
// use; all mutable state lives in the registry.
type Engine struct {
	// registry supplies the per-dataset indexes.
	registry *Registry

	// embedder embeds query text for vector indexes. Nil means keyword
	// scoring only.
	embedder Embedder

	// defaultTopK is the result count used when the caller passes 0.
	defaultTopK int
}

// NewEngine constructs an Engine. defaultTopK falls back to 4 when
// non-positive, matching the context window the generator is tuned for.
func NewEngine(registry *Registry, embedder Embedder, defaultTopK int) (*Engine, error) {
	if registry == nil {
		return nil, fmt.Errorf("retrieval: registry must not be nil")
	}
	if defaultTopK <= 0 {
		defaultTopK = 4
	}
	return &Engine{registry: registry, embedder: embedder, defaultTopK: defaultTopK}, nil
}

// Retrieve returns the top-k chunks for the query from the dataset's index,
// ordered by descending score with ties kept in insertion order. A missing or
// empty index yields an empty result and no error; the router decides what to
// do about it.
func (e *Engine) Retrieve(ctx context.Context, datasetID, query string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = e.defaultTopK
	}

	ix, ok := e.registry.Get(datasetID)
	if !ok || ix.Len() == 0 {
		return []Result{}, nil
	}

	scores := e.score(ctx, ix, query)

	results := make([]Result, 0, ix.Len())
	for i, c := range ix.Chunks {
		results = append(results, Result{Chunk: c, Score: scores[i]})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	for i := range results {
		results[i].Rank = i + 1
	}
	return results, nil
}

// score computes a relevance score per chunk. Vector indexes use cosine
// similarity; if the query cannot be embedded the engine degrades to keyword
// overlap against the same index rather than failing the request.
func (e *Engine) score(ctx context.Context, ix *Index, query string) []float64 {
	if ix.Mode == ModeVector && e.embedder != nil {
		embedded, err := e.embedder.Embed(ctx, []string{query})
		if err == nil && len(embedded) == 1 {
			scores := make([]float64, ix.Len())
			for i, v := range ix.Vectors {
				scores[i] = cosine(embedded[0], v)
			}
			return scores
		}
		logging.FromContext(ctx).Warn("query embedding failed, scoring by keyword overlap",
			"dataset", ix.DatasetID, "error", err)
	}

	qterms := tokenize(query)
	scores := make([]float64, ix.Len())
	for i, terms := range ix.terms {
		scores[i] = overlap(qterms, terms)
	}
	return scores
}

// cosine returns the cosine similarity of two vectors clamped to [0, 1].
// Mismatched or zero vectors score 0.
func cosine(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	c := dot / (math.Sqrt(na) * math.Sqrt(nb))
	if c < 0 {
		return 0
	}
	if c > 1 {
		return 1
	}
	return c
}

// overlap returns the fraction of query terms present in the chunk terms.
func overlap(query, chunk map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	hits := 0
	for t := range query {
		if chunk[t] {
			hits++
		}
	}
	return float64(hits) / float64(len(query))
}
