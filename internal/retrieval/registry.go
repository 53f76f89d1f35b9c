package retrieval

import (
	"sort"
	"sync"
)

// Registry holds the published index for each dataset. Publishing replaces
// the dataset's index pointer in one step, so concurrent readers observe
// either the old index or the new one, never a mix.
type Registry struct {
	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{indexes: make(map[string]*Index)}
}

// Publish installs the index as the current one for its dataset, replacing
// any previous index for that dataset.
func (r *Registry) Publish(ix *Index) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.indexes[ix.DatasetID] = ix
}

// Get returns the current index for the dataset, if one is published.
func (r *Registry) Get(datasetID string) (*Index, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ix, ok := r.indexes[datasetID]
	return ix, ok
}

// Remove drops the dataset's index. In-flight retrievals holding the old
// pointer finish against it.
func (r *Registry) Remove(datasetID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.indexes, datasetID)
}

// Datasets returns the IDs of all published indexes, sorted.
func (r *Registry) Datasets() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ids := make([]string, 0, len(r.indexes))
	for id := range r.indexes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
