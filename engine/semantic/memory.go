package semantic

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"github.com/ckulkarni13/Mental-Health-Advisor-App/engine/domain"
)

// MemoryIndex is an in-process Index using brute-force cosine similarity.
type MemoryIndex struct {
	mu      sync.RWMutex
	dims    int
	entries map[string]domain.StoredEntry
}

// NewMemoryIndex returns an empty index. The dimension is fixed by the first
// EnsureCollection call.
func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{entries: make(map[string]domain.StoredEntry)}
}

// EnsureCollection fixes the dimension. Calling it again with a different
// dimension is an error.
func (m *MemoryIndex) EnsureCollection(_ context.Context, dims int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.dims != 0 && m.dims != dims {
		return fmt.Errorf("semantic: %w: collection has %d, asked for %d", domain.ErrDimensionMismatch, m.dims, dims)
	}
	m.dims = dims
	return nil
}

// Upsert stores entries keyed by id, replacing existing ones.
func (m *MemoryIndex) Upsert(_ context.Context, entries []domain.StoredEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		if m.dims != 0 && len(e.Vector) != m.dims {
			return fmt.Errorf("semantic: %w: entry %s has %d", domain.ErrDimensionMismatch, e.ID, len(e.Vector))
		}
	}
	for _, e := range entries {
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		m.entries[e.ID] = domain.StoredEntry{ID: e.ID, Vector: append([]float32(nil), e.Vector...), Metadata: meta}
	}
	return nil
}

// Search ranks every entry by cosine similarity to vector.
func (m *MemoryIndex) Search(_ context.Context, vector []float32, topK int) ([]SearchResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, len(m.entries))
	for _, e := range m.entries {
		meta := make(map[string]string, len(e.Metadata))
		for k, v := range e.Metadata {
			meta[k] = v
		}
		results = append(results, SearchResult{ID: e.ID, Score: Cosine(vector, e.Vector), Metadata: meta})
	}
	sort.Slice(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].ID < results[j].ID
	})
	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Count returns the number of stored entries.
func (m *MemoryIndex) Count(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return uint64(len(m.entries)), nil
}

// Get returns the entry stored under id.
func (m *MemoryIndex) Get(id string) (domain.StoredEntry, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	e, ok := m.entries[id]
	return e, ok
}

// Cosine returns the cosine similarity of a and b, or 0 when the lengths
// differ or either vector is zero.
func Cosine(a, b []float32) float32 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

var _ Index = (*MemoryIndex)(nil)
