package vector

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

type memoryEntry struct {
	vector   []float32
	metadata map[string]string
}

// MemoryStore is a brute-force cosine index held in process memory.
type MemoryStore struct {
	embedder Embedder
	mu       sync.RWMutex
	entries  map[string]memoryEntry
}

func NewMemoryStore(embedder Embedder) *MemoryStore {
	return &MemoryStore{
		embedder: embedder,
		entries:  make(map[string]memoryEntry),
	}
}

func (m *MemoryStore) Upsert(ctx context.Context, key, text string, metadata map[string]string) error {
	vec, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s failed: %w", key, err)
	}
	meta := make(map[string]string, len(metadata))
	for k, v := range metadata {
		meta[k] = v
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[key] = memoryEntry{vector: vec, metadata: meta}
	return nil
}

func (m *MemoryStore) Query(ctx context.Context, text string, k int, filter map[string]string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	q, err := m.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	m.mu.RLock()
	hits := make([]Hit, 0, len(m.entries))
	for key, e := range m.entries {
		if !matches(e.metadata, filter) || len(e.vector) != len(q) {
			continue
		}
		hits = append(hits, Hit{Key: key, Distance: 1 - cosine(q, e.vector), Metadata: e.metadata})
	}
	m.mu.RUnlock()

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Distance == hits[j].Distance {
			return hits[i].Key < hits[j].Key
		}
		return hits[i].Distance < hits[j].Distance
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (m *MemoryStore) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, key)
	return nil
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

func cosine(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
