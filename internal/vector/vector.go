// Package vector indexes paper text for nearest-neighbour search.
package vector

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"scholarai/internal/config"
)

// Hit is one query match. Distance is 1 - cosine similarity.
type Hit struct {
	Key      string
	Distance float64
	Metadata map[string]string
}

// Store is the index capability. Filter entries must all match a hit's metadata.
type Store interface {
	Upsert(ctx context.Context, key, text string, metadata map[string]string) error
	Query(ctx context.Context, text string, k int, filter map[string]string) ([]Hit, error)
	Delete(ctx context.Context, key string) error
}

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// New builds the configured store.
func New(ctx context.Context, cfg config.VectorConfig, embedder Embedder) (Store, error) {
	switch cfg.Provider {
	case "memory":
		return NewMemoryStore(embedder), nil
	case "qdrant":
		timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		s := NewQdrantStore(QdrantConfig{
			URL:        cfg.QdrantURL,
			APIKey:     cfg.QdrantAPIKey,
			Collection: cfg.Collection,
			Dimensions: cfg.Dimensions,
		}, embedder, &http.Client{Timeout: timeout})
		if err := s.EnsureCollection(ctx); err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unsupported vector provider %q", cfg.Provider)
	}
}

func matches(metadata, filter map[string]string) bool {
	for k, v := range filter {
		if metadata[k] != v {
			return false
		}
	}
	return true
}
