package vector

import (
	"context"
	"encoding/json"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

func TestHashEmbedderIsDeterministicAndNormalized(t *testing.T) {
	e := NewHashEmbedder(64)
	a, _ := e.Embed(context.Background(), "Graph neural networks")
	b, _ := e.Embed(context.Background(), "graph NEURAL networks!")
	var norm float64
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("embedding differs at %d", i)
		}
		norm += float64(a[i] * a[i])
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Fatalf("expected unit norm, got %f", norm)
	}
	empty, _ := e.Embed(context.Background(), "")
	for _, v := range empty {
		if v != 0 {
			t.Fatalf("empty text should embed to zero vector")
		}
	}
}

func TestMemoryStoreRanksAndFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(NewHashEmbedder(256))
	_ = s.Upsert(ctx, "1", "graph neural networks for molecules", map[string]string{"owner_id": "1"})
	_ = s.Upsert(ctx, "2", "medieval poetry in french", map[string]string{"owner_id": "1"})
	_ = s.Upsert(ctx, "3", "graph neural networks for molecules", map[string]string{"owner_id": "2"})

	hits, err := s.Query(ctx, "graph neural networks", 5, map[string]string{"owner_id": "1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 owner hits, got %d", len(hits))
	}
	if hits[0].Key != "1" || hits[0].Distance >= hits[1].Distance {
		t.Fatalf("unexpected ranking %+v", hits)
	}

	_ = s.Delete(ctx, "1")
	if s.Len() != 2 {
		t.Fatalf("expected 2 entries after delete, got %d", s.Len())
	}
	if hits, _ := s.Query(ctx, "x", 0, nil); hits != nil {
		t.Fatalf("k=0 should return nothing")
	}
}

type fakeQdrant struct {
	mu     sync.Mutex
	points map[string]map[string]any
	exists bool
}

func (f *fakeQdrant) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/collections/papers":
		if !f.exists {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"not found"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"result":{},"status":"ok"}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/papers":
		f.exists = true
		_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
	case r.Method == http.MethodPut && r.URL.Path == "/collections/papers/points":
		var body struct {
			Points []struct {
				ID      string         `json:"id"`
				Payload map[string]any `json:"payload"`
			} `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, p := range body.Points {
			f.points[p.ID] = p.Payload
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
	case r.Method == http.MethodPost && r.URL.Path == "/collections/papers/points/search":
		var results []map[string]any
		for id, payload := range f.points {
			results = append(results, map[string]any{"id": id, "score": 0.75, "payload": payload})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"result": results, "status": "ok"})
	case r.Method == http.MethodPost && r.URL.Path == "/collections/papers/points/delete":
		var body struct {
			Points []string `json:"points"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		for _, id := range body.Points {
			delete(f.points, id)
		}
		_, _ = w.Write([]byte(`{"result":{"status":"completed"},"status":"ok"}`))
	default:
		http.NotFound(w, r)
	}
}

func TestQdrantStoreRoundTrip(t *testing.T) {
	fake := &fakeQdrant{points: map[string]map[string]any{}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	ctx := context.Background()
	s := NewQdrantStore(QdrantConfig{URL: srv.URL, Collection: "papers", Dimensions: 32}, NewHashEmbedder(32), srv.Client())
	if err := s.EnsureCollection(ctx); err != nil {
		t.Fatalf("ensure collection: %v", err)
	}
	fake.mu.Lock()
	created := fake.exists
	fake.mu.Unlock()
	if !created {
		t.Fatalf("collection was not created")
	}
	if err := s.Upsert(ctx, "42", "some text", map[string]string{"paper_id": "42"}); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	hits, err := s.Query(ctx, "some text", 3, map[string]string{"owner_id": "1"})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(hits) != 1 || hits[0].Key != "42" || hits[0].Metadata["paper_id"] != "42" {
		t.Fatalf("unexpected hits %+v", hits)
	}
	if math.Abs(hits[0].Distance-0.25) > 1e-9 {
		t.Fatalf("expected distance 0.25, got %f", hits[0].Distance)
	}
	if err := s.Delete(ctx, "42"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	fake.mu.Lock()
	remaining := len(fake.points)
	fake.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("point not deleted")
	}
}

func TestQdrantStoreRejectsDimensionMismatch(t *testing.T) {
	s := NewQdrantStore(QdrantConfig{URL: "http://unused", Collection: "c", Dimensions: 8}, NewHashEmbedder(16), http.DefaultClient)
	err := s.Upsert(context.Background(), "k", "t", nil)
	if err == nil || !strings.Contains(err.Error(), "dimension mismatch") {
		t.Fatalf("expected dimension mismatch, got %v", err)
	}
}
