package vector

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

const payloadKeyField = "_key"

var pointNamespace = uuid.MustParse("6f2a1d0e-3c55-4b8e-9a57-4b1f0f5d2c11")

type QdrantConfig struct {
	URL        string
	APIKey     string
	Collection string
	Dimensions int
}

// QdrantStore talks to the Qdrant REST API. Point ids are UUIDv5 of the key.
type QdrantStore struct {
	cfg      QdrantConfig
	baseURL  string
	embedder Embedder
	http     *http.Client
}

func NewQdrantStore(cfg QdrantConfig, embedder Embedder, httpClient *http.Client) *QdrantStore {
	return &QdrantStore{
		cfg:      cfg,
		baseURL:  strings.TrimRight(cfg.URL, "/"),
		embedder: embedder,
		http:     httpClient,
	}
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

// EnsureCollection creates the collection with cosine distance when it is missing.
func (s *QdrantStore) EnsureCollection(ctx context.Context) error {
	status, err := s.do(ctx, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	if status != http.StatusNotFound {
		return fmt.Errorf("qdrant collection check failed: %w", err)
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.Dimensions,
			"distance": "Cosine",
		},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
		return fmt.Errorf("qdrant create collection failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, key, text string, metadata map[string]string) error {
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("embed %s failed: %w", key, err)
	}
	if s.cfg.Dimensions > 0 && len(vec) != s.cfg.Dimensions {
		return fmt.Errorf("vector %s dimension mismatch: expected=%d got=%d", key, s.cfg.Dimensions, len(vec))
	}
	payload := make(map[string]any, len(metadata)+1)
	for k, v := range metadata {
		payload[k] = v
	}
	payload[payloadKeyField] = key

	req := map[string]any{
		"points": []map[string]any{{
			"id":      pointID(key),
			"vector":  vec,
			"payload": payload,
		}},
	}
	if _, err := s.do(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil); err != nil {
		return fmt.Errorf("qdrant upsert failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) Query(ctx context.Context, text string, k int, filter map[string]string) ([]Hit, error) {
	if k <= 0 {
		return nil, nil
	}
	vec, err := s.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query failed: %w", err)
	}

	req := map[string]any{
		"vector":       vec,
		"limit":        k,
		"with_payload": true,
		"with_vector":  false,
	}
	if len(filter) > 0 {
		must := make([]map[string]any, 0, len(filter))
		for key, value := range filter {
			must = append(must, map[string]any{"key": key, "match": map[string]any{"value": value}})
		}
		req["filter"] = map[string]any{"must": must}
	}

	var points []qdrantScoredPoint
	if _, err := s.do(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &points); err != nil {
		return nil, fmt.Errorf("qdrant search failed: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		meta := make(map[string]string, len(p.Payload))
		for k, v := range p.Payload {
			if str, ok := v.(string); ok {
				meta[k] = str
			}
		}
		key := meta[payloadKeyField]
		if key == "" {
			continue
		}
		delete(meta, payloadKeyField)
		hits = append(hits, Hit{Key: key, Distance: 1 - p.Score, Metadata: meta})
	}
	return hits, nil
}

func (s *QdrantStore) Delete(ctx context.Context, key string) error {
	req := map[string]any{"points": []string{pointID(key)}}
	if _, err := s.do(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil); err != nil {
		return fmt.Errorf("qdrant delete failed: %w", err)
	}
	return nil
}

func (s *QdrantStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func (s *QdrantStore) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return 0, fmt.Errorf("encode request failed: %w", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("build request failed: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("qdrant request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return resp.StatusCode, fmt.Errorf("qdrant http status=%d body=%q", resp.StatusCode, truncate(raw, 512))
	}
	if out == nil {
		return resp.StatusCode, nil
	}
	var env qdrantEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return resp.StatusCode, fmt.Errorf("decode qdrant envelope failed: %w", err)
	}
	if len(env.Result) == 0 || string(env.Result) == "null" {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode qdrant result failed: %w", err)
	}
	return resp.StatusCode, nil
}

func pointID(key string) string {
	return uuid.NewSHA1(pointNamespace, []byte(key)).String()
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n])
}
