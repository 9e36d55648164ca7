package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"scholarai/internal/bootstrap"
	"scholarai/internal/config"
	"scholarai/internal/generation"
	"scholarai/internal/logger"
	"scholarai/internal/model"
	"scholarai/internal/platform/database"
	"scholarai/internal/scholar"
	"scholarai/internal/vector"
)

type capturePublisher struct {
	mu   sync.Mutex
	msgs []model.JobMessage
}

func (p *capturePublisher) Publish(_ context.Context, msg model.JobMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *capturePublisher) last(t *testing.T) model.JobMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		t.Fatal("no job published")
	}
	return p.msgs[len(p.msgs)-1]
}

type fixedWriter struct{}

func (fixedWriter) Write(context.Context, generation.SectionRequest) (string, error) {
	return "STUB", nil
}

type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type testServer struct {
	app       *bootstrap.App
	router    *gin.Engine
	publisher *capturePublisher
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s2 := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/paper/DOI:") {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"title":"Graph Neural Networks","abstract":"Message passing on graphs.","year":2020,"authors":[{"name":"X"},{"name":"Y"}],"externalIds":{"DOI":"10.1000/GNN"},"url":"https://example.org/p"}`)
	}))
	t.Cleanup(s2.Close)

	db, err := database.OpenSQLiteForTest(t.TempDir())
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	cfg := &config.Config{
		App:  config.AppConfig{Name: "scholarai", Env: "test", GinMode: gin.TestMode},
		Auth: config.AuthConfig{JWTSecret: "test-secret", AccessExpireMinutes: 5, RefreshExpireDays: 1},
	}
	log := logger.Nop()
	policy := scholar.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	httpClient := &http.Client{Timeout: 5 * time.Second}
	resolver := scholar.NewResolver(
		scholar.NewSemanticScholarClient(s2.URL, httpClient, policy),
		scholar.NewArxivClient(s2.URL, httpClient, policy),
		nil,
		log,
	)

	publisher := &capturePublisher{}
	a := bootstrap.Wire(cfg, log, db, bootstrap.Collaborators{
		Publisher: publisher,
		Resolver:  resolver,
		Vectors:   vector.NewMemoryStore(vector.NewHashEmbedder(256)),
		Writer:    fixedWriter{},
		Catalog:   generation.Catalog{model.FieldComputerScience: {"abstract"}},
	})
	return &testServer{app: a, router: NewRouter(a), publisher: publisher}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var env envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("%s %s: decode body %q: %v", method, path, rec.Body.String(), err)
	}
	return rec.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("decode %s: %v", raw, err)
	}
	return out
}

func (s *testServer) register(t *testing.T, email string) string {
	t.Helper()
	status, env := s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{
		"email": email, "password": "longenough", "full_name": "Tester",
	})
	if status != http.StatusOK {
		t.Fatalf("register: %d %s", status, env.Message)
	}
	return decode[struct {
		AccessToken string `json:"access_token"`
	}](t, env.Data).AccessToken
}

func TestResearchToDocumentFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "flow@example.com")

	status, env := s.do(t, http.MethodPost, "/api/v1/papers/ingest", token, map[string]string{"doi": "https://doi.org/10.1000/GNN"})
	if status != http.StatusOK {
		t.Fatalf("ingest: %d %s", status, env.Message)
	}
	ingested := decode[struct {
		Papers []model.Paper `json:"papers"`
	}](t, env.Data)
	if len(ingested.Papers) != 1 || ingested.Papers[0].DOI == nil || *ingested.Papers[0].DOI != "10.1000/gnn" {
		t.Fatalf("unexpected ingest result %+v", ingested)
	}

	status, env = s.do(t, http.MethodPost, "/api/v1/papers/search", token, map[string]any{"query": "Graph Neural Networks"})
	if status != http.StatusOK {
		t.Fatalf("search: %d %s", status, env.Message)
	}
	found := decode[struct {
		Results []struct {
			Paper model.Paper `json:"paper"`
			Score float64     `json:"score"`
		} `json:"results"`
	}](t, env.Data)
	if len(found.Results) == 0 || found.Results[0].Paper.Title != "Graph Neural Networks" || found.Results[0].Score <= 0 {
		t.Fatalf("unexpected search results %+v", found)
	}

	status, env = s.do(t, http.MethodPost, "/api/v1/projects", token, map[string]string{"title": "Thesis", "field": model.FieldComputerScience})
	if status != http.StatusOK {
		t.Fatalf("create project: %d %s", status, env.Message)
	}
	project := decode[model.Project](t, env.Data)

	status, env = s.do(t, http.MethodPost, "/api/v1/documents", token, map[string]any{"project_id": project.ID, "title": "Draft"})
	if status != http.StatusOK {
		t.Fatalf("create document: %d %s", status, env.Message)
	}
	doc := decode[model.Document](t, env.Data)

	docPath := fmt.Sprintf("/api/v1/documents/%d", doc.ID)
	status, env = s.do(t, http.MethodPost, docPath+"/generate", token, nil)
	if status != http.StatusAccepted {
		t.Fatalf("generate: %d %s", status, env.Message)
	}

	status, env = s.do(t, http.MethodPost, docPath+"/generate", token, nil)
	if status != http.StatusConflict {
		t.Fatalf("second generate: expected 409, got %d", status)
	}

	msg := s.publisher.last(t)
	if err := s.app.Dispatcher.Dispatch(context.Background(), msg); err != nil {
		t.Fatalf("dispatch: %v", err)
	}

	status, env = s.do(t, http.MethodGet, docPath, token, nil)
	if status != http.StatusOK {
		t.Fatalf("get document: %d %s", status, env.Message)
	}
	got := decode[model.Document](t, env.Data)
	section, ok := got.Sections.Data()["abstract"]
	if got.Status != model.DocumentStatusComplete || !ok || section.Content != "STUB" {
		t.Fatalf("unexpected document %+v", got)
	}

	status, env = s.do(t, http.MethodGet, "/api/v1/jobs/"+msg.JobID, token, nil)
	if status != http.StatusOK {
		t.Fatalf("get job: %d %s", status, env.Message)
	}
	if job := decode[model.Job](t, env.Data); job.State != model.JobStateSucceeded {
		t.Fatalf("expected succeeded job, got %s", job.State)
	}
}

func TestExportReturnsDocx(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "export@example.com")

	_, env := s.do(t, http.MethodPost, "/api/v1/projects", token, map[string]string{"title": "P", "field": model.FieldBusiness})
	project := decode[model.Project](t, env.Data)
	_, env = s.do(t, http.MethodPost, "/api/v1/documents", token, map[string]any{"project_id": project.ID, "title": "Market Study"})
	doc := decode[model.Document](t, env.Data)

	req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/documents/%d/export", doc.ID), nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("export: %d %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Header().Get("Content-Disposition"), "Market Study.docx") {
		t.Fatalf("unexpected disposition %q", rec.Header().Get("Content-Disposition"))
	}
	if !bytes.HasPrefix(rec.Body.Bytes(), []byte("PK")) {
		t.Fatalf("export body is not a zip container")
	}
}

func TestOwnershipAndAuth(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice@example.com")
	bob := s.register(t, "bob@example.com")

	if status, _ := s.do(t, http.MethodGet, "/api/v1/projects", "", nil); status != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", status)
	}

	_, env := s.do(t, http.MethodPost, "/api/v1/projects", alice, map[string]string{"title": "Private", "field": model.FieldEngineering})
	project := decode[model.Project](t, env.Data)

	status, env := s.do(t, http.MethodGet, fmt.Sprintf("/api/v1/projects/%d", project.ID), bob, nil)
	if status != http.StatusNotFound {
		t.Fatalf("expected 404 for foreign project, got %d", status)
	}
	if env.Code == 0 {
		t.Fatalf("expected error code in envelope")
	}

	if status, _ := s.do(t, http.MethodGet, "/api/v1/jobs/does-not-exist", alice, nil); status != http.StatusNotFound {
		t.Fatalf("expected 404 for unknown job, got %d", status)
	}

	status, _ = s.do(t, http.MethodPost, "/api/v1/auth/register", "", map[string]string{"email": "alice@example.com", "password": "longenough"})
	if status != http.StatusBadRequest {
		t.Fatalf("expected duplicate registration to fail, got %d", status)
	}
}

func TestCreatePaperRejectsOversizedFields(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "limits@example.com")

	status, _ := s.do(t, http.MethodPost, "/api/v1/papers", token, map[string]string{"title": strings.Repeat("t", model.MaxPaperTitleLen+1)})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for long title, got %d", status)
	}
	status, _ = s.do(t, http.MethodPost, "/api/v1/papers", token, map[string]string{
		"title": "Short",
		"url":   "https://example.org/" + strings.Repeat("u", model.MaxPaperURLLen),
	})
	if status != http.StatusBadRequest {
		t.Fatalf("expected 400 for long url, got %d", status)
	}
	status, env := s.do(t, http.MethodPost, "/api/v1/papers", token, map[string]string{"title": strings.Repeat("t", model.MaxPaperTitleLen)})
	if status != http.StatusOK {
		t.Fatalf("title at the limit should be accepted: %d %s", status, env.Message)
	}
}
