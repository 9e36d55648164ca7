package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"scholarai/internal/generation"
	"scholarai/internal/logger"
	"scholarai/internal/model"
	"scholarai/internal/platform/database"
	"scholarai/internal/repository"
	"scholarai/internal/scholar"
	"scholarai/internal/vector"
)

type testEnv struct {
	db         *gorm.DB
	publisher  *fakePublisher
	resolver   *fakeResolver
	vectors    vector.Store
	jobRepo    *repository.JobRepository
	jobs       *JobService
	projects   *ProjectService
	research   *ResearchService
	documents  *DocumentService
	prototypes *PrototypeService
}

type envOptions struct {
	writer  SectionWriter
	coder   CodeWriter
	catalog generation.Catalog
	vectors vector.Store
}

func newTestEnv(t *testing.T, opts envOptions) *testEnv {
	t.Helper()
	db, err := database.OpenSQLiteForTest(t.TempDir())
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	if opts.catalog == nil {
		opts.catalog = generation.DefaultCatalog()
	}
	if opts.vectors == nil {
		opts.vectors = vector.NewMemoryStore(vector.NewHashEmbedder(256))
	}
	if opts.writer == nil {
		opts.writer = &stubWriter{}
	}
	if opts.coder == nil {
		opts.coder = &stubCoder{code: "print('hi')", requirements: "gradio>=4.0.0\n"}
	}

	log := logger.Nop()
	env := &testEnv{
		db:        db,
		publisher: &fakePublisher{},
		resolver:  &fakeResolver{},
		vectors:   opts.vectors,
		jobRepo:   repository.NewJobRepository(db),
	}
	projectRepo := repository.NewProjectRepository(db)
	paperRepo := repository.NewPaperRepository(db)
	env.jobs = NewJobService(env.jobRepo, env.publisher, log)
	env.projects = NewProjectService(projectRepo, opts.catalog)
	env.research = NewResearchService(paperRepo, env.resolver, env.vectors, env.jobs, log)
	env.documents = NewDocumentService(repository.NewDocumentRepository(db), projectRepo, paperRepo, env.jobs, opts.writer, opts.catalog, log)
	env.prototypes = NewPrototypeService(repository.NewPrototypeRepository(db), projectRepo, env.jobs, opts.coder, log)
	return env
}

// jobFor loads the job row a queued message refers to, as the worker would.
func (e *testEnv) jobFor(t *testing.T, msg model.JobMessage) *model.Job {
	t.Helper()
	job, err := e.jobRepo.GetByID(msg.JobID)
	if err != nil || job == nil {
		t.Fatalf("load job %s: %v", msg.JobID, err)
	}
	return job
}

// strandJob leaves a job running with no state change for longer than
// StaleJobAfter, as when its message was dropped mid-run.
func (e *testEnv) strandJob(t *testing.T, id string) {
	t.Helper()
	if err := e.jobRepo.MarkRunning(id); err != nil {
		t.Fatal(err)
	}
	past := time.Now().Add(-2 * StaleJobAfter)
	if err := e.db.Model(&model.Job{}).Where("id = ?", id).UpdateColumn("updated_at", past).Error; err != nil {
		t.Fatal(err)
	}
}

func (e *testEnv) project(t *testing.T, ownerID uint, field string) *model.Project {
	t.Helper()
	p, err := e.projects.Create(ownerID, ProjectInput{Title: "Project", Field: field})
	if err != nil {
		t.Fatalf("create project: %v", err)
	}
	return p
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []model.JobMessage
	err  error
}

func (p *fakePublisher) Publish(_ context.Context, msg model.JobMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.msgs = append(p.msgs, msg)
	return nil
}

func (p *fakePublisher) last(t *testing.T) model.JobMessage {
	t.Helper()
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.msgs) == 0 {
		t.Fatalf("no job published")
	}
	return p.msgs[len(p.msgs)-1]
}

type fakeResolver struct {
	byDOI    map[string]scholar.LookupResult
	doiCalls int
	search   []scholar.PaperData
	failures []error
}

func (r *fakeResolver) ByDOI(_ context.Context, doi string) scholar.LookupResult {
	r.doiCalls++
	if res, ok := r.byDOI[scholar.NormalizeDOI(doi)]; ok {
		return res
	}
	return scholar.LookupResult{Status: scholar.LookupNotFound}
}

func (r *fakeResolver) ByArxivID(context.Context, string) scholar.LookupResult {
	return scholar.LookupResult{Status: scholar.LookupUnavailable, Err: errors.New("offline")}
}

func (r *fakeResolver) Search(context.Context, string, int) ([]scholar.PaperData, []error) {
	return r.search, r.failures
}

// stubWriter returns "<section> text" unless the section is listed in fail.
type stubWriter struct {
	mu    sync.Mutex
	fail  map[string]bool
	fixed string
	calls []generation.SectionRequest
}

func (w *stubWriter) Write(_ context.Context, req generation.SectionRequest) (string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls = append(w.calls, req)
	if w.fail[req.Section] {
		return "", errors.New("upstream exploded")
	}
	if w.fixed != "" {
		return w.fixed, nil
	}
	return req.Section + " text", nil
}

type stubCoder struct {
	code         string
	requirements string
	err          error
}

func (c *stubCoder) Generate(context.Context, model.Prototype) (string, string, error) {
	return c.code, c.requirements, c.err
}

type failingStore struct{}

func (failingStore) Upsert(context.Context, string, string, map[string]string) error {
	return errors.New("vector store down")
}

func (failingStore) Query(context.Context, string, int, map[string]string) ([]vector.Hit, error) {
	return nil, errors.New("vector store down")
}

func (failingStore) Delete(context.Context, string) error {
	return errors.New("vector store down")
}

// unresolvableStore accepts writes and answers every query with keys that
// never map to a row the caller owns.
type unresolvableStore struct{}

func (unresolvableStore) Upsert(context.Context, string, string, map[string]string) error {
	return nil
}

func (unresolvableStore) Query(context.Context, string, int, map[string]string) ([]vector.Hit, error) {
	return []vector.Hit{{Key: "999", Distance: 0.1}, {Key: "not-a-number", Distance: 0.2}}, nil
}

func (unresolvableStore) Delete(context.Context, string) error {
	return nil
}

type memoryDenylist struct {
	mu      sync.Mutex
	revoked map[string]time.Time
}

func (d *memoryDenylist) Revoke(_ context.Context, id string, exp time.Time) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.revoked == nil {
		d.revoked = map[string]time.Time{}
	}
	if _, ok := d.revoked[id]; ok {
		return false, nil
	}
	d.revoked[id] = exp
	return true, nil
}

func (d *memoryDenylist) IsRevoked(_ context.Context, id string) (bool, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.revoked[id]
	return ok, nil
}

func intPtr(v int) *int { return &v }
