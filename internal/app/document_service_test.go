package app

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"scholarai/internal/generation"
	"scholarai/internal/model"
	"scholarai/internal/scholar"
)

func newDocument(t *testing.T, env *testEnv, ownerID uint, field string) *model.Document {
	t.Helper()
	project := env.project(t, ownerID, field)
	doc, err := env.documents.Create(ownerID, DocumentInput{ProjectID: project.ID, Title: "My Paper", CitationStyle: "apa"})
	if err != nil {
		t.Fatalf("create document: %v", err)
	}
	return doc
}

func TestGenerationPartialSuccess(t *testing.T) {
	writer := &stubWriter{fail: map[string]bool{"b": true}}
	catalog := generation.Catalog{model.FieldComputerScience: {"a", "b", "c", generation.ReferencesSection}}
	env := newTestEnv(t, envOptions{writer: writer, catalog: catalog})
	ctx := context.Background()
	if _, err := env.research.Save(ctx, 1, scholar.PaperData{Title: "Ref", Authors: []string{"X"}, Year: intPtr(2021)}); err != nil {
		t.Fatal(err)
	}
	doc := newDocument(t, env, 1, model.FieldComputerScience)

	job, err := env.documents.RequestGeneration(ctx, 1, doc.ID)
	if err != nil {
		t.Fatalf("request generation: %v", err)
	}
	got, _ := env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusGenerating || got.JobReference == nil || *got.JobReference != job.ID {
		t.Fatalf("expected generating with job reference, got %+v", got)
	}

	if err := env.documents.RunGeneration(ctx, env.jobFor(t, env.publisher.last(t))); err == nil {
		t.Fatalf("expected run to report the failed section")
	}

	got, _ = env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusError {
		t.Fatalf("expected error status, got %s", got.Status)
	}
	sections := got.SectionData()
	for _, name := range []string{"a", "c", generation.ReferencesSection} {
		if strings.TrimSpace(sections[name].Content) == "" {
			t.Fatalf("section %s missing: %+v", name, sections)
		}
	}
	if _, ok := sections["b"]; ok {
		t.Fatalf("failed section must be absent")
	}
	if len(got.GenerationErrors) != 1 || !strings.HasPrefix(got.GenerationErrors[0], "b: ") {
		t.Fatalf("expected one error entry for b, got %v", got.GenerationErrors)
	}
	if !strings.Contains(sections[generation.ReferencesSection].Content, "Ref") {
		t.Fatalf("references must come from indexed papers: %q", sections[generation.ReferencesSection].Content)
	}
	for _, call := range writer.calls {
		if call.Section == generation.ReferencesSection {
			t.Fatalf("references must never go through the writer")
		}
	}
}

func TestGenerationRerunMergesSections(t *testing.T) {
	writer := &stubWriter{fail: map[string]bool{"b": true}}
	catalog := generation.Catalog{model.FieldComputerScience: {"a", "b"}}
	env := newTestEnv(t, envOptions{writer: writer, catalog: catalog})
	ctx := context.Background()
	doc := newDocument(t, env, 1, model.FieldComputerScience)

	if _, err := env.documents.GenerateSection(ctx, 1, doc.ID, "notes", "extra"); err != nil {
		t.Fatalf("generate single section: %v", err)
	}
	if _, err := env.documents.RequestGeneration(ctx, 1, doc.ID); err != nil {
		t.Fatal(err)
	}
	_ = env.documents.RunGeneration(ctx, env.jobFor(t, env.publisher.last(t)))

	writer.fail = nil
	if _, err := env.documents.RequestGeneration(ctx, 1, doc.ID); err != nil {
		t.Fatalf("regenerate from error: %v", err)
	}
	if err := env.documents.RunGeneration(ctx, env.jobFor(t, env.publisher.last(t))); err != nil {
		t.Fatalf("second run: %v", err)
	}
	got, _ := env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusComplete || len(got.GenerationErrors) != 0 {
		t.Fatalf("expected clean completion, got %s %v", got.Status, got.GenerationErrors)
	}
	sections := got.SectionData()
	if sections["notes"].Content != "notes text" || sections["b"].Content != "b text" {
		t.Fatalf("sections not merged: %+v", sections)
	}
}

func TestGenerationRejectsConcurrentRequest(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	doc := newDocument(t, env, 1, model.FieldBusiness)
	if _, err := env.documents.RequestGeneration(ctx, 1, doc.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.documents.RequestGeneration(ctx, 1, doc.ID); !errors.Is(err, ErrDocumentGenerating) {
		t.Fatalf("expected ErrDocumentGenerating, got %v", err)
	}
	if _, err := env.documents.RequestGeneration(ctx, 2, doc.ID); !errors.Is(err, ErrDocumentNotFound) {
		t.Fatalf("expected not found for other owner, got %v", err)
	}
}

func TestGenerationTakesOverAbandonedJob(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	doc := newDocument(t, env, 1, model.FieldComputerScience)

	first, err := env.documents.RequestGeneration(ctx, 1, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if err := env.jobRepo.MarkRunning(first.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.documents.RequestGeneration(ctx, 1, doc.ID); !errors.Is(err, ErrDocumentGenerating) {
		t.Fatalf("live job must still block, got %v", err)
	}

	env.strandJob(t, first.ID)
	second, err := env.documents.RequestGeneration(ctx, 1, doc.ID)
	if err != nil {
		t.Fatalf("expected takeover of abandoned job, got %v", err)
	}
	got, _ := env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusGenerating || got.JobReference == nil || *got.JobReference != second.ID {
		t.Fatalf("document not handed to new job: %+v", got)
	}
	old, _ := env.jobRepo.GetByID(first.ID)
	if old.State != model.JobStateFailed {
		t.Fatalf("abandoned job should be failed, got %s", old.State)
	}

	if err := env.documents.RunGeneration(ctx, env.jobFor(t, env.publisher.last(t))); err != nil {
		t.Fatalf("run new job: %v", err)
	}
	got, _ = env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusComplete {
		t.Fatalf("expected complete, got %s", got.Status)
	}
}

func TestGenerationEnqueueFailureRestoresDocument(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.publisher.err = errors.New("broker down")
	ctx := context.Background()
	doc := newDocument(t, env, 1, model.FieldBusiness)

	if _, err := env.documents.RequestGeneration(ctx, 1, doc.ID); !errors.Is(err, ErrEnqueueFailed) {
		t.Fatalf("expected ErrEnqueueFailed, got %v", err)
	}
	got, _ := env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusError || len(got.GenerationErrors) != 1 {
		t.Fatalf("document left stuck: %+v", got)
	}
	job, err := env.jobs.Get(1, *got.JobReference)
	if err != nil || job.State != model.JobStateFailed {
		t.Fatalf("expected failed job, got %+v %v", job, err)
	}
}

func TestFailGenerationOnlyTouchesOwningJob(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	doc := newDocument(t, env, 1, model.FieldBusiness)
	if _, err := env.documents.RequestGeneration(ctx, 1, doc.ID); err != nil {
		t.Fatal(err)
	}
	stale := &model.Job{ID: "someone-else", OwnerID: 1, TargetID: doc.ID}
	env.documents.FailGeneration(ctx, stale, "crash")
	got, _ := env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusGenerating {
		t.Fatalf("stale job must not change document, got %s", got.Status)
	}

	env.documents.FailGeneration(ctx, env.jobFor(t, env.publisher.last(t)), "crash")
	got, _ = env.documents.Get(1, doc.ID)
	if got.Status != model.DocumentStatusError || got.GenerationErrors[0] != "job: crash" {
		t.Fatalf("expected error status, got %+v", got)
	}
}

func TestGenerateSectionReferencesUsesCitations(t *testing.T) {
	writer := &stubWriter{}
	env := newTestEnv(t, envOptions{writer: writer})
	ctx := context.Background()
	doc := newDocument(t, env, 1, model.FieldHealthSciences)

	got, err := env.documents.GenerateSection(ctx, 1, doc.ID, generation.ReferencesSection, "")
	if err != nil {
		t.Fatal(err)
	}
	if got.SectionData()[generation.ReferencesSection].Content == "" || len(writer.calls) != 0 {
		t.Fatalf("references must be built without the writer")
	}
	if got.Status != model.DocumentStatusDraft {
		t.Fatalf("single section must not change status, got %s", got.Status)
	}
}

func TestExportOrdersSectionsAndSanitizesFilename(t *testing.T) {
	catalog := generation.Catalog{model.FieldComputerScience: {"abstract", "introduction", generation.ReferencesSection}}
	env := newTestEnv(t, envOptions{catalog: catalog})
	ctx := context.Background()
	project := env.project(t, 1, model.FieldComputerScience)
	doc, err := env.documents.Create(1, DocumentInput{ProjectID: project.ID, Title: "Graphs: a/b <study>?"})
	if err != nil {
		t.Fatal(err)
	}
	for _, s := range []string{"zeta", "introduction", "abstract"} {
		if _, err := env.documents.GenerateSection(ctx, 1, doc.ID, s, ""); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := env.research.Save(ctx, 1, scholar.PaperData{Title: "Cited Work", Authors: []string{"A", "B"}}); err != nil {
		t.Fatal(err)
	}

	file, err := env.documents.Export(1, doc.ID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if file.Filename != "Graphs ab study.docx" {
		t.Fatalf("unexpected filename %q", file.Filename)
	}
	body := docxBody(t, file.Body)
	order := []string{"Citation style: APA", "Abstract", "Introduction", "Zeta", "References", "Cited Work"}
	last := -1
	for _, want := range order {
		idx := strings.Index(body, want)
		if idx <= last {
			t.Fatalf("%q out of order in %s", want, body)
		}
		last = idx
	}
}

func docxBody(t *testing.T, data []byte) string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		t.Fatalf("open docx: %v", err)
	}
	for _, f := range zr.File {
		if f.Name == "word/document.xml" {
			rc, err := f.Open()
			if err != nil {
				t.Fatal(err)
			}
			defer rc.Close()
			b, _ := io.ReadAll(rc)
			return string(b)
		}
	}
	t.Fatalf("document.xml missing")
	return ""
}

func TestSafeFilename(t *testing.T) {
	if got := SafeFilename("***", "document"); got != "document" {
		t.Fatalf("expected fallback, got %q", got)
	}
	long := strings.Repeat("x", 80)
	if got := SafeFilename(long, "d"); len(got) != 60 {
		t.Fatalf("expected 60 chars, got %d", len(got))
	}
}
