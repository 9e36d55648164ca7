package app

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"testing"

	"scholarai/internal/generation"
	"scholarai/internal/model"
)

func newPrototype(t *testing.T, env *testEnv) *model.Prototype {
	t.Helper()
	project := env.project(t, 1, model.FieldComputerScience)
	p, err := env.prototypes.Create(1, PrototypeInput{ProjectID: project.ID, Title: "Sentiment Bot", Type: model.PrototypeChatbot})
	if err != nil {
		t.Fatalf("create prototype: %v", err)
	}
	return p
}

func TestBuildConflictLeavesInFlightBuildAlone(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	p := newPrototype(t, env)

	if _, err := env.prototypes.RequestBuild(ctx, 1, p.ID); err != nil {
		t.Fatalf("first build: %v", err)
	}
	before, _ := env.prototypes.Get(1, p.ID)

	if _, err := env.prototypes.RequestBuild(ctx, 1, p.ID); !errors.Is(err, ErrPrototypeBuilding) {
		t.Fatalf("expected ErrPrototypeBuilding, got %v", err)
	}
	title := "renamed"
	if _, err := env.prototypes.Update(1, p.ID, PrototypePatch{Title: &title}); !errors.Is(err, ErrPrototypeBuilding) {
		t.Fatalf("expected edit conflict, got %v", err)
	}
	if err := env.prototypes.Delete(1, p.ID); !errors.Is(err, ErrPrototypeBuilding) {
		t.Fatalf("expected delete conflict, got %v", err)
	}

	after, _ := env.prototypes.Get(1, p.ID)
	if after.GeneratedCode != nil || *after.BuildLog != *before.BuildLog || *after.JobReference != *before.JobReference {
		t.Fatalf("in-flight build was modified: before=%+v after=%+v", before, after)
	}

	if err := env.prototypes.RunBuild(ctx, env.jobFor(t, env.publisher.last(t))); err != nil {
		t.Fatalf("run build: %v", err)
	}
	done, _ := env.prototypes.Get(1, p.ID)
	if done.Status != model.PrototypeStatusReady || *done.GeneratedCode != "print('hi')" || *done.BuildLog != buildSuccessLog {
		t.Fatalf("unexpected finished prototype %+v", done)
	}
}

func TestBuildTakesOverAbandonedJob(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	ctx := context.Background()
	p := newPrototype(t, env)

	first, err := env.prototypes.RequestBuild(ctx, 1, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	env.strandJob(t, first.ID)

	second, err := env.prototypes.RequestBuild(ctx, 1, p.ID)
	if err != nil {
		t.Fatalf("expected takeover of abandoned build, got %v", err)
	}
	got, _ := env.prototypes.Get(1, p.ID)
	if got.Status != model.PrototypeStatusBuilding || *got.JobReference != second.ID || *got.BuildLog != buildStartLog {
		t.Fatalf("prototype not handed to new job: %+v", got)
	}

	// The stranded job is inert even if it is delivered later.
	if err := env.prototypes.RunBuild(ctx, first); err == nil {
		t.Fatalf("superseded job must not build")
	}
	if err := env.prototypes.RunBuild(ctx, env.jobFor(t, env.publisher.last(t))); err != nil {
		t.Fatalf("run new job: %v", err)
	}
	got, _ = env.prototypes.Get(1, p.ID)
	if got.Status != model.PrototypeStatusReady {
		t.Fatalf("expected ready, got %s", got.Status)
	}
}

func TestBuildFailureRecordsLog(t *testing.T) {
	env := newTestEnv(t, envOptions{coder: &stubCoder{err: errors.New("rate limited")}})
	ctx := context.Background()
	p := newPrototype(t, env)
	if _, err := env.prototypes.RequestBuild(ctx, 1, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.prototypes.RunBuild(ctx, env.jobFor(t, env.publisher.last(t))); err == nil {
		t.Fatalf("expected build error")
	}
	got, _ := env.prototypes.Get(1, p.ID)
	if got.Status != model.PrototypeStatusError || *got.BuildLog != "Build failed: rate limited" || got.GeneratedCode != nil {
		t.Fatalf("unexpected prototype %+v", got)
	}
}

func TestDownloadRequiresReadyBuild(t *testing.T) {
	env := newTestEnv(t, envOptions{coder: &stubCoder{code: "import gradio"}})
	ctx := context.Background()
	p := newPrototype(t, env)

	if _, err := env.prototypes.Download(1, p.ID); !errors.Is(err, ErrPrototypeNotReady) {
		t.Fatalf("draft download: expected ErrPrototypeNotReady, got %v", err)
	}
	if _, err := env.prototypes.RequestBuild(ctx, 1, p.ID); err != nil {
		t.Fatal(err)
	}
	if _, err := env.prototypes.Download(1, p.ID); !errors.Is(err, ErrPrototypeNotReady) {
		t.Fatalf("building download: expected ErrPrototypeNotReady, got %v", err)
	}
	if err := env.prototypes.RunBuild(ctx, env.jobFor(t, env.publisher.last(t))); err != nil {
		t.Fatal(err)
	}

	file, err := env.prototypes.Download(1, p.ID)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	if file.Filename != "Sentiment Bot.zip" {
		t.Fatalf("unexpected filename %q", file.Filename)
	}
	zr, err := zip.NewReader(bytes.NewReader(file.Body), int64(len(file.Body)))
	if err != nil {
		t.Fatal(err)
	}
	names := map[string]bool{}
	for _, f := range zr.File {
		names[f.Name] = true
	}
	for _, want := range []string{"app.py", "requirements.txt", "README.md"} {
		if !names[want] {
			t.Fatalf("archive missing %s", want)
		}
	}
}

func TestBuildEnqueueFailureMarksError(t *testing.T) {
	env := newTestEnv(t, envOptions{})
	env.publisher.err = errors.New("broker down")
	p := newPrototype(t, env)
	if _, err := env.prototypes.RequestBuild(context.Background(), 1, p.ID); !errors.Is(err, ErrEnqueueFailed) {
		t.Fatalf("expected ErrEnqueueFailed, got %v", err)
	}
	got, _ := env.prototypes.Get(1, p.ID)
	if got.Status != model.PrototypeStatusError {
		t.Fatalf("prototype left in %s", got.Status)
	}
	status, err := env.prototypes.Status(1, p.ID)
	if err != nil || status.BuildLog == nil || *status.BuildLog == "" {
		t.Fatalf("expected build log in status, got %+v %v", status, err)
	}
}

func TestDownloadUsesDefaultRequirements(t *testing.T) {
	env := newTestEnv(t, envOptions{coder: &stubCoder{code: "x = 1"}})
	ctx := context.Background()
	p := newPrototype(t, env)
	if _, err := env.prototypes.RequestBuild(ctx, 1, p.ID); err != nil {
		t.Fatal(err)
	}
	if err := env.prototypes.RunBuild(ctx, env.jobFor(t, env.publisher.last(t))); err != nil {
		t.Fatal(err)
	}
	file, err := env.prototypes.Download(1, p.ID)
	if err != nil {
		t.Fatal(err)
	}
	zr, _ := zip.NewReader(bytes.NewReader(file.Body), int64(len(file.Body)))
	for _, f := range zr.File {
		if f.Name != "requirements.txt" {
			continue
		}
		rc, _ := f.Open()
		var buf bytes.Buffer
		_, _ = buf.ReadFrom(rc)
		rc.Close()
		if buf.String() != generation.DefaultRequirements {
			t.Fatalf("expected default requirements, got %q", buf.String())
		}
	}
}
