package generation

import (
	"context"
	"errors"
	"fmt"

	"scholarai/internal/model"
)

var ErrReferencesSection = errors.New("references section is formatted from indexed papers")

// Generator is the text-generation capability. The OpenAI-compatible client satisfies it.
type Generator interface {
	Configured() bool
	Generate(ctx context.Context, system, user string, maxTokens int) (string, error)
}

type SectionRequest struct {
	Section      string
	ProjectTitle string
	Field        string
	Papers       []model.Paper
	ExtraContext string
}

// SectionWriter produces prose for one named section.
type SectionWriter struct {
	gen       Generator
	maxTokens int
}

func NewSectionWriter(gen Generator, maxTokens int) *SectionWriter {
	if maxTokens <= 0 {
		maxTokens = 2048
	}
	return &SectionWriter{gen: gen, maxTokens: maxTokens}
}

// Write returns a marked placeholder instead of failing when no credential is configured.
func (w *SectionWriter) Write(ctx context.Context, req SectionRequest) (string, error) {
	if req.Section == ReferencesSection {
		return "", ErrReferencesSection
	}
	if w.gen == nil || !w.gen.Configured() {
		return fmt.Sprintf("[%s — AI generation requires LLM_API_KEY]", Humanize(req.Section)), nil
	}
	system := SystemPrompt(req.ProjectTitle, req.Field, req.Papers)
	out, err := w.gen.Generate(ctx, system, UserPrompt(req.Section, req.ExtraContext), w.maxTokens)
	if err != nil {
		return "", fmt.Errorf("generate section %s failed: %w", req.Section, err)
	}
	return out, nil
}
