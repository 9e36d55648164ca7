package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
	"unicode"

	"gorm.io/datatypes"

	"scholarai/internal/citation"
	"scholarai/internal/generation"
	"scholarai/internal/logger"
	"scholarai/internal/model"
	"scholarai/internal/pkg/docx"
	"scholarai/internal/repository"
)

const (
	sectionPaperLimit    = 8
	generationPaperLimit = 10
	exportPaperLimit     = 20
	saveAttempts         = 3
	maxFilenameRunes     = 60
)

// SectionWriter writes the prose for one section.
type SectionWriter interface {
	Write(ctx context.Context, req generation.SectionRequest) (string, error)
}

type DocumentService struct {
	docRepo     *repository.DocumentRepository
	projectRepo *repository.ProjectRepository
	paperRepo   *repository.PaperRepository
	jobs        *JobService
	writer      SectionWriter
	catalog     generation.Catalog
	log         *logger.Logger
	now         func() time.Time
}

type DocumentInput struct {
	ProjectID     uint
	Title         string
	CitationStyle string
}

type DocumentPatch struct {
	Title         *string
	CitationStyle *string
}

type ExportFile struct {
	Filename string
	Body     []byte
}

func NewDocumentService(
	docRepo *repository.DocumentRepository,
	projectRepo *repository.ProjectRepository,
	paperRepo *repository.PaperRepository,
	jobs *JobService,
	writer SectionWriter,
	catalog generation.Catalog,
	log *logger.Logger,
) *DocumentService {
	return &DocumentService{
		docRepo:     docRepo,
		projectRepo: projectRepo,
		paperRepo:   paperRepo,
		jobs:        jobs,
		writer:      writer,
		catalog:     catalog,
		log:         log.With("service", "document"),
		now:         func() time.Time { return time.Now().UTC() },
	}
}

func (s *DocumentService) Create(ownerID uint, input DocumentInput) (*model.Document, error) {
	title := strings.TrimSpace(input.Title)
	style := strings.ToLower(strings.TrimSpace(input.CitationStyle))
	if style == "" {
		style = model.CitationAPA
	}
	if ownerID == 0 || title == "" || !model.ValidCitationStyle(style) {
		return nil, ErrInvalidInput
	}
	project, err := s.projectRepo.GetByIDAndOwnerID(input.ProjectID, ownerID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	doc := &model.Document{
		ProjectID:     project.ID,
		OwnerID:       ownerID,
		Title:         title,
		CitationStyle: style,
		Status:        model.DocumentStatusDraft,
	}
	if err := s.docRepo.Create(doc); err != nil {
		return nil, err
	}
	return doc, nil
}

func (s *DocumentService) List(ownerID, projectID uint) ([]model.Document, error) {
	if ownerID == 0 {
		return nil, ErrInvalidInput
	}
	return s.docRepo.ListByOwnerID(ownerID, projectID)
}

func (s *DocumentService) Get(ownerID, id uint) (*model.Document, error) {
	doc, err := s.docRepo.GetByIDAndOwnerID(id, ownerID)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, ErrDocumentNotFound
	}
	return doc, nil
}

// Update edits title and citation style. Both are allowed while a run is in flight.
func (s *DocumentService) Update(ownerID, id uint, patch DocumentPatch) (*model.Document, error) {
	var title, style string
	if patch.Title != nil {
		if title = strings.TrimSpace(*patch.Title); title == "" {
			return nil, ErrInvalidInput
		}
	}
	if patch.CitationStyle != nil {
		if style = strings.ToLower(strings.TrimSpace(*patch.CitationStyle)); !model.ValidCitationStyle(style) {
			return nil, ErrInvalidInput
		}
	}
	return s.updateDocument(ownerID, id, func(doc *model.Document) error {
		if title != "" {
			doc.Title = title
		}
		if style != "" {
			doc.CitationStyle = style
		}
		return nil
	})
}

func (s *DocumentService) Delete(ownerID, id uint) error {
	if _, err := s.Get(ownerID, id); err != nil {
		return err
	}
	return s.docRepo.DeleteByIDAndOwnerID(id, ownerID)
}

// updateDocument reloads, mutates and saves with a version check, retrying on stale versions.
func (s *DocumentService) updateDocument(ownerID, id uint, mutate func(*model.Document) error) (*model.Document, error) {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		doc, err := s.Get(ownerID, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(doc); err != nil {
			return nil, err
		}
		err = s.docRepo.Save(doc)
		if err == nil {
			return doc, nil
		}
		if !errors.Is(err, repository.ErrStaleVersion) {
			return nil, err
		}
	}
	return nil, ErrConcurrentUpdate
}

// RequestGeneration marks the document generating and queues a full run.
func (s *DocumentService) RequestGeneration(ctx context.Context, ownerID, id uint) (*model.Job, error) {
	if _, err := s.Get(ownerID, id); err != nil {
		return nil, err
	}
	jobID := s.jobs.NewID()
	ok, err := s.docRepo.BeginGeneration(id, ownerID, jobID)
	if err != nil {
		return nil, err
	}
	if !ok {
		if ok, err = s.takeOverGeneration(ownerID, id, jobID); err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrDocumentGenerating
		}
	}

	job, err := s.jobs.Enqueue(ctx, jobID, model.JobKindDocumentGenerate, id, ownerID, nil)
	if err != nil {
		s.abortGeneration(ownerID, id, "enqueue: "+err.Error())
		return nil, err
	}
	return job, nil
}

// takeOverGeneration claims a document left generating by an abandoned job.
func (s *DocumentService) takeOverGeneration(ownerID, id uint, jobID string) (bool, error) {
	doc, err := s.Get(ownerID, id)
	if err != nil {
		return false, err
	}
	if doc.Status != model.DocumentStatusGenerating {
		return false, nil
	}
	stale := ""
	if doc.JobReference != nil {
		stale = *doc.JobReference
	}
	abandoned, err := s.jobs.Abandoned(stale)
	if err != nil || !abandoned {
		return false, err
	}
	ok, err := s.docRepo.TakeOverGeneration(id, ownerID, stale, jobID)
	if err != nil || !ok {
		return false, err
	}
	s.log.Warn("took over abandoned generation", "document_id", id, "stale_job_id", stale, "job_id", jobID)
	s.jobs.Supersede(stale, jobID)
	return true, nil
}

func (s *DocumentService) abortGeneration(ownerID, id uint, entry string) {
	_, err := s.updateDocument(ownerID, id, func(doc *model.Document) error {
		doc.Status = model.DocumentStatusError
		doc.GenerationErrors = append(doc.GenerationErrors, entry)
		return nil
	})
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		s.log.Error("restore document status failed", "document_id", id, "error", err)
	}
}

// GenerateSection writes one section synchronously and merges it into the document.
// The top-level status is left as is.
func (s *DocumentService) GenerateSection(ctx context.Context, ownerID, id uint, section, extraContext string) (*model.Document, error) {
	section = strings.TrimSpace(section)
	if section == "" {
		return nil, ErrInvalidInput
	}
	doc, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	field, err := s.fieldFor(doc)
	if err != nil {
		return nil, err
	}
	papers, err := s.paperRepo.ListRecent(ownerID, sectionPaperLimit)
	if err != nil {
		return nil, err
	}
	content, err := s.sectionContent(ctx, section, doc, field, papers, extraContext)
	if err != nil {
		return nil, err
	}
	at := s.now()
	return s.updateDocument(ownerID, id, func(d *model.Document) error {
		sections := d.SectionData()
		sections[section] = model.Section{Content: content, GeneratedAt: at}
		d.Sections = datatypes.NewJSONType(sections)
		return nil
	})
}

func (s *DocumentService) sectionContent(
	ctx context.Context,
	section string,
	doc *model.Document,
	field string,
	papers []model.Paper,
	extraContext string,
) (string, error) {
	if section == generation.ReferencesSection {
		return citation.References(papers, doc.CitationStyle), nil
	}
	return s.writer.Write(ctx, generation.SectionRequest{
		Section:      section,
		ProjectTitle: doc.Title,
		Field:        field,
		Papers:       papers,
		ExtraContext: extraContext,
	})
}

func (s *DocumentService) fieldFor(doc *model.Document) (string, error) {
	project, err := s.projectRepo.GetByIDAndOwnerID(doc.ProjectID, doc.OwnerID)
	if err != nil {
		return "", err
	}
	if project == nil {
		return model.FieldComputerScience, nil
	}
	return project.Field, nil
}

// RunGeneration walks the field's sections in order. A failing section is
// recorded and skipped; the document always ends complete or error.
func (s *DocumentService) RunGeneration(ctx context.Context, job *model.Job) error {
	log := s.log.With("job_id", job.ID, "document_id", job.TargetID)

	doc, err := s.updateDocument(job.OwnerID, job.TargetID, func(d *model.Document) error {
		if d.JobReference != nil && *d.JobReference != job.ID {
			return fmt.Errorf("%w: document claimed by job %s", ErrConflict, *d.JobReference)
		}
		d.Status = model.DocumentStatusGenerating
		d.JobReference = &job.ID
		d.GenerationErrors = datatypes.JSONSlice[string]{}
		return nil
	})
	if err != nil {
		return err
	}

	field, err := s.fieldFor(doc)
	if err != nil {
		s.finishGeneration(job, []string{"setup: " + err.Error()})
		return err
	}
	papers, err := s.paperRepo.ListRecent(job.OwnerID, generationPaperLimit)
	if err != nil {
		s.finishGeneration(job, []string{"setup: " + err.Error()})
		return err
	}

	var failures []string
	for _, section := range s.catalog.Sections(field) {
		content, err := s.safeSection(ctx, section, doc, field, papers)
		if err != nil {
			log.Warn("section generation failed", "section", section, "error", err)
			failures = append(failures, fmt.Sprintf("%s: %v", section, err))
			continue
		}
		at := s.now()
		doc, err = s.updateDocument(job.OwnerID, job.TargetID, func(d *model.Document) error {
			sections := d.SectionData()
			sections[section] = model.Section{Content: content, GeneratedAt: at}
			d.Sections = datatypes.NewJSONType(sections)
			return nil
		})
		if err != nil {
			if errors.Is(err, ErrDocumentNotFound) {
				log.Info("document deleted during generation")
				return nil
			}
			failures = append(failures, fmt.Sprintf("%s: %v", section, err))
			continue
		}
	}

	s.finishGeneration(job, failures)
	if len(failures) > 0 {
		return fmt.Errorf("%d section(s) failed: %s", len(failures), strings.Join(failures, "; "))
	}
	log.Info("document generation complete")
	return nil
}

func (s *DocumentService) safeSection(ctx context.Context, section string, doc *model.Document, field string, papers []model.Paper) (content string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.sectionContent(ctx, section, doc, field, papers, "")
}

func (s *DocumentService) finishGeneration(job *model.Job, failures []string) {
	_, err := s.updateDocument(job.OwnerID, job.TargetID, func(d *model.Document) error {
		d.GenerationErrors = append(d.GenerationErrors, failures...)
		if len(d.GenerationErrors) > 0 {
			d.Status = model.DocumentStatusError
		} else {
			d.Status = model.DocumentStatusComplete
		}
		return nil
	})
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		s.log.Error("finish document generation failed", "job_id", job.ID, "error", err)
	}
}

// FailGeneration leaves the document in error after the worker gave up on a job.
func (s *DocumentService) FailGeneration(_ context.Context, job *model.Job, reason string) {
	_, err := s.updateDocument(job.OwnerID, job.TargetID, func(d *model.Document) error {
		if d.Status != model.DocumentStatusGenerating || d.JobReference == nil || *d.JobReference != job.ID {
			return nil
		}
		d.Status = model.DocumentStatusError
		d.GenerationErrors = append(d.GenerationErrors, "job: "+reason)
		return nil
	})
	if err != nil && !errors.Is(err, ErrDocumentNotFound) {
		s.log.Error("fail document generation failed", "job_id", job.ID, "error", err)
	}
}

// Export renders the document as DOCX. Sections follow the field order and
// extra sections follow alphabetically; references are rebuilt from papers.
func (s *DocumentService) Export(ownerID, id uint) (*ExportFile, error) {
	doc, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	field, err := s.fieldFor(doc)
	if err != nil {
		return nil, err
	}
	papers, err := s.paperRepo.ListRecent(ownerID, exportPaperLimit)
	if err != nil {
		return nil, err
	}

	b := docx.New()
	b.Title(doc.Title)
	b.Note(fmt.Sprintf("Citation style: %s | Generated: %s",
		strings.ToUpper(doc.CitationStyle), s.now().Format("2006-01-02")))

	sections := doc.SectionData()
	for _, name := range exportOrder(s.catalog.Sections(field), sections) {
		content := strings.TrimSpace(sections[name].Content)
		if content == "" {
			continue
		}
		b.Heading(generation.Humanize(name))
		b.Paragraphs(content)
	}
	if len(papers) > 0 {
		b.Heading("References")
		b.Paragraphs(citation.References(papers, doc.CitationStyle))
	}

	body, err := b.Bytes()
	if err != nil {
		return nil, err
	}
	return &ExportFile{Filename: SafeFilename(doc.Title, "document") + ".docx", Body: body}, nil
}

func exportOrder(catalog []string, sections model.SectionMap) []string {
	seen := make(map[string]bool, len(catalog))
	var order []string
	for _, name := range catalog {
		seen[name] = true
		if _, ok := sections[name]; ok && name != generation.ReferencesSection {
			order = append(order, name)
		}
	}
	var extra []string
	for name := range sections {
		if !seen[name] && name != generation.ReferencesSection {
			extra = append(extra, name)
		}
	}
	sort.Strings(extra)
	return append(order, extra...)
}

// SafeFilename keeps letters, digits, space, underscore and dash, capped at 60 runes.
func SafeFilename(title, fallback string) string {
	var b strings.Builder
	n := 0
	for _, r := range title {
		if n == maxFilenameRunes {
			break
		}
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' || r == '_' || r == '-' {
			b.WriteRune(r)
			n++
		}
	}
	if out := strings.TrimSpace(b.String()); out != "" {
		return out
	}
	return fallback
}
