package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"gorm.io/datatypes"

	"scholarai/internal/logger"
	"scholarai/internal/model"
	"scholarai/internal/pkg/pdfextract"
	"scholarai/internal/repository"
	"scholarai/internal/scholar"
	"scholarai/internal/vector"
)

const (
	fallbackScore      = 0.5
	defaultSearchLimit = 10
	maxSearchLimit     = 50
	maxUploadAbstract  = 2000
	maxBulkQueries     = 20
)

// PaperResolver looks papers up in external bibliographic sources.
type PaperResolver interface {
	ByDOI(ctx context.Context, doi string) scholar.LookupResult
	ByArxivID(ctx context.Context, arxivID string) scholar.LookupResult
	Search(ctx context.Context, query string, limit int) ([]scholar.PaperData, []error)
}

type ResearchService struct {
	paperRepo *repository.PaperRepository
	resolver  PaperResolver
	vectors   vector.Store
	jobs      *JobService
	log       *logger.Logger
}

// IngestInput selects exactly one strategy: DOI, then arXiv id, then free text.
type IngestInput struct {
	DOI     string
	ArxivID string
	Query   string
	Limit   int
}

type ManualPaperInput struct {
	Title     string
	Abstract  string
	Authors   []string
	Year      *int
	DOI       string
	URL       string
	FieldTags []string
}

type ScoredPaper struct {
	Paper model.Paper `json:"paper"`
	Score float64     `json:"score"`
}

type BulkIngestPayload struct {
	Queries       []string `json:"queries"`
	LimitPerQuery int      `json:"limit_per_query"`
}

type BulkIngestResult struct {
	Ingested int      `json:"ingested"`
	Errors   []string `json:"errors"`
}

func NewResearchService(
	paperRepo *repository.PaperRepository,
	resolver PaperResolver,
	vectors vector.Store,
	jobs *JobService,
	log *logger.Logger,
) *ResearchService {
	return &ResearchService{
		paperRepo: paperRepo,
		resolver:  resolver,
		vectors:   vectors,
		jobs:      jobs,
		log:       log.With("service", "research"),
	}
}

func (s *ResearchService) Ingest(ctx context.Context, ownerID uint, input IngestInput) ([]model.Paper, error) {
	doi := strings.TrimSpace(input.DOI)
	arxivID := strings.TrimSpace(input.ArxivID)
	query := strings.TrimSpace(input.Query)

	switch {
	case doi != "":
		return s.ingestByDOI(ctx, ownerID, doi)
	case arxivID != "":
		return s.ingestLookup(ctx, ownerID, s.resolver.ByArxivID(ctx, arxivID))
	case query != "":
		found, _ := s.resolver.Search(ctx, query, input.Limit)
		saved := make([]model.Paper, 0, len(found))
		for _, data := range found {
			p, err := s.Save(ctx, ownerID, data)
			if err != nil {
				return nil, err
			}
			saved = append(saved, *p)
		}
		return saved, nil
	default:
		return nil, ErrInvalidInput
	}
}

// ingestByDOI returns the owner's row for the DOI without a lookup when one
// exists. Sources that omit the DOI get the requested one so the row stays
// unique per (owner, DOI).
func (s *ResearchService) ingestByDOI(ctx context.Context, ownerID uint, doi string) ([]model.Paper, error) {
	normalized := scholar.NormalizeDOI(doi)
	if ownerID == 0 || normalized == "" {
		return nil, ErrInvalidInput
	}
	existing, err := s.paperRepo.GetByOwnerAndDOI(ownerID, normalized)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return []model.Paper{*existing}, nil
	}

	res := s.resolver.ByDOI(ctx, normalized)
	if res.Status == scholar.LookupFound && res.Paper != nil && scholar.NormalizeDOI(res.Paper.DOI) == "" {
		data := *res.Paper
		data.DOI = normalized
		res.Paper = &data
	}
	return s.ingestLookup(ctx, ownerID, res)
}

func (s *ResearchService) ingestLookup(ctx context.Context, ownerID uint, res scholar.LookupResult) ([]model.Paper, error) {
	switch res.Status {
	case scholar.LookupFound:
		p, err := s.Save(ctx, ownerID, *res.Paper)
		if err != nil {
			return nil, err
		}
		return []model.Paper{*p}, nil
	case scholar.LookupNotFound:
		return nil, ErrPaperNotFound
	default:
		return nil, ErrPaperSourceDown
	}
}

// Save persists paper metadata for the owner. A DOI the owner already holds
// returns the existing row unchanged. New rows are indexed for semantic search.
func (s *ResearchService) Save(ctx context.Context, ownerID uint, data scholar.PaperData) (*model.Paper, error) {
	if ownerID == 0 || strings.TrimSpace(data.Title) == "" {
		return nil, ErrInvalidInput
	}

	var doi *string
	if d := scholar.NormalizeDOI(data.DOI); d != "" {
		doi = &d
		existing, err := s.paperRepo.GetByOwnerAndDOI(ownerID, d)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			return existing, nil
		}
	}

	source := data.Source
	if source == "" {
		source = model.PaperSourceManual
	}
	authors := data.Authors
	if authors == nil {
		authors = []string{}
	}
	tags := data.FieldTags
	if tags == nil {
		tags = []string{}
	}
	link := data.URL
	if utf8.RuneCountInString(link) > model.MaxPaperURLLen {
		// A cut URL is not a link any more.
		link = ""
	}
	paper := &model.Paper{
		OwnerID:       ownerID,
		Title:         truncateRunes(strings.TrimSpace(data.Title), model.MaxPaperTitleLen),
		Abstract:      strings.TrimSpace(data.Abstract),
		Authors:       datatypes.JSONSlice[string](authors),
		Year:          data.Year,
		DOI:           doi,
		URL:           link,
		Source:        source,
		FieldTags:     datatypes.JSONSlice[string](tags),
		CitationCount: data.CitationCount,
	}
	if err := s.paperRepo.Create(paper); err != nil {
		if errors.Is(err, repository.ErrDuplicate) && doi != nil {
			// Lost a race with a concurrent ingest of the same DOI.
			existing, getErr := s.paperRepo.GetByOwnerAndDOI(ownerID, *doi)
			if getErr != nil {
				return nil, getErr
			}
			if existing != nil {
				return existing, nil
			}
		}
		return nil, err
	}

	s.index(ctx, paper)
	return paper, nil
}

func (s *ResearchService) index(ctx context.Context, paper *model.Paper) {
	key := strconv.FormatUint(uint64(paper.ID), 10)
	year := 0
	if paper.Year != nil {
		year = *paper.Year
	}
	meta := map[string]string{
		"paper_id": key,
		"owner_id": strconv.FormatUint(uint64(paper.OwnerID), 10),
		"year":     strconv.Itoa(year),
		"source":   paper.Source,
	}
	if err := s.vectors.Upsert(ctx, key, indexText(paper), meta); err != nil {
		s.log.Warn("vector upsert failed", "paper_id", paper.ID, "error", err)
		return
	}
	if err := s.paperRepo.SetVectorKey(paper.ID, key); err != nil {
		s.log.Warn("store vector key failed", "paper_id", paper.ID, "error", err)
		return
	}
	paper.VectorKey = &key
}

func indexText(p *model.Paper) string {
	return strings.TrimSpace(p.Title + "\n\n" + p.Abstract)
}

func (s *ResearchService) CreateManual(ctx context.Context, ownerID uint, input ManualPaperInput) (*model.Paper, error) {
	if strings.TrimSpace(input.Title) == "" {
		return nil, ErrInvalidInput
	}
	return s.Save(ctx, ownerID, scholar.PaperData{
		Title:     input.Title,
		Abstract:  input.Abstract,
		Authors:   input.Authors,
		Year:      input.Year,
		DOI:       input.DOI,
		URL:       input.URL,
		Source:    model.PaperSourceManual,
		FieldTags: input.FieldTags,
	})
}

// UploadPDF creates a manual paper from a PDF. The title defaults to the first text line.
func (s *ResearchService) UploadPDF(ctx context.Context, ownerID uint, title string, r io.Reader) (*model.Paper, error) {
	doc, err := pdfextract.Extract(r)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	abstract := doc.Body
	title = strings.TrimSpace(title)
	if title == "" {
		title = doc.Title
	} else if doc.Title != "" {
		abstract = strings.TrimSpace(doc.Title + " " + doc.Body)
	}
	if title == "" {
		return nil, fmt.Errorf("%w: pdf has no extractable text", ErrInvalidInput)
	}
	title = truncateRunes(title, 255)
	abstract = truncateRunes(abstract, maxUploadAbstract)
	return s.Save(ctx, ownerID, scholar.PaperData{
		Title:    title,
		Abstract: abstract,
		Source:   model.PaperSourceManual,
	})
}

func (s *ResearchService) List(ownerID uint, offset, limit int) ([]model.Paper, int64, error) {
	if ownerID == 0 {
		return nil, 0, ErrInvalidInput
	}
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return s.paperRepo.ListByOwnerID(ownerID, offset, limit)
}

func (s *ResearchService) Get(ownerID, id uint) (*model.Paper, error) {
	paper, err := s.paperRepo.GetByIDAndOwnerID(id, ownerID)
	if err != nil {
		return nil, err
	}
	if paper == nil {
		return nil, ErrPaperNotFound
	}
	return paper, nil
}

func (s *ResearchService) Delete(ctx context.Context, ownerID, id uint) error {
	paper, err := s.Get(ownerID, id)
	if err != nil {
		return err
	}
	if paper.VectorKey != nil {
		if err := s.vectors.Delete(ctx, *paper.VectorKey); err != nil {
			s.log.Warn("vector delete failed", "paper_id", paper.ID, "error", err)
		}
	}
	return s.paperRepo.DeleteByIDAndOwnerID(id, ownerID)
}

// Search ranks the owner's papers by vector similarity. When the index yields
// no owned papers it falls back to a title substring match scored 0.5.
func (s *ResearchService) Search(ctx context.Context, ownerID uint, query string, limit int) ([]ScoredPaper, error) {
	query = strings.TrimSpace(query)
	if ownerID == 0 || query == "" {
		return nil, ErrInvalidInput
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}

	results, err := s.vectorSearch(ctx, ownerID, query, limit)
	if err != nil {
		return nil, err
	}
	if len(results) > 0 {
		return results, nil
	}

	papers, err := s.paperRepo.SearchTitle(ownerID, query, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ScoredPaper, 0, len(papers))
	for _, p := range papers {
		out = append(out, ScoredPaper{Paper: p, Score: fallbackScore})
	}
	return out, nil
}

func (s *ResearchService) vectorSearch(ctx context.Context, ownerID uint, query string, limit int) ([]ScoredPaper, error) {
	hits, err := s.vectors.Query(ctx, query, limit, map[string]string{
		"owner_id": strconv.FormatUint(uint64(ownerID), 10),
	})
	if err != nil {
		s.log.Warn("vector query failed, using title match", "error", err)
		return nil, nil
	}

	ids := make([]uint, 0, len(hits))
	scores := make(map[uint]float64, len(hits))
	for _, h := range hits {
		id, err := strconv.ParseUint(h.Key, 10, 64)
		if err != nil {
			continue
		}
		if _, seen := scores[uint(id)]; seen {
			continue
		}
		ids = append(ids, uint(id))
		score := 1 - h.Distance
		if score < 0 {
			score = 0
		}
		scores[uint(id)] = score
	}

	papers, err := s.paperRepo.ListByIDsAndOwnerID(ids, ownerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[uint]model.Paper, len(papers))
	for _, p := range papers {
		byID[p.ID] = p
	}
	out := make([]ScoredPaper, 0, len(papers))
	for _, id := range ids {
		if p, ok := byID[id]; ok {
			out = append(out, ScoredPaper{Paper: p, Score: scores[id]})
		}
	}
	return out, nil
}

// RequestBulkIngest queues a background ingest of several free-text queries.
func (s *ResearchService) RequestBulkIngest(ctx context.Context, ownerID uint, payload BulkIngestPayload) (*model.Job, error) {
	var queries []string
	for _, q := range payload.Queries {
		if q = strings.TrimSpace(q); q != "" {
			queries = append(queries, q)
		}
	}
	if ownerID == 0 || len(queries) == 0 || len(queries) > maxBulkQueries {
		return nil, ErrInvalidInput
	}
	payload.Queries = queries
	return s.jobs.Enqueue(ctx, "", model.JobKindPaperBulkIngest, 0, ownerID, payload)
}

// RunBulkIngest fails the job only when nothing could be ingested.
func (s *ResearchService) RunBulkIngest(ctx context.Context, job *model.Job) error {
	var payload BulkIngestPayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("decode bulk ingest payload failed: %w", err)
	}
	result := s.BulkIngest(ctx, job.OwnerID, payload)
	if len(result.Errors) > 0 {
		if result.Ingested == 0 {
			return errors.New(strings.Join(result.Errors, "; "))
		}
		s.log.Warn("bulk ingest partially failed", "job_id", job.ID, "ingested", result.Ingested, "errors", result.Errors)
	}
	s.log.Info("bulk ingest complete", "job_id", job.ID, "ingested", result.Ingested)
	return nil
}

// BulkIngest runs every query against both sources and saves each result.
func (s *ResearchService) BulkIngest(ctx context.Context, ownerID uint, payload BulkIngestPayload) BulkIngestResult {
	result := BulkIngestResult{Errors: []string{}}
	for _, q := range payload.Queries {
		q = strings.TrimSpace(q)
		if q == "" {
			continue
		}
		found, failures := s.resolver.Search(ctx, q, payload.LimitPerQuery)
		for _, f := range failures {
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", q, f))
		}
		for _, data := range found {
			if _, err := s.Save(ctx, ownerID, data); err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", q, err))
				continue
			}
			result.Ingested++
		}
	}
	return result
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
