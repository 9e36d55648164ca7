package scholar

import (
	"context"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"scholarai/internal/config"
	"scholarai/internal/logger"
)

// MaxPerSource bounds each source's share of a free-text search.
const MaxPerSource = 10

// MetadataCache stores found lookups. A nil cache disables caching.
type MetadataCache interface {
	Get(ctx context.Context, key string, out interface{}) (bool, error)
	Set(ctx context.Context, key string, v interface{}) error
}

// Resolver fronts the bibliographic sources. Upstream failures never escape
// as errors from lookups: they become LookupUnavailable or an empty list.
type Resolver struct {
	ss           *SemanticScholarClient
	arxiv        *ArxivClient
	cache        MetadataCache
	log          *logger.Logger
	maxPerSource int
}

func NewResolver(ss *SemanticScholarClient, arxiv *ArxivClient, cache MetadataCache, log *logger.Logger) *Resolver {
	return &Resolver{
		ss:           ss,
		arxiv:        arxiv,
		cache:        cache,
		log:          log,
		maxPerSource: MaxPerSource,
	}
}

// NewResolverFromConfig wires both sources with one shared http client.
func NewResolverFromConfig(cfg config.SourcesConfig, cache MetadataCache, log *logger.Logger) *Resolver {
	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	httpClient := &http.Client{Timeout: timeout}
	policy := RetryPolicy{
		MaxAttempts: cfg.MaxAttempts,
		BaseDelay:   time.Duration(cfg.BaseDelayMillis) * time.Millisecond,
		MaxDelay:    time.Duration(cfg.MaxDelayMillis) * time.Millisecond,
	}
	r := NewResolver(
		NewSemanticScholarClient(cfg.SemanticScholarURL, httpClient, policy),
		NewArxivClient(cfg.ArxivURL, httpClient, policy),
		cache,
		log,
	)
	if cfg.MaxResults > 0 && cfg.MaxResults < MaxPerSource {
		r.maxPerSource = cfg.MaxResults
	}
	return r
}

func (r *Resolver) ByDOI(ctx context.Context, doi string) LookupResult {
	doi = NormalizeDOI(doi)
	return r.cached(ctx, "scholar:doi:"+doi, func() LookupResult {
		return r.ss.ByDOI(ctx, doi)
	})
}

func (r *Resolver) ByArxivID(ctx context.Context, arxivID string) LookupResult {
	arxivID = strings.TrimSpace(arxivID)
	return r.cached(ctx, "scholar:arxiv:"+arxivID, func() LookupResult {
		return r.arxiv.ByID(ctx, arxivID)
	})
}

// Search queries both sources concurrently and concatenates Semantic Scholar
// results before arXiv results. Per-source failures are returned alongside
// whatever the other source produced.
func (r *Resolver) Search(ctx context.Context, query string, limit int) ([]PaperData, []error) {
	limit = r.clamp(limit)

	var ssPapers, arxivPapers []PaperData
	var ssErr, arxivErr error

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		ssPapers, ssErr = r.ss.Search(gctx, query, limit)
		return nil
	})
	g.Go(func() error {
		arxivPapers, arxivErr = r.arxiv.Search(gctx, query, limit)
		return nil
	})
	_ = g.Wait()

	var failures []error
	for _, err := range []error{ssErr, arxivErr} {
		if err != nil {
			r.log.Warn("paper source unavailable", "op", "search", "query", query, "error", err)
			failures = append(failures, err)
		}
	}

	out := make([]PaperData, 0, len(ssPapers)+len(arxivPapers))
	out = append(out, ssPapers...)
	out = append(out, arxivPapers...)
	return out, failures
}

func (r *Resolver) clamp(limit int) int {
	if limit <= 0 {
		return 5
	}
	if limit > r.maxPerSource {
		return r.maxPerSource
	}
	return limit
}

func (r *Resolver) cached(ctx context.Context, key string, fetch func() LookupResult) LookupResult {
	if r.cache != nil {
		var hit PaperData
		ok, err := r.cache.Get(ctx, key, &hit)
		if err != nil {
			r.log.Warn("lookup cache read failed", "key", key, "error", err)
		} else if ok {
			return found(hit)
		}
	}

	res := fetch()
	switch res.Status {
	case LookupUnavailable:
		r.log.Warn("paper source unavailable", "op", "lookup", "key", key, "error", res.Err)
	case LookupFound:
		if r.cache != nil {
			if err := r.cache.Set(ctx, key, res.Paper); err != nil {
				r.log.Warn("lookup cache write failed", "key", key, "error", err)
			}
		}
	}
	return res
}
