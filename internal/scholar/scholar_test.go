package scholar

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"scholarai/internal/logger"
	"scholarai/internal/model"
)

const atomFixture = `<?xml version="1.0" encoding="UTF-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <entry>
    <id>http://arxiv.org/abs/2301.00001v1</id>
    <published>2023-01-01T00:00:00Z</published>
    <title>Deep
      Learning for Graphs</title>
    <summary>  We study graphs.  </summary>
    <author><name>Ada Lovelace</name></author>
    <author><name>Alan Turing</name></author>
  </entry>
  <entry>
    <id>http://arxiv.org/abs/2301.00002v1</id>
    <published>2022-05-01T00:00:00Z</published>
    <title>Second</title>
  </entry>
</feed>`

var fastRetry = RetryPolicy{MaxAttempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestParseAtom(t *testing.T) {
	papers, err := ParseAtom([]byte(atomFixture), 10)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("expected 2 papers, got %d", len(papers))
	}
	p := papers[0]
	if p.Title != "Deep Learning for Graphs" || p.Abstract != "We study graphs." {
		t.Fatalf("unexpected text fields %+v", p)
	}
	if p.Year == nil || *p.Year != 2023 {
		t.Fatalf("unexpected year %v", p.Year)
	}
	if len(p.Authors) != 2 || p.Authors[1] != "Alan Turing" {
		t.Fatalf("unexpected authors %v", p.Authors)
	}
	if p.Source != model.PaperSourceArxiv || p.FieldTags[0] != model.FieldComputerScience {
		t.Fatalf("unexpected source/tags %+v", p)
	}

	limited, _ := ParseAtom([]byte(atomFixture), 1)
	if len(limited) != 1 {
		t.Fatalf("limit not applied: %d", len(limited))
	}
}

func TestParseAtomMalformed(t *testing.T) {
	papers, err := ParseAtom([]byte("<feed><entry>"), 5)
	if err == nil || len(papers) != 0 {
		t.Fatalf("expected error and no papers, got %v %v", papers, err)
	}
}

func TestArxivMalformedXMLIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<not-xml"))
	}))
	defer srv.Close()

	c := NewArxivClient(srv.URL, srv.Client(), fastRetry)
	if res := c.ByID(context.Background(), "2301.00001"); res.Status != LookupUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Status)
	}
	if papers, err := c.Search(context.Background(), "graphs", 3); err == nil || len(papers) != 0 {
		t.Fatalf("expected empty result with error")
	}
}

func TestSemanticScholarByDOI(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasPrefix(r.URL.Path, "/paper/DOI:") {
			http.NotFound(w, r)
			return
		}
		if strings.HasSuffix(r.URL.Path, "missing") {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"title":"T","year":2020,"authors":[{"name":"X"},{"name":"Y"}],
			"externalIds":{"DOI":"10.1/abc","ArXiv":"2001.1","CorpusId":42},"citationCount":3,"fieldsOfStudy":["Biology"]}`))
	}))
	defer srv.Close()

	c := NewSemanticScholarClient(srv.URL, srv.Client(), fastRetry)
	res := c.ByDOI(context.Background(), "10.1/abc")
	if res.Status != LookupFound {
		t.Fatalf("expected found, got %s (%v)", res.Status, res.Err)
	}
	p := res.Paper
	if p.Title != "T" || *p.Year != 2020 || p.DOI != "10.1/abc" || p.CitationCount != 3 {
		t.Fatalf("unexpected paper %+v", p)
	}
	if p.URL != "https://arxiv.org/abs/2001.1" {
		t.Fatalf("expected arxiv url fallback, got %q", p.URL)
	}

	if res := c.ByDOI(context.Background(), "missing"); res.Status != LookupNotFound {
		t.Fatalf("expected not found, got %s", res.Status)
	}
}

func TestRetryStopsAfterMaxAttempts(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewSemanticScholarClient(srv.URL, srv.Client(), fastRetry)
	if res := c.ByDOI(context.Background(), "10.1/x"); res.Status != LookupUnavailable {
		t.Fatalf("expected unavailable, got %s", res.Status)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Fatalf("expected 3 attempts, got %d", got)
	}
}

func TestNormalizeDOI(t *testing.T) {
	for _, in := range []string{"https://doi.org/10.1/ABC", " doi:10.1/abc", "10.1/Abc"} {
		if got := NormalizeDOI(in); got != "10.1/abc" {
			t.Fatalf("%q normalized to %q", in, got)
		}
	}
}

type mapCache struct {
	mu   sync.Mutex
	data map[string]PaperData
}

func (m *mapCache) Get(_ context.Context, key string, out interface{}) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.data[key]
	if ok {
		*out.(*PaperData) = p
	}
	return ok, nil
}

func (m *mapCache) Set(_ context.Context, key string, v interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = *v.(*PaperData)
	return nil
}

func TestResolverCachesFoundLookups(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		_, _ = w.Write([]byte(`{"title":"Cached"}`))
	}))
	defer srv.Close()

	cache := &mapCache{data: map[string]PaperData{}}
	r := NewResolver(NewSemanticScholarClient(srv.URL, srv.Client(), fastRetry), nil, cache, logger.Nop())
	for i := 0; i < 3; i++ {
		res := r.ByDOI(context.Background(), "https://doi.org/10.9/Z")
		if res.Status != LookupFound || res.Paper.Title != "Cached" {
			t.Fatalf("unexpected result %+v", res)
		}
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected one upstream call, got %d", got)
	}
}

func TestResolverSearchClampsAndDegrades(t *testing.T) {
	var ssLimit atomic.Value
	ss := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ssLimit.Store(r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`{"data":[{"title":"From S2"}]}`))
	}))
	defer ss.Close()
	arxiv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer arxiv.Close()

	r := NewResolver(
		NewSemanticScholarClient(ss.URL, ss.Client(), fastRetry),
		NewArxivClient(arxiv.URL, arxiv.Client(), fastRetry),
		nil, logger.Nop(),
	)
	papers, failures := r.Search(context.Background(), "graphs", 50)
	if got, _ := ssLimit.Load().(string); got != "10" {
		t.Fatalf("expected clamped limit 10, got %q", got)
	}
	if len(papers) != 1 || papers[0].Title != "From S2" {
		t.Fatalf("unexpected papers %+v", papers)
	}
	if len(failures) != 1 {
		t.Fatalf("expected one failure, got %v", failures)
	}
}
