package scholar

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"scholarai/internal/model"
)

const semanticScholarFields = "title,abstract,authors,year,externalIds,url,citationCount,fieldsOfStudy"

type SemanticScholarClient struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy
}

func NewSemanticScholarClient(baseURL string, httpClient *http.Client, retry RetryPolicy) *SemanticScholarClient {
	return &SemanticScholarClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    httpClient,
		retry:   retry,
	}
}

type ssPaper struct {
	Title    string  `json:"title"`
	Abstract *string `json:"abstract"`
	Authors  []struct {
		Name string `json:"name"`
	} `json:"authors"`
	Year          *int           `json:"year"`
	ExternalIDs   map[string]any `json:"externalIds"`
	URL           string         `json:"url"`
	CitationCount int            `json:"citationCount"`
	FieldsOfStudy []string       `json:"fieldsOfStudy"`
}

func (c *SemanticScholarClient) ByDOI(ctx context.Context, doi string) LookupResult {
	u := c.baseURL + "/paper/DOI:" + url.PathEscape(doi) + "?fields=" + url.QueryEscape(semanticScholarFields)
	body, err := getWithRetry(ctx, c.http, c.retry, u)
	if errors.Is(err, errNotFound) {
		return notFound()
	}
	if err != nil {
		return unavailable(fmt.Errorf("semantic scholar doi lookup failed: %w", err))
	}
	var raw ssPaper
	if err := json.Unmarshal(body, &raw); err != nil {
		return unavailable(fmt.Errorf("decode semantic scholar paper failed: %w", err))
	}
	return found(raw.toPaperData())
}

func (c *SemanticScholarClient) Search(ctx context.Context, query string, limit int) ([]PaperData, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("limit", strconv.Itoa(limit))
	params.Set("fields", semanticScholarFields)

	body, err := getWithRetry(ctx, c.http, c.retry, c.baseURL+"/paper/search?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("semantic scholar search failed: %w", err)
	}
	var page struct {
		Data []ssPaper `json:"data"`
	}
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("decode semantic scholar search failed: %w", err)
	}
	out := make([]PaperData, 0, len(page.Data))
	for _, p := range page.Data {
		out = append(out, p.toPaperData())
	}
	return out, nil
}

func (p ssPaper) toPaperData() PaperData {
	authors := make([]string, 0, len(p.Authors))
	for _, a := range p.Authors {
		authors = append(authors, a.Name)
	}
	title := p.Title
	if title == "" {
		title = "Untitled"
	}
	abstract := ""
	if p.Abstract != nil {
		abstract = *p.Abstract
	}
	doi := externalID(p.ExternalIDs, "DOI")
	link := p.URL
	if link == "" {
		if arxivID := externalID(p.ExternalIDs, "ArXiv"); arxivID != "" {
			link = "https://arxiv.org/abs/" + arxivID
		}
	}
	tags := p.FieldsOfStudy
	if tags == nil {
		tags = []string{}
	}
	return PaperData{
		Title:         title,
		Abstract:      abstract,
		Authors:       authors,
		Year:          p.Year,
		DOI:           doi,
		URL:           link,
		Source:        model.PaperSourceSemanticScholar,
		FieldTags:     tags,
		CitationCount: p.CitationCount,
	}
}

// externalID reads a string id; Semantic Scholar sends CorpusId as a number.
func externalID(ids map[string]any, key string) string {
	if ids == nil {
		return ""
	}
	if s, ok := ids[key].(string); ok {
		return s
	}
	return ""
}
