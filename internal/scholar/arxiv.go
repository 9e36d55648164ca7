package scholar

import (
	"context"
	"encoding/xml"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"scholarai/internal/model"
)

type ArxivClient struct {
	baseURL string
	http    *http.Client
	retry   RetryPolicy
}

func NewArxivClient(baseURL string, httpClient *http.Client, retry RetryPolicy) *ArxivClient {
	return &ArxivClient{baseURL: baseURL, http: httpClient, retry: retry}
}

type atomFeed struct {
	Entries []atomEntry `xml:"http://www.w3.org/2005/Atom entry"`
}

type atomEntry struct {
	ID        string `xml:"http://www.w3.org/2005/Atom id"`
	Title     string `xml:"http://www.w3.org/2005/Atom title"`
	Summary   string `xml:"http://www.w3.org/2005/Atom summary"`
	Published string `xml:"http://www.w3.org/2005/Atom published"`
	Authors   []struct {
		Name string `xml:"http://www.w3.org/2005/Atom name"`
	} `xml:"http://www.w3.org/2005/Atom author"`
}

func (c *ArxivClient) ByID(ctx context.Context, arxivID string) LookupResult {
	params := url.Values{}
	params.Set("id_list", arxivID)
	body, err := getWithRetry(ctx, c.http, c.retry, c.baseURL+"?"+params.Encode())
	if errors.Is(err, errNotFound) {
		return notFound()
	}
	if err != nil {
		return unavailable(fmt.Errorf("arxiv id lookup failed: %w", err))
	}
	papers, err := ParseAtom(body, 1)
	if err != nil {
		return unavailable(err)
	}
	if len(papers) == 0 {
		return notFound()
	}
	return found(papers[0])
}

func (c *ArxivClient) Search(ctx context.Context, query string, limit int) ([]PaperData, error) {
	params := url.Values{}
	params.Set("search_query", "all:"+query)
	params.Set("max_results", strconv.Itoa(limit))
	params.Set("sortBy", "relevance")
	body, err := getWithRetry(ctx, c.http, c.retry, c.baseURL+"?"+params.Encode())
	if err != nil {
		return nil, fmt.Errorf("arxiv search failed: %w", err)
	}
	return ParseAtom(body, limit)
}

// ParseAtom reads at most limit entries from an arXiv Atom feed. Entries
// without a title are skipped; arXiv reports bad ids that way.
func ParseAtom(body []byte, limit int) ([]PaperData, error) {
	var feed atomFeed
	if err := xml.Unmarshal(body, &feed); err != nil {
		return nil, fmt.Errorf("parse arxiv xml failed: %w", err)
	}
	out := make([]PaperData, 0, len(feed.Entries))
	for _, e := range feed.Entries {
		if len(out) == limit {
			break
		}
		title := collapseSpace(e.Title)
		if title == "" || strings.EqualFold(title, "Error") {
			continue
		}
		var year *int
		if len(e.Published) >= 4 {
			if y, err := strconv.Atoi(e.Published[:4]); err == nil {
				year = &y
			}
		}
		authors := make([]string, 0, len(e.Authors))
		for _, a := range e.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				authors = append(authors, name)
			}
		}
		out = append(out, PaperData{
			Title:     title,
			Abstract:  strings.TrimSpace(e.Summary),
			Authors:   authors,
			Year:      year,
			URL:       strings.TrimSpace(e.ID),
			Source:    model.PaperSourceArxiv,
			FieldTags: []string{model.FieldComputerScience},
		})
	}
	return out, nil
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
