package scholar

import "strings"

// PaperData is source metadata before it is persisted.
type PaperData struct {
	Title         string   `json:"title"`
	Abstract      string   `json:"abstract"`
	Authors       []string `json:"authors"`
	Year          *int     `json:"year,omitempty"`
	DOI           string   `json:"doi,omitempty"`
	URL           string   `json:"url,omitempty"`
	Source        string   `json:"source"`
	FieldTags     []string `json:"field_tags"`
	CitationCount int      `json:"citation_count"`
}

type LookupStatus int

const (
	LookupFound LookupStatus = iota
	LookupNotFound
	LookupUnavailable
)

func (s LookupStatus) String() string {
	switch s {
	case LookupFound:
		return "found"
	case LookupNotFound:
		return "not_found"
	default:
		return "unavailable"
	}
}

// LookupResult is the outcome of an identifier lookup. Paper is set only when Found.
type LookupResult struct {
	Status LookupStatus
	Paper  *PaperData
	Err    error
}

func found(p PaperData) LookupResult {
	return LookupResult{Status: LookupFound, Paper: &p}
}

func notFound() LookupResult {
	return LookupResult{Status: LookupNotFound}
}

func unavailable(err error) LookupResult {
	return LookupResult{Status: LookupUnavailable, Err: err}
}

// NormalizeDOI strips resolver prefixes so "https://doi.org/10.1/x" and "10.1/X" collide.
func NormalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	lower := strings.ToLower(doi)
	for _, prefix := range []string{"https://doi.org/", "http://doi.org/", "https://dx.doi.org/", "http://dx.doi.org/", "doi:"} {
		if strings.HasPrefix(lower, prefix) {
			doi = doi[len(prefix):]
			lower = lower[len(prefix):]
			break
		}
	}
	return strings.ToLower(strings.TrimSpace(doi))
}
