// Package citation renders reference-list entries. Every function here is pure.
package citation

import (
	"strconv"
	"strings"

	"scholarai/internal/model"
)

const NoReferences = "No references indexed for this project."

func APA(p model.Paper) string {
	authors := authorsOrUnknown(p.Authors)
	var names string
	switch len(authors) {
	case 1:
		names = authors[0]
	case 2:
		names = authors[0] + " & " + authors[1]
	default:
		names = authors[0] + " et al."
	}

	link := ""
	if doi := deref(p.DOI); doi != "" {
		link = " https://doi.org/" + doi
	} else if p.URL != "" {
		link = " " + p.URL
	}
	return names + " (" + year(p.Year) + "). " + p.Title + "." + link
}

// IEEE renders entry n, where n is the 1-based position in the reference list.
func IEEE(p model.Paper, n int) string {
	authors := authorsOrUnknown(p.Authors)
	shown := authors
	if len(shown) > 3 {
		shown = shown[:3]
	}
	names := strings.Join(shown, ", ")
	if len(authors) > 3 {
		names += " et al."
	}

	doi := ""
	if d := deref(p.DOI); d != "" {
		doi = ", doi: " + d
	}
	return "[" + strconv.Itoa(n) + "] " + names + ", \"" + p.Title + ",\" " + year(p.Year) + doi + "."
}

func Format(p model.Paper, style string, n int) string {
	if style == model.CitationIEEE {
		return IEEE(p, n)
	}
	return APA(p)
}

// References builds the full references section body in list order.
func References(papers []model.Paper, style string) string {
	if len(papers) == 0 {
		return NoReferences
	}
	entries := make([]string, 0, len(papers))
	for i, p := range papers {
		entries = append(entries, Format(p, style, i+1))
	}
	return strings.Join(entries, "\n\n")
}

// ShortAuthors is the prompt form: up to three names, then "et al.".
func ShortAuthors(authors []string) string {
	if len(authors) == 0 {
		return "Unknown"
	}
	if len(authors) <= 3 {
		return strings.Join(authors, ", ")
	}
	return strings.Join(authors[:3], ", ") + " et al."
}

func authorsOrUnknown(authors []string) []string {
	if len(authors) == 0 {
		return []string{"Unknown"}
	}
	return authors
}

func year(y *int) string {
	if y == nil || *y == 0 {
		return "n.d."
	}
	return strconv.Itoa(*y)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return strings.TrimSpace(*s)
}
