package generation

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"scholarai/internal/citation"
	"scholarai/internal/model"
)

const (
	maxPromptPapers   = 8
	abstractExcerpt   = 200
	noReferencesNotes = "None provided — write without citations."
)

var sectionPrompts = map[string]string{
	"abstract": "Write a concise academic abstract (150-250 words) for this project. " +
		"Summarise the problem, approach, and key findings.",
	"introduction": "Write a detailed introduction section (400-600 words). " +
		"Explain the problem context, motivation, objectives, and document structure.",
	"related_work": "Write a related work / literature review section (500-800 words). " +
		"Critically analyse prior work, identify gaps, and position this project.",
	"literature_review": "Write a comprehensive literature review (500-800 words). " +
		"Survey relevant research, compare approaches, and identify research gaps.",
	"methodology": "Write a methodology section (400-700 words) describing the research design, " +
		"data collection, analysis approach, and tools/technologies used.",
	"design_methodology": "Write a design and methodology section (500-800 words) covering " +
		"system architecture, design decisions, and implementation strategy.",
	"implementation": "Write an implementation section (400-600 words) detailing the technical " +
		"development process, key algorithms, and challenges overcome.",
	"evaluation": "Write an evaluation section (400-600 words) presenting experimental results, " +
		"metrics, and performance analysis with relevant comparisons.",
	"results_and_analysis": "Write a results and analysis section (400-600 words) presenting findings, " +
		"data interpretation, and discussion of outcomes.",
	"results": "Write a results section (400-600 words) presenting quantitative and qualitative " +
		"findings with appropriate statistical analysis.",
	"discussion": "Write a discussion section (300-500 words) interpreting results, " +
		"comparing with literature, and acknowledging limitations.",
	"findings_and_analysis": "Write a findings and analysis section (500-700 words) presenting key insights, " +
		"data-driven conclusions, and business implications.",
	"recommendations": "Write a recommendations section (300-500 words) providing actionable " +
		"suggestions based on the findings.",
	"executive_summary": "Write an executive summary (200-350 words) for business/management audiences. " +
		"Cover the problem, approach, key findings, and recommendations.",
	"research_methodology": "Write a research methodology section (400-600 words) covering " +
		"research design, data collection methods, and analytical framework.",
	"conclusion": "Write a conclusion section (300-450 words) summarising key contributions, " +
		"lessons learned, and directions for future work.",
}

// Humanize turns "related_work" into "Related Work".
func Humanize(name string) string {
	words := strings.Fields(strings.ReplaceAll(name, "_", " "))
	for i, w := range words {
		first, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(first)) + strings.ToLower(w[size:])
	}
	return strings.Join(words, " ")
}

func SectionInstruction(section string) string {
	if prompt, ok := sectionPrompts[section]; ok {
		return prompt
	}
	return fmt.Sprintf("Write the %s section (400-600 words).", strings.ReplaceAll(section, "_", " "))
}

func SystemPrompt(projectTitle, field string, papers []model.Paper) string {
	var refs strings.Builder
	for i, p := range papers {
		if i == maxPromptPapers {
			break
		}
		year := "n.d."
		if p.Year != nil && *p.Year != 0 {
			year = fmt.Sprint(*p.Year)
		}
		fmt.Fprintf(&refs, "\n[%d] %s (%s) — %s\n    Abstract: %s...\n",
			i+1, p.Title, year, citation.ShortAuthors(p.Authors), truncateRunes(p.Abstract, abstractExcerpt))
	}
	available := refs.String()
	if available == "" {
		available = noReferencesNotes
	}

	return fmt.Sprintf(
		"You are an expert academic writer helping a student complete their final year project "+
			"titled '%s' in the field of %s.\n\n"+
			"Write in formal academic English. Be specific, cite the provided references where relevant "+
			"using [n] notation. Do NOT hallucinate references — only cite the numbered papers below.\n\n"+
			"Available references:\n%s",
		projectTitle, Humanize(field), available,
	)
}

func UserPrompt(section, extraContext string) string {
	msg := SectionInstruction(section)
	if extra := strings.TrimSpace(extraContext); extra != "" {
		msg += "\n\nAdditional context from the student: " + extra
	}
	return msg
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
