package generation

import "scholarai/internal/model"

// ReferencesSection is always built from indexed papers, never by the model.
const ReferencesSection = "references"

// Catalog maps a project field to its ordered section names.
type Catalog map[string][]string

func DefaultCatalog() Catalog {
	return Catalog{
		model.FieldComputerScience: {
			"abstract", "introduction", "related_work", "methodology",
			"implementation", "evaluation", "conclusion", ReferencesSection,
		},
		model.FieldEngineering: {
			"abstract", "introduction", "literature_review", "design_methodology",
			"implementation", "results_and_analysis", "discussion", "conclusion", ReferencesSection,
		},
		model.FieldBusiness: {
			"executive_summary", "introduction", "literature_review", "research_methodology",
			"findings_and_analysis", "recommendations", "conclusion", ReferencesSection,
		},
		model.FieldHealthSciences: {
			"abstract", "introduction", "literature_review", "methodology",
			"results", "discussion", "conclusion", ReferencesSection,
		},
	}
}

// Sections returns a copy of the field's list. Unknown fields use computer science.
func (c Catalog) Sections(field string) []string {
	list, ok := c[field]
	if !ok {
		list = c[model.FieldComputerScience]
	}
	out := make([]string, len(list))
	copy(out, list)
	return out
}
