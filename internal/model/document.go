package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	CitationAPA  = "apa"
	CitationIEEE = "ieee"
)

const (
	DocumentStatusDraft      = "draft"
	DocumentStatusGenerating = "generating"
	DocumentStatusComplete   = "complete"
	DocumentStatusError      = "error"
)

type Section struct {
	Content     string    `json:"content"`
	GeneratedAt time.Time `json:"generated_at"`
}

// SectionMap is keyed by section name. Keys are only ever added or overwritten.
type SectionMap map[string]Section

type Document struct {
	ID               uint                           `gorm:"primaryKey" json:"id"`
	ProjectID        uint                           `gorm:"not null;index" json:"project_id"`
	OwnerID          uint                           `gorm:"not null;index" json:"owner_id"`
	Title            string                         `gorm:"size:255;not null" json:"title"`
	CitationStyle    string                         `gorm:"size:8;not null;default:apa" json:"citation_style"`
	Status           string                         `gorm:"size:16;not null;default:draft" json:"status"`
	Sections         datatypes.JSONType[SectionMap] `gorm:"not null" json:"sections"`
	GenerationErrors datatypes.JSONSlice[string]    `gorm:"not null" json:"generation_errors"`
	JobReference     *string                        `gorm:"size:36" json:"job_reference"`
	Version          int                            `gorm:"not null;default:1" json:"version"`
	CreatedAt        time.Time                      `json:"created_at"`
	UpdatedAt        time.Time                      `json:"updated_at"`
}

func ValidCitationStyle(style string) bool {
	return style == CitationAPA || style == CitationIEEE
}

// SectionData never returns nil so callers can merge into it directly.
func (d *Document) SectionData() SectionMap {
	data := d.Sections.Data()
	if data == nil {
		return SectionMap{}
	}
	return data
}
