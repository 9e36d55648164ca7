package model

import (
	"time"

	"gorm.io/datatypes"
)

const (
	PaperSourceManual          = "manual"
	PaperSourceSemanticScholar = "semantic_scholar"
	PaperSourceArxiv           = "arxiv"
)

// Column limits in characters. Request bindings use the same values.
const (
	MaxPaperTitleLen = 512
	MaxPaperURLLen   = 1024
)

// Paper is owner-scoped. (OwnerID, DOI) is unique when DOI is set.
type Paper struct {
	ID            uint                        `gorm:"primaryKey" json:"id"`
	OwnerID       uint                        `gorm:"not null;uniqueIndex:idx_paper_owner_doi,priority:1;index" json:"owner_id"`
	Title         string                      `gorm:"size:512;not null" json:"title"`
	Abstract      string                      `gorm:"type:text" json:"abstract"`
	Authors       datatypes.JSONSlice[string] `gorm:"not null" json:"authors"`
	Year          *int                        `json:"year"`
	DOI           *string                     `gorm:"size:255;uniqueIndex:idx_paper_owner_doi,priority:2" json:"doi"`
	URL           string                      `gorm:"size:1024" json:"url"`
	Source        string                      `gorm:"size:32;not null;default:manual" json:"source"`
	FieldTags     datatypes.JSONSlice[string] `gorm:"not null" json:"field_tags"`
	CitationCount int                         `gorm:"not null;default:0" json:"citation_count"`
	VectorKey     *string                     `gorm:"size:64" json:"vector_key"`
	CreatedAt     time.Time                   `json:"created_at"`
	UpdatedAt     time.Time                   `json:"updated_at"`
}
