package repository

import (
	"errors"
	"fmt"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"scholarai/internal/model"
)

type DocumentRepository struct {
	db *gorm.DB
}

func NewDocumentRepository(db *gorm.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

func (r *DocumentRepository) Create(doc *model.Document) error {
	if doc.Sections.Data() == nil {
		doc.Sections = datatypes.NewJSONType(model.SectionMap{})
	}
	if doc.GenerationErrors == nil {
		doc.GenerationErrors = datatypes.JSONSlice[string]{}
	}
	if doc.Version == 0 {
		doc.Version = 1
	}
	if err := r.db.Create(doc).Error; err != nil {
		return fmt.Errorf("create document failed: %w", err)
	}
	return nil
}

// ListByOwnerID lists the owner's documents; projectID 0 means all projects.
func (r *DocumentRepository) ListByOwnerID(ownerID, projectID uint) ([]model.Document, error) {
	q := r.db.Where("owner_id = ?", ownerID)
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	var list []model.Document
	if err := q.Order("updated_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list documents failed: %w", err)
	}
	return list, nil
}

func (r *DocumentRepository) GetByIDAndOwnerID(id, ownerID uint) (*model.Document, error) {
	var doc model.Document
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&doc).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get document failed: %w", err)
	}
	return &doc, nil
}

// Save writes every mutable column if the stored version still matches doc.Version,
// then advances doc.Version. A mismatch returns ErrStaleVersion.
func (r *DocumentRepository) Save(doc *model.Document) error {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND owner_id = ? AND version = ?", doc.ID, doc.OwnerID, doc.Version).
		Updates(map[string]interface{}{
			"title":             doc.Title,
			"citation_style":    doc.CitationStyle,
			"status":            doc.Status,
			"sections":          doc.Sections,
			"generation_errors": doc.GenerationErrors,
			"job_reference":     doc.JobReference,
			"version":           doc.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("save document failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	doc.Version++
	return nil
}

// BeginGeneration moves the document to generating unless it is already there.
// It reports false when another run holds the document.
func (r *DocumentRepository) BeginGeneration(id, ownerID uint, jobID string) (bool, error) {
	res := r.db.Model(&model.Document{}).
		Where("id = ? AND owner_id = ? AND status <> ?", id, ownerID, model.DocumentStatusGenerating).
		Updates(map[string]interface{}{
			"status":            model.DocumentStatusGenerating,
			"job_reference":     jobID,
			"generation_errors": datatypes.JSONSlice[string]{},
			"version":           gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, fmt.Errorf("begin document generation failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// TakeOverGeneration hands a generating document from staleJobID to jobID.
// An empty staleJobID matches a document with no job reference.
func (r *DocumentRepository) TakeOverGeneration(id, ownerID uint, staleJobID, jobID string) (bool, error) {
	q := r.db.Model(&model.Document{}).
		Where("id = ? AND owner_id = ? AND status = ?", id, ownerID, model.DocumentStatusGenerating)
	if staleJobID == "" {
		q = q.Where("job_reference IS NULL")
	} else {
		q = q.Where("job_reference = ?", staleJobID)
	}
	res := q.Updates(map[string]interface{}{
		"job_reference":     jobID,
		"generation_errors": datatypes.JSONSlice[string]{},
		"version":           gorm.Expr("version + 1"),
	})
	if res.Error != nil {
		return false, fmt.Errorf("take over document generation failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (r *DocumentRepository) DeleteByIDAndOwnerID(id, ownerID uint) error {
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Document{}).Error; err != nil {
		return fmt.Errorf("delete document failed: %w", err)
	}
	return nil
}
