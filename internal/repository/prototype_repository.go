package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"scholarai/internal/model"
)

type PrototypeRepository struct {
	db *gorm.DB
}

func NewPrototypeRepository(db *gorm.DB) *PrototypeRepository {
	return &PrototypeRepository{db: db}
}

func (r *PrototypeRepository) Create(p *model.Prototype) error {
	if p.Version == 0 {
		p.Version = 1
	}
	if err := r.db.Create(p).Error; err != nil {
		return fmt.Errorf("create prototype failed: %w", err)
	}
	return nil
}

// ListByOwnerID lists the owner's prototypes; projectID 0 means all projects.
func (r *PrototypeRepository) ListByOwnerID(ownerID, projectID uint) ([]model.Prototype, error) {
	q := r.db.Where("owner_id = ?", ownerID)
	if projectID != 0 {
		q = q.Where("project_id = ?", projectID)
	}
	var list []model.Prototype
	if err := q.Order("updated_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list prototypes failed: %w", err)
	}
	return list, nil
}

func (r *PrototypeRepository) GetByIDAndOwnerID(id, ownerID uint) (*model.Prototype, error) {
	var p model.Prototype
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&p).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get prototype failed: %w", err)
	}
	return &p, nil
}

// Save is a version compare-and-swap over every mutable column.
func (r *PrototypeRepository) Save(p *model.Prototype) error {
	res := r.db.Model(&model.Prototype{}).
		Where("id = ? AND owner_id = ? AND version = ?", p.ID, p.OwnerID, p.Version).
		Updates(map[string]interface{}{
			"title":             p.Title,
			"type":              p.Type,
			"description":       p.Description,
			"input_description": p.InputDescription,
			"status":            p.Status,
			"generated_code":    p.GeneratedCode,
			"requirements":      p.Requirements,
			"build_log":         p.BuildLog,
			"job_reference":     p.JobReference,
			"version":           p.Version + 1,
		})
	if res.Error != nil {
		return fmt.Errorf("save prototype failed: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStaleVersion
	}
	p.Version++
	return nil
}

// BeginBuild moves the prototype to building unless a build is already in flight.
// Code and requirements are cleared so they are only ever present when ready.
func (r *PrototypeRepository) BeginBuild(id, ownerID uint, jobID, logLine string) (bool, error) {
	res := r.db.Model(&model.Prototype{}).
		Where("id = ? AND owner_id = ? AND status <> ?", id, ownerID, model.PrototypeStatusBuilding).
		Updates(map[string]interface{}{
			"status":         model.PrototypeStatusBuilding,
			"job_reference":  jobID,
			"generated_code": nil,
			"requirements":   nil,
			"build_log":      logLine,
			"version":        gorm.Expr("version + 1"),
		})
	if res.Error != nil {
		return false, fmt.Errorf("begin prototype build failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// TakeOverBuild hands a building prototype from staleJobID to jobID.
// An empty staleJobID matches a prototype with no job reference.
func (r *PrototypeRepository) TakeOverBuild(id, ownerID uint, staleJobID, jobID, logLine string) (bool, error) {
	q := r.db.Model(&model.Prototype{}).
		Where("id = ? AND owner_id = ? AND status = ?", id, ownerID, model.PrototypeStatusBuilding)
	if staleJobID == "" {
		q = q.Where("job_reference IS NULL")
	} else {
		q = q.Where("job_reference = ?", staleJobID)
	}
	res := q.Updates(map[string]interface{}{
		"job_reference":  jobID,
		"generated_code": nil,
		"requirements":   nil,
		"build_log":      logLine,
		"version":        gorm.Expr("version + 1"),
	})
	if res.Error != nil {
		return false, fmt.Errorf("take over prototype build failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

// DeleteUnlessBuilding reports false when nothing was deleted.
func (r *PrototypeRepository) DeleteUnlessBuilding(id, ownerID uint) (bool, error) {
	res := r.db.Where("id = ? AND owner_id = ? AND status <> ?", id, ownerID, model.PrototypeStatusBuilding).
		Delete(&model.Prototype{})
	if res.Error != nil {
		return false, fmt.Errorf("delete prototype failed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}
