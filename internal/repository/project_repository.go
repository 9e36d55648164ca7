package repository

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"scholarai/internal/model"
)

type ProjectRepository struct {
	db *gorm.DB
}

func NewProjectRepository(db *gorm.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(project *model.Project) error {
	if err := r.db.Create(project).Error; err != nil {
		return fmt.Errorf("create project failed: %w", err)
	}
	return nil
}

func (r *ProjectRepository) ListByOwnerID(ownerID uint) ([]model.Project, error) {
	var list []model.Project
	if err := r.db.Where("owner_id = ?", ownerID).Order("updated_at DESC").Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list projects failed: %w", err)
	}
	return list, nil
}

func (r *ProjectRepository) GetByIDAndOwnerID(id, ownerID uint) (*model.Project, error) {
	var project model.Project
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&project).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get project failed: %w", err)
	}
	return &project, nil
}

func (r *ProjectRepository) Update(project *model.Project) error {
	err := r.db.Model(&model.Project{}).
		Where("id = ? AND owner_id = ?", project.ID, project.OwnerID).
		Updates(map[string]interface{}{
			"title":       project.Title,
			"description": project.Description,
			"field":       project.Field,
			"status":      project.Status,
		}).Error
	if err != nil {
		return fmt.Errorf("update project failed: %w", err)
	}
	return nil
}

// DeleteCascade removes the project together with its documents and prototypes.
func (r *ProjectRepository) DeleteCascade(id, ownerID uint) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("project_id = ? AND owner_id = ?", id, ownerID).Delete(&model.Document{}).Error; err != nil {
			return fmt.Errorf("delete project documents failed: %w", err)
		}
		if err := tx.Where("project_id = ? AND owner_id = ?", id, ownerID).Delete(&model.Prototype{}).Error; err != nil {
			return fmt.Errorf("delete project prototypes failed: %w", err)
		}
		if err := tx.Where("id = ? AND owner_id = ?", id, ownerID).Delete(&model.Project{}).Error; err != nil {
			return fmt.Errorf("delete project failed: %w", err)
		}
		return nil
	})
}
