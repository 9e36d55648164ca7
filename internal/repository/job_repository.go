package repository

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"scholarai/internal/model"
)

type JobRepository struct {
	db *gorm.DB
}

func NewJobRepository(db *gorm.DB) *JobRepository {
	return &JobRepository{db: db}
}

func (r *JobRepository) Create(job *model.Job) error {
	if err := r.db.Create(job).Error; err != nil {
		return fmt.Errorf("create job failed: %w", err)
	}
	return nil
}

func (r *JobRepository) GetByID(id string) (*model.Job, error) {
	var job model.Job
	if err := r.db.Where("id = ?", id).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) GetByIDAndOwnerID(id string, ownerID uint) (*model.Job, error) {
	var job model.Job
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&job).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get job failed: %w", err)
	}
	return &job, nil
}

func (r *JobRepository) MarkRunning(id string) error {
	now := time.Now().UTC()
	err := r.db.Model(&model.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"state":      model.JobStateRunning,
		"attempts":   gorm.Expr("attempts + 1"),
		"started_at": now,
	}).Error
	if err != nil {
		return fmt.Errorf("mark job running failed: %w", err)
	}
	return nil
}

func (r *JobRepository) MarkSucceeded(id string) error {
	return r.finish(id, model.JobStateSucceeded, "")
}

func (r *JobRepository) MarkFailed(id, reason string) error {
	return r.finish(id, model.JobStateFailed, reason)
}

func (r *JobRepository) finish(id, state, reason string) error {
	now := time.Now().UTC()
	err := r.db.Model(&model.Job{}).Where("id = ?", id).Updates(map[string]interface{}{
		"state":       state,
		"error":       reason,
		"finished_at": now,
	}).Error
	if err != nil {
		return fmt.Errorf("finish job failed: %w", err)
	}
	return nil
}
