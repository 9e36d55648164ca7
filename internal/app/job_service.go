package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"scholarai/internal/logger"
	"scholarai/internal/model"
	"scholarai/internal/repository"
)

// StaleJobAfter is how long a queued or running job may go without a state
// change before its record can be claimed by a new job.
const StaleJobAfter = time.Hour

// JobPublisher hands a job message to the queue.
type JobPublisher interface {
	Publish(ctx context.Context, msg model.JobMessage) error
}

type JobService struct {
	jobRepo   *repository.JobRepository
	publisher JobPublisher
	log       *logger.Logger
	newID     func() string
	now       func() time.Time
}

func NewJobService(jobRepo *repository.JobRepository, publisher JobPublisher, log *logger.Logger) *JobService {
	return &JobService{
		jobRepo:   jobRepo,
		publisher: publisher,
		log:       log.With("service", "job"),
		newID:     uuid.NewString,
		now:       time.Now,
	}
}

// NewID reserves an id so the target record can reference the job before the row exists.
func (s *JobService) NewID() string {
	return s.newID()
}

// Enqueue stores a queued job and publishes it. A failed publish leaves the
// job row failed and returns ErrEnqueueFailed.
func (s *JobService) Enqueue(ctx context.Context, id, kind string, targetID, ownerID uint, payload any) (*model.Job, error) {
	if id == "" {
		id = s.newID()
	}
	job := &model.Job{
		ID:       id,
		Kind:     kind,
		TargetID: targetID,
		OwnerID:  ownerID,
		State:    model.JobStateQueued,
	}
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshal job payload failed: %w", err)
		}
		job.Payload = datatypes.JSON(raw)
	}
	if err := s.jobRepo.Create(job); err != nil {
		return nil, err
	}

	msg := model.JobMessage{JobID: job.ID, Kind: kind, TargetID: targetID, OwnerID: ownerID}
	if err := s.publisher.Publish(ctx, msg); err != nil {
		s.log.Error("publish job failed", "job_id", job.ID, "kind", kind, "error", err)
		reason := "enqueue failed: " + err.Error()
		if markErr := s.jobRepo.MarkFailed(job.ID, reason); markErr != nil {
			s.log.Error("mark job failed", "job_id", job.ID, "error", markErr)
		}
		job.State = model.JobStateFailed
		job.Error = reason
		return job, fmt.Errorf("%w: %v", ErrEnqueueFailed, err)
	}
	return job, nil
}

func (s *JobService) Get(ownerID uint, id string) (*model.Job, error) {
	job, err := s.jobRepo.GetByIDAndOwnerID(id, ownerID)
	if err != nil {
		return nil, err
	}
	if job == nil {
		return nil, ErrJobNotFound
	}
	return job, nil
}

// Abandoned reports whether nothing will ever finish the job: it is missing,
// terminal, or has not changed state within StaleJobAfter.
func (s *JobService) Abandoned(id string) (bool, error) {
	if id == "" {
		return true, nil
	}
	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		return false, err
	}
	if job == nil || job.Terminal() {
		return true, nil
	}
	return s.now().Sub(job.UpdatedAt) > StaleJobAfter, nil
}

// Supersede fails a job whose record was handed to newID.
func (s *JobService) Supersede(id, newID string) {
	if id == "" {
		return
	}
	job, err := s.jobRepo.GetByID(id)
	if err != nil {
		s.log.Error("load superseded job failed", "job_id", id, "error", err)
		return
	}
	if job == nil || job.Terminal() {
		return
	}
	if err := s.jobRepo.MarkFailed(id, "abandoned, superseded by job "+newID); err != nil {
		s.log.Error("mark superseded job failed", "job_id", id, "error", err)
	}
}
