package worker

import (
	"context"
	"fmt"

	"scholarai/internal/logger"
	"scholarai/internal/model"
)

// JobStore is the slice of the job repository the dispatcher needs.
type JobStore interface {
	GetByID(id string) (*model.Job, error)
	MarkRunning(id string) error
	MarkSucceeded(id string) error
	MarkFailed(id, reason string) error
}

// Handler runs one job kind. Fail, when set, restores the target record after
// the job is marked failed.
type Handler struct {
	Run  func(ctx context.Context, job *model.Job) error
	Fail func(ctx context.Context, job *model.Job, reason string)
}

type Dispatcher struct {
	jobs     JobStore
	handlers map[string]Handler
	log      *logger.Logger
}

func NewDispatcher(jobs JobStore, log *logger.Logger) *Dispatcher {
	return &Dispatcher{
		jobs:     jobs,
		handlers: make(map[string]Handler),
		log:      log.With("component", "job_dispatcher"),
	}
}

func (d *Dispatcher) Register(kind string, h Handler) {
	d.handlers[kind] = h
}

// Dispatch runs the job named by msg to a terminal state. A returned error
// means the job store was unreachable and the message should be retried.
func (d *Dispatcher) Dispatch(ctx context.Context, msg model.JobMessage) error {
	log := d.log.With("job_id", msg.JobID, "kind", msg.Kind)

	job, err := d.jobs.GetByID(msg.JobID)
	if err != nil {
		return err
	}
	if job == nil {
		log.Warn("job row missing, dropping message")
		return nil
	}
	if job.Terminal() {
		log.Info("job already finished, skipping redelivery", "state", job.State)
		return nil
	}

	h, ok := d.handlers[job.Kind]
	if !ok || h.Run == nil {
		log.Error("no handler for job kind")
		return d.jobs.MarkFailed(job.ID, "unknown job kind: "+job.Kind)
	}

	if err := d.jobs.MarkRunning(job.ID); err != nil {
		return err
	}
	job.State = model.JobStateRunning

	if runErr := run(ctx, h, job); runErr != nil {
		reason := runErr.Error()
		log.Warn("job failed", "error", reason)
		if err := d.jobs.MarkFailed(job.ID, reason); err != nil {
			return err
		}
		if h.Fail != nil {
			h.Fail(ctx, job, reason)
		}
		return nil
	}
	log.Info("job succeeded")
	return d.jobs.MarkSucceeded(job.ID)
}

func run(ctx context.Context, h Handler, job *model.Job) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return h.Run(ctx, job)
}
