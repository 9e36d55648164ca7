package app

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"scholarai/internal/generation"
	"scholarai/internal/logger"
	"scholarai/internal/model"
	"scholarai/internal/pkg/ziputil"
	"scholarai/internal/repository"
)

const (
	buildStartLog   = "Starting code generation..."
	buildSuccessLog = "Build completed successfully."
)

// CodeWriter produces the app source and requirements manifest for a prototype.
type CodeWriter interface {
	Generate(ctx context.Context, p model.Prototype) (code, requirements string, err error)
}

type PrototypeService struct {
	protoRepo   *repository.PrototypeRepository
	projectRepo *repository.ProjectRepository
	jobs        *JobService
	writer      CodeWriter
	log         *logger.Logger
}

type PrototypeInput struct {
	ProjectID        uint
	Title            string
	Type             string
	Description      string
	InputDescription string
}

type PrototypePatch struct {
	Title            *string
	Type             *string
	Description      *string
	InputDescription *string
}

type PrototypeStatus struct {
	ID           uint    `json:"id"`
	Status       string  `json:"status"`
	BuildLog     *string `json:"build_log"`
	JobReference *string `json:"job_reference"`
}

func NewPrototypeService(
	protoRepo *repository.PrototypeRepository,
	projectRepo *repository.ProjectRepository,
	jobs *JobService,
	writer CodeWriter,
	log *logger.Logger,
) *PrototypeService {
	return &PrototypeService{
		protoRepo:   protoRepo,
		projectRepo: projectRepo,
		jobs:        jobs,
		writer:      writer,
		log:         log.With("service", "prototype"),
	}
}

func (s *PrototypeService) Create(ownerID uint, input PrototypeInput) (*model.Prototype, error) {
	title := strings.TrimSpace(input.Title)
	if ownerID == 0 || title == "" || !model.ValidPrototypeType(input.Type) {
		return nil, ErrInvalidInput
	}
	project, err := s.projectRepo.GetByIDAndOwnerID(input.ProjectID, ownerID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	p := &model.Prototype{
		ProjectID:        project.ID,
		OwnerID:          ownerID,
		Title:            title,
		Type:             input.Type,
		Description:      strings.TrimSpace(input.Description),
		InputDescription: strings.TrimSpace(input.InputDescription),
		Status:           model.PrototypeStatusDraft,
	}
	if err := s.protoRepo.Create(p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *PrototypeService) List(ownerID, projectID uint) ([]model.Prototype, error) {
	if ownerID == 0 {
		return nil, ErrInvalidInput
	}
	return s.protoRepo.ListByOwnerID(ownerID, projectID)
}

func (s *PrototypeService) Get(ownerID, id uint) (*model.Prototype, error) {
	p, err := s.protoRepo.GetByIDAndOwnerID(id, ownerID)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrPrototypeNotFound
	}
	return p, nil
}

// Update rejects edits while a build is in flight.
func (s *PrototypeService) Update(ownerID, id uint, patch PrototypePatch) (*model.Prototype, error) {
	if patch.Title != nil && strings.TrimSpace(*patch.Title) == "" {
		return nil, ErrInvalidInput
	}
	if patch.Type != nil && !model.ValidPrototypeType(*patch.Type) {
		return nil, ErrInvalidInput
	}
	return s.updatePrototype(ownerID, id, func(p *model.Prototype) error {
		if p.Status == model.PrototypeStatusBuilding {
			return ErrPrototypeBuilding
		}
		if patch.Title != nil {
			p.Title = strings.TrimSpace(*patch.Title)
		}
		if patch.Type != nil {
			p.Type = *patch.Type
		}
		if patch.Description != nil {
			p.Description = strings.TrimSpace(*patch.Description)
		}
		if patch.InputDescription != nil {
			p.InputDescription = strings.TrimSpace(*patch.InputDescription)
		}
		return nil
	})
}

func (s *PrototypeService) Delete(ownerID, id uint) error {
	if _, err := s.Get(ownerID, id); err != nil {
		return err
	}
	deleted, err := s.protoRepo.DeleteUnlessBuilding(id, ownerID)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrPrototypeBuilding
	}
	return nil
}

func (s *PrototypeService) updatePrototype(ownerID, id uint, mutate func(*model.Prototype) error) (*model.Prototype, error) {
	for attempt := 0; attempt < saveAttempts; attempt++ {
		p, err := s.Get(ownerID, id)
		if err != nil {
			return nil, err
		}
		if err := mutate(p); err != nil {
			return nil, err
		}
		err = s.protoRepo.Save(p)
		if err == nil {
			return p, nil
		}
		if !errors.Is(err, repository.ErrStaleVersion) {
			return nil, err
		}
	}
	return nil, ErrConcurrentUpdate
}

// RequestBuild moves the prototype to building and queues a single build attempt.
func (s *PrototypeService) RequestBuild(ctx context.Context, ownerID, id uint) (*model.Job, error) {
	if _, err := s.Get(ownerID, id); err != nil {
		return nil, err
	}
	jobID := s.jobs.NewID()
	ok, err := s.protoRepo.BeginBuild(id, ownerID, jobID, buildStartLog)
	if err != nil {
		return nil, err
	}
	if !ok {
		if ok, err = s.takeOverBuild(ownerID, id, jobID); err != nil {
			return nil, err
		}
		if !ok {
			return nil, ErrPrototypeBuilding
		}
	}

	job, err := s.jobs.Enqueue(ctx, jobID, model.JobKindPrototypeBuild, id, ownerID, nil)
	if err != nil {
		s.markBuildError(ownerID, id, jobID, "Build failed: could not enqueue job")
		return nil, err
	}
	return job, nil
}

// takeOverBuild claims a prototype left building by an abandoned job.
func (s *PrototypeService) takeOverBuild(ownerID, id uint, jobID string) (bool, error) {
	p, err := s.Get(ownerID, id)
	if err != nil {
		return false, err
	}
	if p.Status != model.PrototypeStatusBuilding {
		return false, nil
	}
	stale := ""
	if p.JobReference != nil {
		stale = *p.JobReference
	}
	abandoned, err := s.jobs.Abandoned(stale)
	if err != nil || !abandoned {
		return false, err
	}
	ok, err := s.protoRepo.TakeOverBuild(id, ownerID, stale, jobID, buildStartLog)
	if err != nil || !ok {
		return false, err
	}
	s.log.Warn("took over abandoned build", "prototype_id", id, "stale_job_id", stale, "job_id", jobID)
	s.jobs.Supersede(stale, jobID)
	return true, nil
}

func (s *PrototypeService) Status(ownerID, id uint) (*PrototypeStatus, error) {
	p, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	return &PrototypeStatus{ID: p.ID, Status: p.Status, BuildLog: p.BuildLog, JobReference: p.JobReference}, nil
}

// Download packages a ready build. Anything else is a conflict.
func (s *PrototypeService) Download(ownerID, id uint) (*ExportFile, error) {
	p, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if p.Status != model.PrototypeStatusReady || p.GeneratedCode == nil || *p.GeneratedCode == "" {
		return nil, ErrPrototypeNotReady
	}
	requirements := generation.DefaultRequirements
	if p.Requirements != nil && strings.TrimSpace(*p.Requirements) != "" {
		requirements = *p.Requirements
	}
	body, err := ziputil.Build([]ziputil.File{
		{Name: "app.py", Body: []byte(*p.GeneratedCode)},
		{Name: "requirements.txt", Body: []byte(requirements)},
		{Name: "README.md", Body: []byte(generation.Readme(*p))},
	})
	if err != nil {
		return nil, err
	}
	return &ExportFile{Filename: SafeFilename(p.Title, "prototype") + ".zip", Body: body}, nil
}

// RunBuild performs the single generation attempt for a queued build.
func (s *PrototypeService) RunBuild(ctx context.Context, job *model.Job) error {
	log := s.log.With("job_id", job.ID, "prototype_id", job.TargetID)

	p, err := s.updatePrototype(job.OwnerID, job.TargetID, func(p *model.Prototype) error {
		if p.JobReference != nil && *p.JobReference != job.ID {
			return fmt.Errorf("%w: prototype claimed by job %s", ErrConflict, *p.JobReference)
		}
		startLog := buildStartLog
		p.Status = model.PrototypeStatusBuilding
		p.JobReference = &job.ID
		p.GeneratedCode = nil
		p.Requirements = nil
		p.BuildLog = &startLog
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPrototypeNotFound) {
			log.Info("prototype deleted before build")
			return nil
		}
		return err
	}

	code, requirements, genErr := s.safeGenerate(ctx, *p)
	if genErr == nil && strings.TrimSpace(code) == "" {
		genErr = errors.New("model returned no code")
	}
	if genErr != nil {
		log.Warn("prototype build failed", "error", genErr)
		s.markBuildError(job.OwnerID, job.TargetID, job.ID, "Build failed: "+genErr.Error())
		return genErr
	}

	_, err = s.updatePrototype(job.OwnerID, job.TargetID, func(p *model.Prototype) error {
		if p.JobReference == nil || *p.JobReference != job.ID {
			return fmt.Errorf("%w: prototype claimed by another job", ErrConflict)
		}
		doneLog := buildSuccessLog
		p.Status = model.PrototypeStatusReady
		p.GeneratedCode = &code
		p.Requirements = &requirements
		p.BuildLog = &doneLog
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPrototypeNotFound) {
			return nil
		}
		return err
	}
	log.Info("prototype build complete")
	return nil
}

func (s *PrototypeService) safeGenerate(ctx context.Context, p model.Prototype) (code, requirements string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.writer.Generate(ctx, p)
}

// FailBuild leaves the prototype in error after the worker gave up on a job.
func (s *PrototypeService) FailBuild(_ context.Context, job *model.Job, reason string) {
	s.markBuildError(job.OwnerID, job.TargetID, job.ID, "Build failed: "+reason)
}

// markBuildError only touches a prototype still building for jobID.
func (s *PrototypeService) markBuildError(ownerID, id uint, jobID, logLine string) {
	_, err := s.updatePrototype(ownerID, id, func(p *model.Prototype) error {
		if p.Status != model.PrototypeStatusBuilding || p.JobReference == nil || *p.JobReference != jobID {
			return nil
		}
		line := logLine
		p.Status = model.PrototypeStatusError
		p.GeneratedCode = nil
		p.Requirements = nil
		p.BuildLog = &line
		return nil
	})
	if err != nil && !errors.Is(err, ErrPrototypeNotFound) {
		s.log.Error("mark prototype build error failed", "prototype_id", id, "error", err)
	}
}
