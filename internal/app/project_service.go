package app

import (
	"strings"

	"scholarai/internal/generation"
	"scholarai/internal/model"
	"scholarai/internal/repository"
)

type ProjectService struct {
	projectRepo *repository.ProjectRepository
	catalog     generation.Catalog
}

type ProjectInput struct {
	Title       string
	Description string
	Field       string
	Status      string
}

// ProjectPatch leaves nil fields untouched.
type ProjectPatch struct {
	Title       *string
	Description *string
	Field       *string
	Status      *string
}

func NewProjectService(projectRepo *repository.ProjectRepository, catalog generation.Catalog) *ProjectService {
	return &ProjectService{projectRepo: projectRepo, catalog: catalog}
}

func (s *ProjectService) Create(ownerID uint, input ProjectInput) (*model.Project, error) {
	title := strings.TrimSpace(input.Title)
	status := input.Status
	if status == "" {
		status = model.ProjectStatusDraft
	}
	if ownerID == 0 || title == "" || !model.ValidField(input.Field) || !model.ValidProjectStatus(status) {
		return nil, ErrInvalidInput
	}
	project := &model.Project{
		OwnerID:     ownerID,
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Field:       input.Field,
		Status:      status,
	}
	if err := s.projectRepo.Create(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) List(ownerID uint) ([]model.Project, error) {
	if ownerID == 0 {
		return nil, ErrInvalidInput
	}
	return s.projectRepo.ListByOwnerID(ownerID)
}

func (s *ProjectService) Get(ownerID, id uint) (*model.Project, error) {
	project, err := s.projectRepo.GetByIDAndOwnerID(id, ownerID)
	if err != nil {
		return nil, err
	}
	if project == nil {
		return nil, ErrProjectNotFound
	}
	return project, nil
}

func (s *ProjectService) Update(ownerID, id uint, patch ProjectPatch) (*model.Project, error) {
	project, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, ErrInvalidInput
		}
		project.Title = title
	}
	if patch.Description != nil {
		project.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Field != nil {
		if !model.ValidField(*patch.Field) {
			return nil, ErrInvalidInput
		}
		project.Field = *patch.Field
	}
	if patch.Status != nil {
		if !model.ValidProjectStatus(*patch.Status) {
			return nil, ErrInvalidInput
		}
		project.Status = *patch.Status
	}
	if err := s.projectRepo.Update(project); err != nil {
		return nil, err
	}
	return project, nil
}

func (s *ProjectService) Delete(ownerID, id uint) error {
	if _, err := s.Get(ownerID, id); err != nil {
		return err
	}
	return s.projectRepo.DeleteCascade(id, ownerID)
}

// Sections lists the ordered section names a document in this project gets.
func (s *ProjectService) Sections(ownerID, id uint) ([]string, error) {
	project, err := s.Get(ownerID, id)
	if err != nil {
		return nil, err
	}
	return s.catalog.Sections(project.Field), nil
}
