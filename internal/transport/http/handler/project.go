package handler

import (
	"github.com/gin-gonic/gin"

	"scholarai/internal/app"
	"scholarai/internal/transport/http/response"
)

type ProjectHandler struct {
	projectService *app.ProjectService
}

type CreateProjectRequest struct {
	Title       string `json:"title" binding:"required,max=255"`
	Description string `json:"description"`
	Field       string `json:"field" binding:"required"`
	Status      string `json:"status"`
}

type UpdateProjectRequest struct {
	Title       *string `json:"title" binding:"omitempty,max=255"`
	Description *string `json:"description"`
	Field       *string `json:"field"`
	Status      *string `json:"status"`
}

func NewProjectHandler(projectService *app.ProjectService) *ProjectHandler {
	return &ProjectHandler{projectService: projectService}
}

func (h *ProjectHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	project, err := h.projectService.Create(userID, app.ProjectInput{
		Title:       req.Title,
		Description: req.Description,
		Field:       req.Field,
		Status:      req.Status,
	})
	if err != nil {
		writeError(c, err, "create project failed")
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projects, err := h.projectService.List(userID)
	if err != nil {
		writeError(c, err, "list projects failed")
		return
	}
	response.OK(c, gin.H{"projects": projects})
}

func (h *ProjectHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	project, err := h.projectService.Get(userID, id)
	if err != nil {
		writeError(c, err, "get project failed")
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateProjectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	project, err := h.projectService.Update(userID, id, app.ProjectPatch{
		Title:       req.Title,
		Description: req.Description,
		Field:       req.Field,
		Status:      req.Status,
	})
	if err != nil {
		writeError(c, err, "update project failed")
		return
	}
	response.OK(c, project)
}

func (h *ProjectHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.projectService.Delete(userID, id); err != nil {
		writeError(c, err, "delete project failed")
		return
	}
	response.OK(c, nil)
}

func (h *ProjectHandler) Sections(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	sections, err := h.projectService.Sections(userID, id)
	if err != nil {
		writeError(c, err, "list sections failed")
		return
	}
	response.OK(c, gin.H{"sections": sections})
}
