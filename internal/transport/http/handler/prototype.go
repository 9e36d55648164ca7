package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"scholarai/internal/app"
	"scholarai/internal/transport/http/response"
)

type PrototypeHandler struct {
	prototypeService *app.PrototypeService
}

type CreatePrototypeRequest struct {
	ProjectID        uint   `json:"project_id" binding:"required"`
	Title            string `json:"title" binding:"required,max=255"`
	Type             string `json:"type" binding:"required"`
	Description      string `json:"description"`
	InputDescription string `json:"input_description"`
}

type UpdatePrototypeRequest struct {
	Title            *string `json:"title" binding:"omitempty,max=255"`
	Type             *string `json:"type"`
	Description      *string `json:"description"`
	InputDescription *string `json:"input_description"`
}

func NewPrototypeHandler(prototypeService *app.PrototypeService) *PrototypeHandler {
	return &PrototypeHandler{prototypeService: prototypeService}
}

func (h *PrototypeHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreatePrototypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	p, err := h.prototypeService.Create(userID, app.PrototypeInput{
		ProjectID:        req.ProjectID,
		Title:            req.Title,
		Type:             req.Type,
		Description:      req.Description,
		InputDescription: req.InputDescription,
	})
	if err != nil {
		writeError(c, err, "create prototype failed")
		return
	}
	response.OK(c, p)
}

func (h *PrototypeHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := queryUint(c, "project_id")
	if !ok {
		return
	}
	list, err := h.prototypeService.List(userID, projectID)
	if err != nil {
		writeError(c, err, "list prototypes failed")
		return
	}
	response.OK(c, gin.H{"prototypes": list})
}

func (h *PrototypeHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.prototypeService.Get(userID, id)
	if err != nil {
		writeError(c, err, "get prototype failed")
		return
	}
	response.OK(c, p)
}

func (h *PrototypeHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdatePrototypeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	p, err := h.prototypeService.Update(userID, id, app.PrototypePatch{
		Title:            req.Title,
		Type:             req.Type,
		Description:      req.Description,
		InputDescription: req.InputDescription,
	})
	if err != nil {
		writeError(c, err, "update prototype failed")
		return
	}
	response.OK(c, p)
}

func (h *PrototypeHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.prototypeService.Delete(userID, id); err != nil {
		writeError(c, err, "delete prototype failed")
		return
	}
	response.OK(c, nil)
}

func (h *PrototypeHandler) Build(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	job, err := h.prototypeService.RequestBuild(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err, "queue build failed")
		return
	}
	response.Accepted(c, gin.H{"job": job, "prototype_id": id, "status": job.State})
}

func (h *PrototypeHandler) Status(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	status, err := h.prototypeService.Status(userID, id)
	if err != nil {
		writeError(c, err, "get prototype status failed")
		return
	}
	response.OK(c, status)
}

func (h *PrototypeHandler) Download(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, err := h.prototypeService.Download(userID, id)
	if err != nil {
		writeError(c, err, "download prototype failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, "application/zip", file.Body)
}
