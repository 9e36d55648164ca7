package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"scholarai/internal/app"
	"scholarai/internal/transport/http/response"
)

const docxContentType = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"

type DocumentHandler struct {
	documentService *app.DocumentService
}

type CreateDocumentRequest struct {
	ProjectID     uint   `json:"project_id" binding:"required"`
	Title         string `json:"title" binding:"required,max=255"`
	CitationStyle string `json:"citation_style"`
}

type UpdateDocumentRequest struct {
	Title         *string `json:"title" binding:"omitempty,max=255"`
	CitationStyle *string `json:"citation_style"`
}

type GenerateSectionRequest struct {
	ExtraContext string `json:"extra_context"`
}

func NewDocumentHandler(documentService *app.DocumentService) *DocumentHandler {
	return &DocumentHandler{documentService: documentService}
}

func (h *DocumentHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	doc, err := h.documentService.Create(userID, app.DocumentInput{
		ProjectID:     req.ProjectID,
		Title:         req.Title,
		CitationStyle: req.CitationStyle,
	})
	if err != nil {
		writeError(c, err, "create document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	projectID, ok := queryUint(c, "project_id")
	if !ok {
		return
	}
	docs, err := h.documentService.List(userID, projectID)
	if err != nil {
		writeError(c, err, "list documents failed")
		return
	}
	response.OK(c, gin.H{"documents": docs})
}

func (h *DocumentHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	doc, err := h.documentService.Get(userID, id)
	if err != nil {
		writeError(c, err, "get document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Update(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req UpdateDocumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	doc, err := h.documentService.Update(userID, id, app.DocumentPatch{
		Title:         req.Title,
		CitationStyle: req.CitationStyle,
	})
	if err != nil {
		writeError(c, err, "update document failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.documentService.Delete(userID, id); err != nil {
		writeError(c, err, "delete document failed")
		return
	}
	response.OK(c, nil)
}

func (h *DocumentHandler) Generate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	job, err := h.documentService.RequestGeneration(c.Request.Context(), userID, id)
	if err != nil {
		writeError(c, err, "queue generation failed")
		return
	}
	response.Accepted(c, gin.H{"job": job, "document_id": id, "status": job.State})
}

func (h *DocumentHandler) GenerateSection(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req GenerateSectionRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}
	}
	doc, err := h.documentService.GenerateSection(c.Request.Context(), userID, id, c.Param("section"), req.ExtraContext)
	if err != nil {
		writeError(c, err, "generate section failed")
		return
	}
	response.OK(c, doc)
}

func (h *DocumentHandler) Export(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	file, err := h.documentService.Export(userID, id)
	if err != nil {
		writeError(c, err, "export document failed")
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Data(http.StatusOK, docxContentType, file.Body)
}
