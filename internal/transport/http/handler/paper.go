package handler

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"scholarai/internal/app"
	"scholarai/internal/pkg/pdfextract"
	"scholarai/internal/transport/http/response"
)

type PaperHandler struct {
	researchService *app.ResearchService
}

type IngestRequest struct {
	DOI     string `json:"doi"`
	ArxivID string `json:"arxiv_id"`
	Query   string `json:"query"`
	Limit   int    `json:"limit" binding:"omitempty,min=1,max=10"`
}

type CreatePaperRequest struct {
	Title     string   `json:"title" binding:"required,max=512"`
	Abstract  string   `json:"abstract"`
	Authors   []string `json:"authors"`
	Year      *int     `json:"year" binding:"omitempty,min=1000,max=3000"`
	DOI       string   `json:"doi" binding:"max=255"`
	URL       string   `json:"url" binding:"max=1024"`
	FieldTags []string `json:"field_tags"`
}

type SearchRequest struct {
	Query string `json:"query" binding:"required"`
	Limit int    `json:"limit" binding:"omitempty,min=1,max=50"`
}

type BulkIngestRequest struct {
	Queries       []string `json:"queries" binding:"required,min=1,max=20"`
	LimitPerQuery int      `json:"limit_per_query" binding:"omitempty,min=1,max=10"`
}

func NewPaperHandler(researchService *app.ResearchService) *PaperHandler {
	return &PaperHandler{researchService: researchService}
}

func (h *PaperHandler) Ingest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	papers, err := h.researchService.Ingest(c.Request.Context(), userID, app.IngestInput{
		DOI:     req.DOI,
		ArxivID: req.ArxivID,
		Query:   req.Query,
		Limit:   req.Limit,
	})
	if err != nil {
		writeError(c, err, "ingest failed")
		return
	}
	response.OK(c, gin.H{"papers": papers})
}

func (h *PaperHandler) Create(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req CreatePaperRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	paper, err := h.researchService.CreateManual(c.Request.Context(), userID, app.ManualPaperInput{
		Title:     req.Title,
		Abstract:  req.Abstract,
		Authors:   req.Authors,
		Year:      req.Year,
		DOI:       req.DOI,
		URL:       req.URL,
		FieldTags: req.FieldTags,
	})
	if err != nil {
		writeError(c, err, "create paper failed")
		return
	}
	response.OK(c, paper)
}

func (h *PaperHandler) Upload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	fileHeader, err := c.FormFile("file")
	if err != nil {
		badRequest(c, "missing pdf file")
		return
	}
	if fileHeader.Size > pdfextract.MaxUploadBytes {
		badRequest(c, "pdf exceeds upload limit")
		return
	}
	f, err := fileHeader.Open()
	if err != nil {
		badRequest(c, "unreadable upload")
		return
	}
	defer f.Close()

	paper, err := h.researchService.UploadPDF(c.Request.Context(), userID, c.PostForm("title"), f)
	if err != nil {
		writeError(c, err, "upload paper failed")
		return
	}
	response.OK(c, paper)
}

func (h *PaperHandler) List(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	papers, total, err := h.researchService.List(userID, offset, limit)
	if err != nil {
		writeError(c, err, "list papers failed")
		return
	}
	response.OK(c, gin.H{"papers": papers, "total": total})
}

func (h *PaperHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	paper, err := h.researchService.Get(userID, id)
	if err != nil {
		writeError(c, err, "get paper failed")
		return
	}
	response.OK(c, paper)
}

func (h *PaperHandler) Delete(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	if err := h.researchService.Delete(c.Request.Context(), userID, id); err != nil {
		writeError(c, err, "delete paper failed")
		return
	}
	response.OK(c, nil)
}

func (h *PaperHandler) Search(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req SearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	results, err := h.researchService.Search(c.Request.Context(), userID, req.Query, req.Limit)
	if err != nil {
		writeError(c, err, "search failed")
		return
	}
	response.OK(c, gin.H{"results": results})
}

func (h *PaperHandler) BulkIngest(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	var req BulkIngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request payload")
		return
	}
	job, err := h.researchService.RequestBulkIngest(c.Request.Context(), userID, app.BulkIngestPayload{
		Queries:       req.Queries,
		LimitPerQuery: req.LimitPerQuery,
	})
	if err != nil {
		writeError(c, err, "bulk ingest failed")
		return
	}
	response.Accepted(c, job)
}
