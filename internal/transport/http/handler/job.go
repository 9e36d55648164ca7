package handler

import (
	"github.com/gin-gonic/gin"

	"scholarai/internal/app"
	"scholarai/internal/transport/http/response"
)

type JobHandler struct {
	jobService *app.JobService
}

func NewJobHandler(jobService *app.JobService) *JobHandler {
	return &JobHandler{jobService: jobService}
}

func (h *JobHandler) Get(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	job, err := h.jobService.Get(userID, c.Param("id"))
	if err != nil {
		writeError(c, err, "get job failed")
		return
	}
	response.OK(c, job)
}
