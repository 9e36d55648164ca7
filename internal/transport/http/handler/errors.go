package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"scholarai/internal/app"
	"scholarai/internal/transport/http/middleware"
	"scholarai/internal/transport/http/response"
)

type errorMapping struct {
	target error
	status int
	code   int
}

// Most specific sentinels first; the generic ones catch wrapped variants.
var errorMappings = []errorMapping{
	{app.ErrEmailExists, http.StatusBadRequest, response.CodeEmailExists},
	{app.ErrInvalidCredential, http.StatusUnauthorized, response.CodeInvalidCredentials},
	{app.ErrInvalidToken, http.StatusUnauthorized, response.CodeInvalidToken},
	{app.ErrInactiveUser, http.StatusForbidden, response.CodeInactiveUser},
	{app.ErrProjectNotFound, http.StatusNotFound, response.CodeProjectNotFound},
	{app.ErrDocumentNotFound, http.StatusNotFound, response.CodeDocumentNotFound},
	{app.ErrPrototypeNotFound, http.StatusNotFound, response.CodePrototypeNotFound},
	{app.ErrPaperNotFound, http.StatusNotFound, response.CodePaperNotFound},
	{app.ErrJobNotFound, http.StatusNotFound, response.CodeJobNotFound},
	{app.ErrPaperSourceDown, http.StatusNotFound, response.CodeSourceUnavailable},
	{app.ErrDocumentGenerating, http.StatusConflict, response.CodeGenerating},
	{app.ErrPrototypeBuilding, http.StatusConflict, response.CodeBuilding},
	{app.ErrPrototypeNotReady, http.StatusConflict, response.CodeNotReady},
	{app.ErrConcurrentUpdate, http.StatusConflict, response.CodeConcurrentUpdate},
	{app.ErrEnqueueFailed, http.StatusServiceUnavailable, response.CodeEnqueueFailed},
	{app.ErrInvalidInput, http.StatusBadRequest, response.CodeBadRequest},
	{app.ErrForbidden, http.StatusForbidden, response.CodeForbidden},
	{app.ErrNotFound, http.StatusNotFound, response.CodeNotFound},
	{app.ErrConflict, http.StatusConflict, response.CodeConflict},
}

// writeError maps service errors onto the response envelope. Unknown errors
// become a 500 carrying fallback so driver messages never leak.
func writeError(c *gin.Context, err error, fallback string) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			response.Error(c, m.status, m.code, err.Error())
			return
		}
	}
	_ = c.Error(err)
	response.Error(c, http.StatusInternalServerError, response.CodeInternalServer, fallback)
}

func badRequest(c *gin.Context, msg string) {
	response.Error(c, http.StatusBadRequest, response.CodeBadRequest, msg)
}

func currentUser(c *gin.Context) (uint, bool) {
	id, ok := middleware.UserID(c)
	if !ok {
		response.Error(c, http.StatusUnauthorized, response.CodeUnauthorized, "user not found in token")
	}
	return id, ok
}

func pathID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func queryUint(c *gin.Context, name string) (uint, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

// IsForbidden lets the auth middleware classify inactive accounts.
func IsForbidden(err error) bool {
	return errors.Is(err, app.ErrForbidden)
}
