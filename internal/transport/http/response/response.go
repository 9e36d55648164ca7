package response

import "github.com/gin-gonic/gin"

const (
	CodeOK                 = 0
	CodeBadRequest         = 40000
	CodeEmailExists        = 40002
	CodeUnauthorized       = 40100
	CodeInvalidCredentials = 40101
	CodeInvalidToken       = 40102
	CodeForbidden          = 40300
	CodeInactiveUser       = 40301
	CodeNotFound           = 40400
	CodeProjectNotFound    = 40401
	CodeDocumentNotFound   = 40402
	CodePrototypeNotFound  = 40403
	CodePaperNotFound      = 40404
	CodeJobNotFound        = 40405
	CodeSourceUnavailable  = 40406
	CodeConflict           = 40900
	CodeGenerating         = 40901
	CodeBuilding           = 40902
	CodeNotReady           = 40903
	CodeConcurrentUpdate   = 40904
	CodeInternalServer     = 50000
	CodeEnqueueFailed      = 50300
)

type APIResponse struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func OK(c *gin.Context, data interface{}) {
	c.JSON(200, APIResponse{
		Code:    CodeOK,
		Message: "ok",
		Data:    data,
	})
}

// Accepted is used for requests that queued background work.
func Accepted(c *gin.Context, data interface{}) {
	c.JSON(202, APIResponse{
		Code:    CodeOK,
		Message: "accepted",
		Data:    data,
	})
}

func Error(c *gin.Context, httpStatus, code int, message string) {
	c.JSON(httpStatus, APIResponse{
		Code:    code,
		Message: message,
	})
}
