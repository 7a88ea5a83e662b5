package response

import (
	"net/http"

	"garmentflow/internal/logger"
	"garmentflow/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// Response represents a standard API response format
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
	Code    string      `json:"code,omitempty"` // machine-readable error code
}

// Success returns a standard success response wrapping the data
func Success(data interface{}) Response {
	return Response{
		Success: true,
		Data:    data,
	}
}

// Error returns a standard error response wrapping the error message
func Error(code, err string) Response {
	return Response{
		Success: false,
		Error:   err,
		Code:    code,
	}
}

// OK writes a 200 success envelope
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, Success(data))
}

// Created writes a 201 success envelope
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, Success(data))
}

// BadRequest writes a 400 for payloads that failed binding
func BadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Error(apperror.CodeInvalidInput, message))
}

// Fail converts err into the JSON envelope. Internal errors are logged and
// replaced with a generic message.
func Fail(c *gin.Context, err error) {
	appErr := apperror.As(err)
	status := appErr.Status()

	if status >= http.StatusInternalServerError {
		logger.Get().WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
			"code":   appErr.Code,
		}).WithError(err).Error("request failed")
		_ = c.Error(err)
		c.JSON(status, Error(appErr.Code, "Internal server error"))
		return
	}

	c.JSON(status, Error(appErr.Code, appErr.Message))
}
