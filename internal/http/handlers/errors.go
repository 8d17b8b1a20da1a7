package handlers

import (
	"net/http"

	"conductor/internal/domain"
	"conductor/internal/http/middleware"
	"conductor/internal/utils"

	"github.com/gin-gonic/gin"
)

// ErrorResponse standardizes error payloads.
type ErrorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Message   string `json:"message"`
	Details   any    `json:"details,omitempty"`
}

func respondError(c *gin.Context, status int, code, message string, details any) {
	if code == "" {
		code = http.StatusText(status)
	}
	c.JSON(status, ErrorResponse{
		Error:     message,
		Code:      code,
		RequestID: middleware.GetRequestID(c),
		Message:   message,
		Details:   details,
	})
}

// RespondDomainError maps domain errors to HTTP responses.
func RespondDomainError(c *gin.Context, err error) {
	code := domain.Code(err)
	switch {
	case domain.IsValidation(err):
		respondError(c, http.StatusBadRequest, code, err.Error(), nil)
	case domain.IsNotFound(err):
		respondError(c, http.StatusNotFound, code, err.Error(), nil)
	case domain.IsConflict(err):
		respondError(c, http.StatusConflict, code, err.Error(), nil)
	default:
		utils.Error("request failed", "request_id", middleware.GetRequestID(c), "path", c.FullPath(), "error", err)
		respondError(c, http.StatusInternalServerError, code, "internal error", nil)
	}
}
