package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/smallbiznis/quoteflow/internal/document"
)

func newValidationError(field, rule, message string) error {
	return document.NewValidationError(field, rule, message)
}

func invalidRequestError() error {
	return document.NewValidationError("request", "malformed", "request body could not be parsed")
}

// AbortWithError maps domain errors onto HTTP statuses. Storage and unknown
// failures are reported without their internal detail.
func AbortWithError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	code := "internal"
	message := "an internal error occurred"

	switch {
	case errors.Is(err, document.ErrValidation):
		status = http.StatusBadRequest
		code = "invalid_request"
		message = err.Error()
	case errors.Is(err, document.ErrNotFound):
		status = http.StatusNotFound
		code = "not_found"
		message = err.Error()
	case errors.Is(err, document.ErrInvalidTransition):
		status = http.StatusConflict
		code = "invalid_transition"
		message = err.Error()
	case errors.Is(err, document.ErrConflict):
		status = http.StatusConflict
		code = "conflict"
		message = err.Error()
	case errors.Is(err, document.ErrStorage):
		status = http.StatusInternalServerError
		code = "storage"
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"code":    code,
		"message": message,
	}})
}
