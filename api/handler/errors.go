package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/pricelens/models"
	"github.com/use-agent/pricelens/runs"
)

// respondError writes the error body for err with the status its kind maps to.
func respondError(c *gin.Context, err error) {
	status, code := mapErrorToStatus(err)
	c.JSON(status, models.ErrorResponse{Error: err.Error(), Code: code})
}

// mapErrorToStatus translates service errors to HTTP status codes.
func mapErrorToStatus(err error) (int, string) {
	switch {
	case errors.Is(err, runs.ErrRunNotFound):
		return http.StatusNotFound, models.ErrCodeRunNotFound // 404
	case errors.Is(err, runs.ErrDocumentNotReady):
		return http.StatusConflict, models.ErrCodeNotReady // 409
	default:
		return http.StatusInternalServerError, models.ErrCodeInternal // 500
	}
}

func badRequest(c *gin.Context, msg string, invalidTokens []string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:         msg,
		Code:          models.ErrCodeInvalidInput,
		InvalidTokens: invalidTokens,
	})
}
