package http

import (
	"context"
	"errors"
	"net/http"

	"repverse/internal/app"
	"repverse/internal/domain/evaluation"
	reperrors "repverse/internal/shared/errors"
	"repverse/internal/shared/logging"

	"github.com/gin-gonic/gin"
)

const messageInternal = "Internal Server Error"

// mapDomainError translates a service error into an HTTP status code and a
// caller-facing message. It returns (0, "") for errors it does not know, and
// the caller falls back to a 500.
func mapDomainError(err error) (status int, message string) {
	if err == nil {
		return 0, ""
	}

	switch {
	case errors.Is(err, app.ErrValidation):
		return http.StatusBadRequest, app.PublicMessage(err)

	case errors.Is(err, app.ErrNotFound):
		return http.StatusNotFound, app.PublicMessage(err)

	case errors.Is(err, app.ErrConflict):
		return http.StatusConflict, app.PublicMessage(err)

	case errors.Is(err, app.ErrUnavailable):
		return http.StatusServiceUnavailable, app.PublicMessage(err)

	// Model failures stay opaque to callers whatever their cause.
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, evaluation.ErrUnparsableOpinion),
		reperrors.IsTransient(err):
		return http.StatusInternalServerError, messageInternal

	default:
		return 0, ""
	}
}

// writeError writes {"success":false,"message":...} using the mapped status
// when the error is recognized, and fallback with a 500 otherwise.
func writeError(c *gin.Context, logger logging.Logger, err error, fallback string) {
	logger = logging.FromContext(c.Request.Context(), logger)
	status, message := mapDomainError(err)
	if status == 0 {
		status, message = http.StatusInternalServerError, fallback
	}
	if message == "" {
		message = http.StatusText(status)
	}
	if status >= http.StatusInternalServerError {
		logger.Error("%s %s failed: %v", c.Request.Method, c.FullPath(), err)
	} else {
		logger.Warn("%s %s rejected (%d): %v", c.Request.Method, c.FullPath(), status, err)
	}
	_ = c.Error(err)
	c.JSON(status, gin.H{"success": false, "message": message})
}

func writeBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": message})
}
