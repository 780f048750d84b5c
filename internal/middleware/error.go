package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/securequery/agent-api/internal/handler"
	apperrors "github.com/securequery/agent-api/pkg/errors"
)

// ErrorHandler translates application errors attached to the context into
// a JSON envelope. Internal details are logged, never returned.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		log.Error().
			Err(err).
			Str("request_id", c.GetString(ContextRequestID)).
			Str("path", c.Request.URL.Path).
			Str("method", c.Request.Method).
			Msg("request error")

		if c.Writer.Written() {
			return
		}

		status, message := statusFor(err)
		c.JSON(status, handler.NewErrorResponse(message))
	}
}

func statusFor(err error) (int, string) {
	switch apperrors.CodeOf(err) {
	case apperrors.ErrValidationViolation:
		return http.StatusUnprocessableEntity, err.Error()
	case apperrors.ErrAccessDenied:
		return http.StatusForbidden, err.Error()
	case apperrors.ErrNotFound:
		return http.StatusNotFound, err.Error()
	case apperrors.ErrBadRequest:
		return http.StatusBadRequest, err.Error()
	case apperrors.ErrUnauthorized:
		return http.StatusUnauthorized, err.Error()
	case apperrors.ErrDecryption, apperrors.ErrAuditSinkUnavailable, apperrors.ErrInternal:
		return http.StatusInternalServerError, "internal error"
	default:
		return http.StatusInternalServerError, "internal error"
	}
}
