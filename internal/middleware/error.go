package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	apperrors "github.com/pawdesk/scheduling-api/pkg/errors"
)

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Code      string      `json:"code"`
	Message   string      `json:"message"`
	Conflicts interface{} `json:"conflicts,omitempty"`
	RequestID string      `json:"request_id,omitempty"`
}

// ErrorHandler maps errors attached to the gin context onto the response
// envelope. Domain error kinds keep their code so clients can branch on
// them; everything else collapses to INTERNAL.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		requestID := c.GetString(ContextRequestID)

		for _, e := range c.Errors {
			log.Error().
				Err(e.Err).
				Str("request_id", requestID).
				Str("path", c.Request.URL.Path).
				Str("method", c.Request.Method).
				Msg("request error")
		}

		lastErr := c.Errors.Last()
		status := http.StatusInternalServerError
		if err, ok := lastErr.Err.(interface{ StatusCode() int }); ok {
			status = err.StatusCode()
		}

		resp := ErrorResponse{
			Code:      string(apperrors.KindOf(lastErr.Err)),
			Message:   lastErr.Error(),
			RequestID: requestID,
		}
		if appErr, ok := lastErr.Err.(*apperrors.AppError); ok && len(appErr.Conflicts) > 0 {
			resp.Conflicts = appErr.Conflicts
		}

		c.JSON(status, resp)
	}
}
