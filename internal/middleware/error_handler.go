// Package middleware provides the gin middleware shared by the API server.
package middleware

import (
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"speedquant/internal/errors"
	"speedquant/internal/logging"
)

// Recovery converts panics into JSON error responses.
func Recovery(log *logging.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.WithFields(map[string]interface{}{
			"error":  recovered,
			"stack":  string(debug.Stack()),
			"path":   c.Request.URL.Path,
			"method": c.Request.Method,
		}).Error("panic recovered")

		writeError(c, errors.NewAppError(errors.ErrCodeInternal, "internal server error", nil))
	})
}

// ErrorHandler renders errors attached to the gin context as the standard
// error envelope, mapping AppError codes onto HTTP status codes.
func ErrorHandler(log *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = errors.WrapError(err, errors.ErrCodeInternal, "internal server error")
		}

		log.WithFields(map[string]interface{}{
			"error_code": appErr.Code,
			"severity":   appErr.Severity,
			"path":       c.Request.URL.Path,
		}).WithError(appErr).Error("request failed")

		writeError(c, appErr)
	}
}

func writeError(c *gin.Context, err *errors.AppError) {
	c.JSON(err.HTTPStatus(), errors.NewErrorResponse(err, c.Request.URL.Path))
	c.Abort()
}
