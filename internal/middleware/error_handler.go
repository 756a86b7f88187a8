package middleware

import (
	"github.com/gin-gonic/gin"

	apperrors "community_inbox/pkg/errors"
)

// ErrorHandler turns errors attached via c.Error into the API's error
// envelope: a machine-readable code plus a human-readable message, with the
// HTTP status derived from the error kind.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}

		err := c.Errors.Last().Err
		code := apperrors.Code(err)
		message := err.Error()
		if code == "DB_ERROR" {
			// Storage failures stay generic; internals go to logs only.
			message = "Unable to complete the request. Please try again."
		}
		c.JSON(apperrors.HTTPStatusFromError(err), apperrors.NewAPIError(code, message))
	}
}
