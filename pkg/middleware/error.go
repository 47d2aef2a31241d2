package middleware

import (
	"errors"
	"net/http"

	"castcle-backend/pkg/errutil"

	"github.com/gin-gonic/gin"
)

// Error translates domain errors attached to the gin context into the
// platform's error envelope. Unknown errors become opaque 500s.
func Error() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		last := c.Errors.Last()
		if last == nil || c.Writer.Written() {
			return
		}

		var be errutil.BaseError
		if errors.As(last.Err, &be) {
			c.JSON(be.Code.HTTPStatus(), be.JSON())
			return
		}

		c.JSON(http.StatusInternalServerError, gin.H{
			"error": gin.H{
				"code":    errutil.StatusInternal,
				"message": "INTERNAL_SERVER_ERROR",
			},
		})
	}
}
