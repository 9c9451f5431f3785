package middleware

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"snapgram/apperror"
)

// Errors is the single error-to-response translation point. Anything a
// handler pushes onto the gin error list is rendered as the uniform
// {message: "error", err: <message>} envelope; unexpected errors become a
// plain 500 and are logged rather than leaked.
func Errors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		status := http.StatusInternalServerError
		message := "Something went wrong"

		var appErr *apperror.Error
		if errors.As(err, &appErr) {
			status = appErr.StatusCode
			message = appErr.Message
		} else {
			log.Error().Err(err).
				Str("method", c.Request.Method).
				Str("path", c.Request.URL.Path).
				Msg("unexpected error")
		}

		if !c.Writer.Written() {
			c.JSON(status, gin.H{"message": "error", "err": message})
		}
	}
}
