package response

import (
	"errors"

	"food-marketplace-api/apperr"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// JSON writes a success envelope merged with the given fields
func JSON(c *gin.Context, status int, fields gin.H) {
	body := gin.H{"success": true}
	for k, v := range fields {
		body[k] = v
	}
	c.JSON(status, body)
}

func Data(c *gin.Context, status int, data any) {
	c.JSON(status, gin.H{"success": true, "data": data})
}

// Error maps err to its HTTP status and writes the failure envelope.
// Causes of internal and upstream errors are logged, never returned.
func Error(c *gin.Context, err error) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	body := gin.H{"success": false, "code": kind}
	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		appErr = apperr.Internal("Internal server error", err)
	}

	switch kind {
	case apperr.KindInternal, apperr.KindUpstream:
		log.Error().Err(err).
			Str("request_id", c.GetString("request_id")).
			Str("path", c.Request.URL.Path).
			Msg("request failed")
		if kind == apperr.KindInternal {
			body["error"] = "Internal server error"
		} else {
			body["error"] = appErr.Message
		}
	default:
		body["error"] = appErr.Message
	}
	if len(appErr.Details) > 0 {
		body["details"] = appErr.Details
	}
	c.AbortWithStatusJSON(status, body)
}
