package respond

import (
	"schoolsite-app/internal/domain/apperr"
	"schoolsite-app/internal/infra/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Error writes err using its taxonomy kind. Detailed callers (admins) get
// the full message; everyone else gets generic text for failures and the
// domain message for invalid or conflicting input.
func Error(c *gin.Context, op string, err error, detailed bool) {
	kind := apperr.KindOf(err)
	status := apperr.HTTPStatus(kind)

	if status >= 500 {
		logger.WithRequest(c).Error(op+" failed", zap.Error(err))
	}

	msg := apperr.PublicMessage(kind)
	if detailed {
		msg = err.Error()
	} else if msg == "" {
		msg = err.Error()
	}
	c.AbortWithStatusJSON(status, gin.H{"error": msg, "code": apperr.CodeOf(err)})
}

// Invalid is a 400 for malformed input.
func Invalid(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(400, gin.H{"error": msg, "code": "invalid_input"})
}
