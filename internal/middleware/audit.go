package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/family-console-api/internal/models"
)

const auditResourceKey = "audit_resource_id"

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SetAuditResource records the id of the resource a handler touched, for
// routes where it is not a path parameter.
func SetAuditResource(c *gin.Context, id string) {
	c.Set(auditResourceKey, id)
}

// Audit records an audit log entry after every successful mutation.
func Audit(repo auditWriter, logger *zap.Logger, action, resource string) gin.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims := CurrentUser(c); claims != nil {
			id := claims.UserID
			userID = &id
		}

		body, _ := json.Marshal(map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		})

		entry := &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: auditResourceID(c),
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		}
		if err := repo.CreateAuditLog(c.Request.Context(), entry); err != nil {
			logger.Warn("audit log write failed", zap.String("action", action), zap.String("resource", resource), zap.Error(err))
		}
	}
}

func auditResourceID(c *gin.Context) *string {
	if v, ok := c.Get(auditResourceKey); ok {
		if id, ok := v.(string); ok && id != "" {
			return &id
		}
	}
	if id := c.Param("id"); id != "" {
		return &id
	}
	return nil
}
