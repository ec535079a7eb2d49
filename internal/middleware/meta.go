package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/family-console-api/pkg/middleware/requestid"
)

const (
	responseMetaKey = "response_meta"
	cacheHitKey     = "cache_hit"
)

// WithResponseMeta prepares the per-request meta map that handlers attach to
// successful envelopes.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(responseMetaKey, map[string]interface{}{"started_at": time.Now()})
		c.Next()
	}
}

// SetCacheHit records whether the response was served from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	ensureMeta(c)[cacheHitKey] = hit
}

// ExtractMeta returns the public meta for the current response: the request
// id, elapsed time and anything handlers recorded.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	stored := ensureMeta(c)
	meta := make(map[string]interface{}, len(stored)+1)
	for k, v := range stored {
		if k == "started_at" {
			if start, ok := v.(time.Time); ok {
				meta["processing_time_ms"] = time.Since(start).Milliseconds()
			}
			continue
		}
		meta[k] = v
	}
	if id := requestid.Value(c); id != "" {
		meta["request_id"] = id
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if meta, exists := c.Get(responseMetaKey); exists {
		if typed, ok := meta.(map[string]interface{}); ok {
			return typed
		}
	}
	meta := make(map[string]interface{})
	c.Set(responseMetaKey, meta)
	return meta
}
