package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/pkg/middleware/requestid"
)

const (
	responseMetaKey   = "response_meta"
	requestStartKey   = "response_meta_start"
	cacheHitKey       = "cache_hit"
	processingTimeKey = "processing_time_ms"
)

// WithResponseMeta records when the request started so handlers that attach
// metadata can report processing time in the response body.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(requestStartKey, time.Now())
		c.Next()
	}
}

// SetCacheHit records whether the payload came from the availability cache.
func SetCacheHit(c *gin.Context, hit bool) {
	SetMeta(c, cacheHitKey, hit)
}

// SetMeta stores one metadata entry for the current response.
func SetMeta(c *gin.Context, key string, value interface{}) {
	if c == nil {
		return
	}
	meta, _ := c.Get(responseMetaKey)
	typed, ok := meta.(map[string]interface{})
	if !ok {
		typed = make(map[string]interface{})
		c.Set(responseMetaKey, typed)
	}
	typed[key] = value
}

// ExtractMeta returns the metadata gathered so far, stamped with the request
// id and elapsed time. It returns nil when no handler attached metadata.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	meta, _ := c.Get(responseMetaKey)
	typed, ok := meta.(map[string]interface{})
	if !ok {
		return nil
	}
	out := make(map[string]interface{}, len(typed)+2)
	for k, v := range typed {
		out[k] = v
	}
	if start, ok := c.Get(requestStartKey); ok {
		if t, ok := start.(time.Time); ok {
			out[processingTimeKey] = time.Since(t).Milliseconds()
		}
	}
	if id := requestid.Value(c); id != "" {
		out["request_id"] = id
	}
	return out
}
