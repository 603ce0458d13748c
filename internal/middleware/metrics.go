package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Flexitaim/api-flexitaim/internal/service"
)

const unmatchedRoute = "unmatched"

// Metrics records request latency per route template. Unmatched paths share
// one label so scanners cannot blow up series cardinality, and the paths in
// skip are not recorded at all.
func Metrics(metricsSvc *service.MetricsService, skip ...string) gin.HandlerFunc {
	skipped := make(map[string]struct{}, len(skip))
	for _, p := range skip {
		skipped[p] = struct{}{}
	}
	return func(c *gin.Context) {
		if metricsSvc == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		if _, ok := skipped[path]; ok {
			return
		}
		metricsSvc.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
