package middleware

import (
	"strconv"
	"time"

	"github.com/Abdullah-608/gigpanda/pkg/metrics"
	"github.com/gin-gonic/gin"
)

// Metrics records request duration per route. The route template is used as
// the path label so ids don't explode cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(
			c.Request.Method,
			path,
			strconv.Itoa(c.Writer.Status()),
			time.Since(start),
		)
	}
}
