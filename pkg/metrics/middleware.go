package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// GinMiddleware records request counts and latency per route template.
// Unmatched paths share one "unrouted" label so probing bots cannot blow up
// label cardinality.
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unrouted"
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		HTTPRequestsTotal.WithLabelValues(route, method, status).Inc()
		HTTPRequestDuration.WithLabelValues(route, method, status).Observe(time.Since(start).Seconds())
	}
}
