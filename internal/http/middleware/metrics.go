package middleware

import (
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/neurobridge-player/internal/observability"
)

// Metrics records request counts and latency by route. Event streams are
// counted but not timed. A nil m is a no-op.
func Metrics(m *observability.Metrics) gin.HandlerFunc {
	if m == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return func(c *gin.Context) {
		route := c.FullPath()
		if route == "/metrics" {
			c.Next()
			return
		}
		stream := strings.HasSuffix(route, "/events")
		start := time.Now()
		if !stream {
			m.ApiInflightInc()
			defer m.ApiInflightDec()
		}

		c.Next()

		if route == "" {
			route = "unknown"
		}
		dur := time.Since(start)
		if stream {
			dur = 0
		}
		m.ObserveAPI(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), dur)
	}
}
