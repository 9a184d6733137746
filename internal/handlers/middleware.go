package handlers

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"windfault/internal/metrics"
)

// requestLogMiddleware logs every API request and feeds the HTTP counters.
// The route template (not the raw path) keeps metric cardinality bounded.
func (h *Handler) requestLogMiddleware(c *gin.Context) {
	start := time.Now()

	c.Next()

	path := c.FullPath()
	if path == "" {
		path = "unmatched"
	}
	status := c.Writer.Status()
	metrics.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(status)).Inc()

	if h.log == nil {
		return
	}
	fields := []interface{}{
		"method", c.Request.Method,
		"path", c.Request.URL.Path,
		"status", status,
		"duration", time.Since(start).String(),
		"client", c.ClientIP(),
	}
	if status >= 500 {
		h.log.Errorw("http_request", fields...)
	} else {
		h.log.Infow("http_request", fields...)
	}
}
