package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"logitrack/pkg/log"
	"logitrack/pkg/metrics"
)

// RequestLogger writes one zerolog line per request and records the API
// metrics under the route template.
func RequestLogger() gin.HandlerFunc {
	logger := log.WithComponent("http")

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		metrics.APIRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		metrics.APIRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}
		if len(c.Errors) > 0 {
			event = event.Str("errors", c.Errors.String())
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("route", route).
			Int("status", status).
			Dur("latency", elapsed).
			Str("client", c.ClientIP()).
			Str("user", UserID(c)).
			Msg("request")
	}
}
