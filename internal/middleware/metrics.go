package middleware

import (
	"strconv"
	"time"

	"eyescreen/pkg/metrics"
	"github.com/gofiber/fiber/v2"
)

func (m *middleware) NewMetricsMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		// route pattern, not the raw path
		route := c.Route().Path
		status := c.Response().StatusCode()
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		}

		metrics.RequestsTotal.WithLabelValues(route, c.Method(), strconv.Itoa(status)).Inc()
		metrics.RequestDuration.WithLabelValues(route, c.Method()).Observe(time.Since(start).Seconds())

		return err
	}
}
