package middleware

import (
	"eyescreen/pkg/log"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
)

func (m *middleware) NewLoggingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()

		err := c.Next()

		latency := time.Since(start)
		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}

		logFields := log.Fields{
			"request_id":    m.GetRequestID(c),
			"method":        c.Method(),
			"path":          c.Path(),
			"status":        status,
			"latency_ms":    latency.Milliseconds(),
			"ip":            c.IP(),
			"user_agent":    c.Get(fiber.HeaderUserAgent),
			"response_size": len(c.Response().Body()),
		}

		if strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			logFields["request_body"] = summarizeJSONBody(c.Body())
		}

		switch {
		case status >= 500:
			log.Error(logFields, "Server error")
		case status >= 400:
			log.Warn(logFields, "Client error")
		default:
			log.Info(logFields, "Success")
		}

		return err
	}
}

// summarizeJSONBody replaces top-level arrays by their length and masks
// secret-looking fields.
func summarizeJSONBody(body []byte) string {
	if len(body) == 0 {
		return ""
	}

	var jsonBody map[string]interface{}
	if err := jsoniter.Unmarshal(body, &jsonBody); err != nil {
		return "[non-JSON body]"
	}

	for k, v := range jsonBody {
		if arr, ok := v.([]interface{}); ok {
			jsonBody[k] = map[string]int{"len": len(arr)}
		}
		if isSensitive(k) {
			jsonBody[k] = "[SECRET]"
		}
	}

	summarized, err := jsoniter.MarshalToString(jsonBody)
	if err != nil {
		return "[sanitization-failed]"
	}
	return summarized
}

func isSensitive(field string) bool {
	field = strings.ToLower(field)
	for _, s := range []string{"password", "token", "secret", "key", "authorization"} {
		if strings.Contains(field, s) {
			return true
		}
	}
	return false
}
