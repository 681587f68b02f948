package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const RequestIDKey = "request_id"

// requestIDLocal mirrors the request id middleware's Locals key.
const requestIDLocal = "X-Request-ID"

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

func GetRequestID(ctx context.Context) string {
	requestID, ok := ctx.Value(RequestIDKey).(string)
	if !ok || requestID == "" {
		return "unknown"
	}
	return requestID
}

// FromFiberCtx returns the request's user context carrying its request id.
// The id seeded by the middleware wins; Locals and the raw header cover
// routes mounted without it.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	ctx := c.UserContext()
	if id, ok := ctx.Value(RequestIDKey).(string); ok && id != "" {
		return ctx
	}

	requestID, ok := c.Locals(requestIDLocal).(string)
	if !ok || requestID == "" {
		requestID = c.Get(requestIDLocal)
	}
	if requestID == "" {
		requestID = "unknown"
	}

	return WithRequestID(ctx, requestID)
}
