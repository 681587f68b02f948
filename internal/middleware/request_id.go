package middleware

import (
	"time"

	contextPkg "eyescreen/pkg/context"
	"eyescreen/pkg/utils"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
)

const RequestIDKey = "X-Request-ID"

// NewRequestIDMiddleware keeps an upstream X-Request-ID only when it is a
// valid ULID, so ids stay sortable by time; anything else is replaced. The id
// is exposed through Locals, the response header and the user context.
func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		requestID := c.Get(RequestIDKey)

		if _, err := ulid.ParseStrict(requestID); err != nil {
			requestID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)
		c.SetUserContext(contextPkg.WithRequestID(c.UserContext(), requestID))

		return c.Next()
	}
}
