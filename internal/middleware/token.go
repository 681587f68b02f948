package middleware

import (
	"eyescreen/pkg/handlerUtil"
	jwtPkg "eyescreen/pkg/jwt"
	"eyescreen/pkg/log"
	"github.com/gofiber/fiber/v2"
)

const (
	AccessTokenSecret = "JWT_ACCESS_TOKEN_SECRET"
)

type tokenMiddleware struct {
	secretEnvKey string
}

func newTokenMiddleware(secretEnvKey string) *tokenMiddleware {
	return &tokenMiddleware{secretEnvKey: secretEnvKey}
}

func (m *middleware) NewTokenMiddleware(ctx *fiber.Ctx) error {
	requestID := m.GetRequestID(ctx)
	errHandler := handlerUtil.New(m.log)

	token, err := jwtPkg.VerifyTokenHeader(ctx, m.token.secretEnvKey)
	if err != nil {
		m.log.WithFields(log.Fields{
			"request_id": requestID,
			"client_ip":  ctx.IP(),
			"error":      err.Error(),
		}).Warn("Token verification failed")
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized, access token invalid or expired")
	}

	reader, err := jwtPkg.ReaderFromToken(token)
	if err != nil {
		m.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}).Warn("Token claims check")
		return errHandler.HandleUnauthorized(ctx, requestID, "Unauthorized, access token invalid or expired")
	}

	ctx.Locals(jwtPkg.ClaimsKey, reader)

	m.log.WithFields(log.Fields{
		"request_id": requestID,
		"subject":    reader.Subject,
	}).Debug("Authentication successful")
	return ctx.Next()
}
