package config

import (
	"errors"
	"fmt"

	"eyescreen/pkg/handlerUtil"

	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// NewFiber builds the engine. bodyLimit caps request bodies in bytes and
// must cover the largest accepted upload.
func NewFiber(logger *logrus.Logger, bodyLimit int) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               "Eyescreen",
			BodyLimit:             bodyLimit,
			DisableKeepalive:      false,
			StrictRouting:         false,
			CaseSensitive:         true,
			DisableStartupMessage: true,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          newErrorHandler(logger, bodyLimit),
		})

	return app
}

func newErrorHandler(logger *logrus.Logger, bodyLimit int) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		code := fiber.StatusInternalServerError
		message := "Internal server error"

		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			code = fiberErr.Code
			message = fiberErr.Message
		}

		switch code {
		case fiber.StatusNotFound:
			message = "Endpoint not found"
		case fiber.StatusRequestEntityTooLarge:
			message = fmt.Sprintf("File too large (max %dMB)", bodyLimit/(1024*1024))
		case fiber.StatusInternalServerError:
			logger.WithFields(logrus.Fields{
				"path":  c.Path(),
				"error": err.Error(),
			}).Error("Unhandled error")
		}

		return c.Status(code).JSON(handlerUtil.ErrorResponse{Error: message})
	}
}
