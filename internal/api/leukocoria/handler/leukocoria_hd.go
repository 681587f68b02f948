package leukocoriaHandler

import (
	"time"

	contextPkg "eyescreen/pkg/context"
	"eyescreen/pkg/handlerUtil"
	"eyescreen/pkg/log"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/net/context"
)

func (h *LeukocoriaHandler) Detect(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(ctx), 30*time.Second)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	// flashlight test clients send "photo", generic clients "file"
	file, err := ctx.FormFile("photo")
	if err != nil {
		file, _ = ctx.FormFile("file")
	}

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
		"has_file":   file != nil,
	}).Debug("Processing leukocoria check")

	resp, err := h.leukocoriaService.Detect(c, file)
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "detect_leukocoria")
	}

	select {
	case <-c.Done():
		return errHandler.HandleRequestTimeout(ctx)
	default:
		return errHandler.HandleSuccess(ctx, fiber.StatusOK, resp)
	}
}
