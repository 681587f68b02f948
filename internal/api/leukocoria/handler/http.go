package leukocoriaHandler

import (
	leukocoriaService "eyescreen/internal/api/leukocoria/service"
	"eyescreen/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type LeukocoriaHandler struct {
	log               *logrus.Logger
	middleware        middleware.Middleware
	leukocoriaService leukocoriaService.ILeukocoriaService
}

func New(
	log *logrus.Logger,
	middleware middleware.Middleware,
	ls leukocoriaService.ILeukocoriaService,
) *LeukocoriaHandler {
	return &LeukocoriaHandler{
		log:               log,
		middleware:        middleware,
		leukocoriaService: ls,
	}
}

func (h *LeukocoriaHandler) Start(srv fiber.Router) {
	srv.Post("/leukocoria/detect", h.middleware.NewRateLimiter, h.Detect)
}
