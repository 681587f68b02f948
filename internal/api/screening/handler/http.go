package screeningHandler

import (
	"time"

	screeningService "eyescreen/internal/api/screening/service"
	"eyescreen/internal/middleware"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

const defaultAnalysisTimeout = 2 * time.Minute

type ScreeningHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	screeningService screeningService.IScreeningService
	timeout          time.Duration
}

func New(
	log *logrus.Logger,
	validate *validator.Validate,
	middleware middleware.Middleware,
	ss screeningService.IScreeningService,
	timeout time.Duration,
) *ScreeningHandler {
	if timeout <= 0 {
		timeout = defaultAnalysisTimeout
	}

	return &ScreeningHandler{
		log:              log,
		validator:        validate,
		middleware:       middleware,
		screeningService: ss,
		timeout:          timeout,
	}
}

func (h *ScreeningHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	screening := srv.Group("/screening")

	screening.Post("/upload", h.middleware.NewRateLimiter, h.UploadVideo)
	screening.Post("/landmarks", h.middleware.NewRateLimiter, h.AnalyzeLandmarks)

	screening.Use("/ws", wsMiddleware)
	screening.Get("/ws", websocket.New(h.handleLiveSession))

	screening.Get("/reports", h.middleware.NewTokenMiddleware, h.ListReports)
	screening.Get("/reports/:id", h.middleware.NewTokenMiddleware, h.GetReport)
}
