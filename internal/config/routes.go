package config

import (
	"time"

	"eyescreen/pkg/tracking"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/net/context"
)

const (
	serviceName    = "Eyescreen"
	serviceVersion = "2.0"
)

var startedAt = time.Now()

func (s *Server) setupRootRoutes() {
	s.engine.Get("/", s.index)
	s.engine.Get("/health", s.health)
	s.engine.Get("/ping", func(ctx *fiber.Ctx) error {
		return ctx.SendString("pong")
	})
	s.engine.Get("/test", s.selfTest)
	s.engine.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// aliases kept for clients of the original single-file deployments
	s.engine.Post("/upload", s.middleware.NewRateLimiter, s.screening.UploadVideo)
	s.engine.Post("/detect", s.middleware.NewRateLimiter, s.leukocoria.Detect)
}

func (s *Server) index(ctx *fiber.Ctx) error {
	cfg := s.profile.Tracking()
	algorithm := "MediaPipe + Bounce-Synchronized Lazy Eye Detection"
	if cfg.Policy == tracking.PolicyInterval {
		algorithm = "MediaPipe + Fixed-Interval Lazy Eye Detection"
	}

	return ctx.JSON(fiber.Map{
		"service":    serviceName,
		"version":    serviceVersion,
		"status":     "running",
		"deployment": s.profile.Deployment,
		"algorithm":  algorithm,
		"parameters": fiber.Map{
			"move_threshold_px": cfg.MovePxMin,
			"ratio_threshold":   cfg.RatioThresh,
			"history_frames":    cfg.HistFrames,
			"window_policy":     cfg.Policy,
			"frame_stride":      cfg.FrameStride,
		},
		"endpoints": fiber.Map{
			"upload":     "/api/v1/screening/upload (POST - send video file)",
			"landmarks":  "/api/v1/screening/landmarks (POST - landmark frames)",
			"live":       "/api/v1/screening/ws (WebSocket)",
			"reports":    "/api/v1/screening/reports (GET - bearer token)",
			"leukocoria": "/api/v1/leukocoria/detect (POST - photo)",
			"health":     "/health (GET)",
			"test":       "/test (GET)",
			"metrics":    "/metrics (GET)",
		},
	})
}

func (s *Server) health(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), 2*time.Second)
	defer cancel()

	deps := fiber.Map{
		"database": "disabled",
		"redis":    "disabled",
		"vision":   "disabled",
	}
	if s.db != nil {
		deps["database"] = status(s.db.PingContext(c))
	}
	if s.redisServer != nil {
		deps["redis"] = status(s.redisServer.Ping(c))
	}
	if s.visionClient != nil {
		deps["vision"] = "disconnected"
		if s.visionClient.IsConnected() {
			deps["vision"] = "connected"
		}
	}

	return ctx.JSON(fiber.Map{
		"status":         "healthy",
		"timestamp":      float64(time.Now().UnixMilli()) / 1000,
		"deployment":     s.profile.Deployment,
		"service":        serviceName,
		"uptime_seconds": int(time.Since(startedAt).Seconds()),
		"dependencies":   deps,
	})
}

func (s *Server) selfTest(ctx *fiber.Ctx) error {
	c, cancel := context.WithTimeout(ctx.UserContext(), 5*time.Second)
	defer cancel()

	if err := s.profile.Tracking().Validate(); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "❌ SYSTEM ERROR",
			"error":  err.Error(),
		})
	}

	if s.visionClient == nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "❌ SYSTEM ERROR",
			"error":  "vision backend not configured",
		})
	}
	if err := s.visionClient.Ping(c); err != nil {
		return ctx.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"status": "❌ SYSTEM ERROR",
			"error":  err.Error(),
		})
	}

	return ctx.JSON(fiber.Map{
		"status":     "✅ ALL SYSTEMS OPERATIONAL",
		"vision":     "OK",
		"deployment": s.profile.Deployment,
		"message":    "Ready to analyze videos!",
	})
}

func status(err error) string {
	if err != nil {
		return "unavailable"
	}
	return "ok"
}
