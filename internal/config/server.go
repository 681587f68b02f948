package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"eyescreen/database/postgres"
	leukocoriaHandler "eyescreen/internal/api/leukocoria/handler"
	leukocoriaService "eyescreen/internal/api/leukocoria/service"
	screeningHandler "eyescreen/internal/api/screening/handler"
	screeningRepository "eyescreen/internal/api/screening/repository"
	screeningService "eyescreen/internal/api/screening/service"
	"eyescreen/internal/middleware"
	"eyescreen/pkg/gemini"
	"eyescreen/pkg/redis"
	"eyescreen/pkg/s3"
	"eyescreen/pkg/sweeper"
	"eyescreen/pkg/utils"
	"eyescreen/pkg/vision"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/jmoiron/sqlx"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"
)

type ServerOption func(*Server) error

type Server struct {
	engine       *fiber.App
	db           *sqlx.DB
	log          *logrus.Logger
	middleware   middleware.Middleware
	validator    *validator.Validate
	utils        utils.IUtils
	profile      Profile
	handlers     []handler
	redisServer  redis.IRedis
	s3Client     s3.ItfS3
	visionClient vision.IVision
	geminiClient gemini.IGemini
	sweeper      *sweeper.Sweeper

	screening  *screeningHandler.ScreeningHandler
	leukocoria *leukocoriaHandler.LeukocoriaHandler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{profile: DefaultProfile()}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.NewWithLimits(server.profile.MaxVideoBytes(), server.profile.MaxImageBytes())
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, middleware.Options{
			RatePerSecond: server.profile.RateLimitPerSecond,
			Burst:         server.profile.RateLimitBurst,
		})
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithProfile(profile Profile) ServerOption {
	return func(s *Server) error {
		s.profile = profile
		return nil
	}
}

func WithDatabase() ServerOption {
	return func(s *Server) error {
		db, err := postgres.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to connect to database: %v", err)
			}
			return fmt.Errorf("failed to create database connection: %w", err)
		}
		s.db = db
		return nil
	}
}

func WithDB(db *sqlx.DB) ServerOption {
	return func(s *Server) error {
		s.db = db
		return nil
	}
}

func WithRedisServer(redisServer redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.redisServer = redisServer
		return nil
	}
}

func WithVision(visionClient vision.IVision) ServerOption {
	return func(s *Server) error {
		s.visionClient = visionClient
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, middleware.Options{
			RatePerSecond: s.profile.RateLimitPerSecond,
			Burst:         s.profile.RateLimitBurst,
		})
		return nil
	}
}

func WithS3Client() ServerOption {
	return func(s *Server) error {
		client, err := s3.New()
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to initialize S3 client: %v", err)
			}
			return fmt.Errorf("failed to create S3 client: %w", err)
		}
		s.s3Client = client
		return nil
	}
}

// WithGeminiClient enables the Gemini photo fallback. Without an API key the
// fallback stays off and the option is a no-op.
func WithGeminiClient() ServerOption {
	return func(s *Server) error {
		client, err := gemini.NewGeminiClient()
		if errors.Is(err, gemini.ErrNoAPIKey) {
			if s.log != nil {
				s.log.Warn("GEMINI_API_KEY not set, photo fallback disabled")
			}
			return nil
		}
		if err != nil {
			if s.log != nil {
				s.log.Errorf("Failed to create Gemini client: %v", err)
			}
			return fmt.Errorf("failed to create Gemini client: %w", err)
		}
		s.geminiClient = client
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.NewWithLimits(s.profile.MaxVideoBytes(), s.profile.MaxImageBytes())
		return nil
	}
}

func WithSweeper() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before sweeper")
		}
		s.sweeper = sweeper.New(s.profile.UploadDir, s.profile.UploadMaxAge, s.log)
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Screening Domain
	var screeningRepo screeningRepository.Repository
	if s.db != nil {
		screeningRepo = screeningRepository.New(s.db, s.log)
	}
	screeningServices := screeningService.NewScreeningService(s.log, screeningRepo, s.redisServer, s.s3Client, s.visionClient, s.utils, screeningService.Options{
		Tracking:       s.profile.Tracking(),
		UploadDir:      s.profile.UploadDir,
		Deployment:     s.profile.Deployment,
		ArchiveEnabled: s.profile.ArchiveEnabled,
		CacheTTL:       s.profile.CacheTTL,
	})
	s.screening = screeningHandler.New(s.log, s.validator, s.middleware, screeningServices, s.profile.AnalysisTimeout)

	// Leukocoria Domain
	leukocoriaServices := leukocoriaService.NewLeukocoriaService(s.log, s.validator, s.visionClient, s.geminiClient, s.utils)
	s.leukocoria = leukocoriaHandler.New(s.log, s.middleware, leukocoriaServices)

	s.handlers = append(s.handlers, s.screening, s.leukocoria)
}

// Mount installs middleware and every route on the engine. It is separate
// from Run so the routes can be exercised without a listener.
func (s *Server) Mount() {
	s.engine.Use(cors.New(cors.Config{
		AllowOrigins: corsOrigins(),
		AllowHeaders: "Origin, Content-Type, Accept, Authorization, X-Request-ID",
	}))
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	s.engine.Use(s.middleware.NewMetricsMiddleware())

	s.setupRootRoutes()

	router := s.engine.Group("/api/v1")
	for _, h := range s.handlers {
		h.Start(router)
	}
}

func (s *Server) Run() error {
	s.Mount()

	if s.sweeper != nil {
		if err := s.sweeper.Start(s.profile.SweepSchedule); err != nil {
			return err
		}
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "5000"
	}

	s.log.WithFields(logrus.Fields{
		"port":       port,
		"deployment": s.profile.Deployment,
		"policy":     s.profile.Policy,
	}).Info("Starting HTTP server")

	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown drains in-flight requests and releases every backend.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.engine.ShutdownWithContext(ctx)

	if s.sweeper != nil {
		s.sweeper.Stop()
	}
	if s.visionClient != nil {
		s.visionClient.CloseConnections()
	}
	if s.geminiClient != nil {
		s.geminiClient.Close()
	}
	if s.db != nil {
		if dbErr := s.db.Close(); dbErr != nil && err == nil {
			err = dbErr
		}
	}

	return err
}

func corsOrigins() string {
	origins := strings.TrimSpace(os.Getenv("CORS_ALLOW_ORIGINS"))
	if origins == "" {
		return "*"
	}
	return origins
}
