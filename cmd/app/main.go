package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"eyescreen/internal/config"
	"eyescreen/pkg/log"
	"eyescreen/pkg/redis"
	"eyescreen/pkg/vision"

	"github.com/joho/godotenv"
	"golang.org/x/net/context"
)

const shutdownTimeout = 15 * time.Second

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}

	validator := config.NewValidator()
	profile, err := config.LoadProfile("", validator)
	if err != nil {
		logger.Fatalf("Error loading analysis profile: %v", err)
	}

	// multipart framing on top of the largest accepted video
	fiberApp := config.NewFiber(logger, int(profile.MaxVideoBytes())+1024*1024)

	options := []config.ServerOption{
		config.WithFiber(fiberApp),
		config.WithLogger(logger),
		config.WithValidator(validator),
		config.WithProfile(profile),
		config.WithDatabase(),
		config.WithRedisServer(redis.New()),
		config.WithVision(vision.NewAIWebSocketClient(logger)),
		config.WithGeminiClient(),
		config.WithMiddleware(),
		config.WithUtils(),
		config.WithSweeper(),
	}
	if profile.ArchiveEnabled {
		options = append(options, config.WithS3Client())
	}

	server, err := config.NewServer(options...)
	if err != nil {
		logger.Fatal(err)
	}

	server.RegisterHandler()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.WithField("deployment", profile.Deployment).Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}
