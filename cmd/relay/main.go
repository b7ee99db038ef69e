package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/visionassist/server/config"
	"github.com/visionassist/server/internal/observability"
	"github.com/visionassist/server/internal/relay"
)

func main() {
	godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.RelayFromEnv()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	metrics := observability.NewRelayMetrics("visionassist_relay")
	transcoder := relay.NewFFmpegTranscoder(cfg.FFmpegPath)
	recognizer := relay.NewGoogleRecognizer(cfg.RecognitionLanguage, logger)

	handler := relay.NewHandler(transcoder, recognizer, metrics, logger)
	handler.Register(e)
	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Transcription relay started",
		zap.String("port", cfg.Port),
		zap.String("language", cfg.RecognitionLanguage))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Relay is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Relay forced to shutdown", zap.Error(err))
	}

	logger.Info("Relay exited")
}
