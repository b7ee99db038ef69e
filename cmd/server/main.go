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

	"github.com/visionassist/server/adapters/relayclient"
	"github.com/visionassist/server/adapters/vision"
	"github.com/visionassist/server/config"
	"github.com/visionassist/server/domain/repositories"
	"github.com/visionassist/server/internal/api"
	"github.com/visionassist/server/internal/auth"
	"github.com/visionassist/server/internal/devices"
	"github.com/visionassist/server/internal/observability"
	"github.com/visionassist/server/internal/websocket"
	"github.com/visionassist/server/usecase"
)

func main() {
	godotenv.Load()

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	cfg := config.GatewayFromEnv()

	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Logger())
	e.Use(middleware.Recover())
	e.Use(middleware.CORS())

	visionModel := buildVisionModel(cfg, logger)
	relay := buildRelay(cfg, logger)

	registry, err := devices.NewRegistry(cfg.DeviceRegistry)
	if err != nil {
		logger.Fatal("Invalid device registry", zap.Error(err))
	}
	if registry.Empty() {
		logger.Warn("No devices provisioned; set DEVICE_REGISTRY to serial:secret pairs")
	}

	tokens, err := auth.NewManager(cfg.JWTSecret, 24*time.Hour)
	if err != nil {
		logger.Fatal("Invalid auth configuration", zap.Error(err))
	}

	metrics := observability.NewGatewayMetrics("visionassist")

	hub := websocket.NewHub(websocket.SessionDeps{
		Vision: visionModel,
		Relay:  relay,
		Config: usecase.Config{
			Locale:         cfg.SpeechLocale,
			Pitch:          cfg.SpeechPitch,
			Rate:           cfg.SpeechRate,
			RequestTimeout: cfg.RequestTimeout,
		},
		Metrics: metrics,
	}, logger)
	go hub.Run()

	api.InitRoutes(e, hub, registry, tokens, logger)

	go func() {
		if err := e.Start(":" + cfg.Port); err != nil && err != http.ErrServerClosed {
			logger.Fatal("shutting down the server", zap.Error(err))
		}
	}()

	logger.Info("Interaction gateway started",
		zap.String("port", cfg.Port),
		zap.String("visionBackend", cfg.VisionBackend),
		zap.Bool("visionConfigured", visionModel != nil),
		zap.Bool("relayConfigured", relay != nil))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	logger.Info("Server is shutting down...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited")
}

// buildVisionModel constructs the configured vision backend, or nil when no
// credential is present; the orchestrator then answers every intent with a
// spoken configuration message instead of touching the network.
func buildVisionModel(cfg config.Gateway, logger *zap.Logger) repositories.VisionModel {
	if cfg.VisionBackend == "mock" {
		return vision.NewMock(logger)
	}
	if cfg.VisionAPIKey == "" {
		logger.Warn("VISION_API_KEY not set; scene answers disabled")
		return nil
	}

	switch cfg.VisionBackend {
	case "sdk":
		model, err := vision.NewGenAI(context.Background(), cfg.VisionAPIKey, cfg.VisionModel, logger)
		if err != nil {
			logger.Fatal("Failed to build SDK vision client", zap.Error(err))
		}
		return model
	default:
		model, err := vision.NewREST(vision.RESTConfig{
			APIKey:   cfg.VisionAPIKey,
			Endpoint: cfg.VisionEndpoint,
			Model:    cfg.VisionModel,
		}, logger)
		if err != nil {
			logger.Fatal("Failed to build REST vision client", zap.Error(err))
		}
		return model
	}
}

func buildRelay(cfg config.Gateway, logger *zap.Logger) repositories.TranscriptionRelay {
	if cfg.RelayURL == "" {
		logger.Warn("RELAY_URL not set; voice questions disabled")
		return nil
	}
	relay, err := relayclient.New(cfg.RelayURL, logger)
	if err != nil {
		logger.Fatal("Failed to build relay client", zap.Error(err))
	}
	return relay
}
