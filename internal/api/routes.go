package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/visionassist/server/internal/auth"
	"github.com/visionassist/server/internal/devices"
	"github.com/visionassist/server/internal/observability"
	"github.com/visionassist/server/internal/websocket"
)

// InitRoutes wires the gateway's HTTP surface.
func InitRoutes(e *echo.Echo, hub *websocket.Hub, registry *devices.Registry, tokens *auth.Manager, logger *zap.Logger) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"service": "visionassist-gateway",
		})
	})

	e.GET("/metrics", echo.WrapHandler(observability.Handler()))

	v1 := e.Group("/api/v1")
	v1.POST("/device/auth", func(c echo.Context) error {
		return deviceAuth(c, registry, tokens, logger)
	})

	e.GET("/ws", func(c echo.Context) error {
		return websocketWithAuth(hub, c, tokens, logger)
	})
}

func deviceAuth(c echo.Context, registry *devices.Registry, tokens *auth.Manager, logger *zap.Logger) error {
	var req DeviceAuthRequest
	if err := c.Bind(&req); err != nil {
		logger.Error("Failed to bind device auth request", zap.Error(err))
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_request",
			Message: "Invalid request format",
		})
	}

	if req.SerialNumber == "" || req.SecretKey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "missing_fields",
			Message: "Serial number and secret key are required",
		})
	}

	deviceID, err := registry.Validate(req.SerialNumber, req.SecretKey)
	if err != nil {
		logger.Warn("Device authentication failed",
			zap.String("serialNumber", req.SerialNumber),
			zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "authentication_failed",
			Message: "Invalid device credentials",
		})
	}

	token, err := tokens.GenerateDeviceToken(deviceID)
	if err != nil {
		logger.Error("Failed to generate device token",
			zap.String("deviceID", deviceID),
			zap.Error(err))
		return c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "token_generation_failed",
			Message: "Failed to generate authentication token",
		})
	}

	logger.Info("Device authenticated", zap.String("deviceID", deviceID))

	return c.JSON(http.StatusOK, DeviceAuthResponse{
		Token:     token,
		ExpiresAt: time.Now().Add(tokens.TTL()),
		DeviceID:  deviceID,
	})
}

// websocketWithAuth validates the bearer token before upgrading.
func websocketWithAuth(hub *websocket.Hub, c echo.Context, tokens *auth.Manager, logger *zap.Logger) error {
	var token string
	authHeader := c.Request().Header.Get("Authorization")
	if strings.HasPrefix(authHeader, "Bearer ") {
		token = strings.TrimPrefix(authHeader, "Bearer ")
	}

	if token == "" {
		logger.Warn("WebSocket connection rejected: missing token")
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "missing_token",
			Message: "JWT token is required in Authorization header",
		})
	}

	claims, err := tokens.ValidateToken(token)
	if err != nil {
		logger.Warn("WebSocket connection rejected: invalid token", zap.Error(err))
		return c.JSON(http.StatusUnauthorized, ErrorResponse{
			Error:   "invalid_token",
			Message: "Invalid or expired JWT token",
		})
	}

	if claims.Role != "device" {
		logger.Warn("WebSocket connection rejected: invalid role", zap.String("role", claims.Role))
		return c.JSON(http.StatusForbidden, ErrorResponse{
			Error:   "invalid_role",
			Message: "Only device tokens may open sessions",
		})
	}

	if claims.DeviceID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "invalid_token_claims",
			Message: "Device ID not found in token",
		})
	}

	return websocket.HandleConnection(hub, c, claims.DeviceID, logger)
}
