package config

import (
	"os"
	"strconv"
	"time"
)

// Gateway holds the interaction gateway's configuration. Every field is
// sourced from the environment; missing credentials degrade to user-visible
// configuration messages at runtime instead of failing startup.
type Gateway struct {
	Port string

	// Vision inference backend.
	VisionAPIKey   string
	VisionEndpoint string
	VisionModel    string
	VisionBackend  string // "rest", "sdk", or "mock"

	// Transcription relay used for voice questions.
	RelayURL string

	// Speech locale used for both output and recognition.
	SpeechLocale string
	SpeechPitch  float64
	SpeechRate   float64

	// Bounded timeout around inference and relay calls.
	RequestTimeout time.Duration

	// Device auth.
	JWTSecret      string
	DeviceRegistry string // comma-separated serial:secret pairs
}

// Relay holds the transcription relay service's configuration.
type Relay struct {
	Port                string
	RecognitionLanguage string
	FFmpegPath          string
}

const (
	defaultVisionEndpoint = "https://generativelanguage.googleapis.com"
	defaultVisionModel    = "gemini-2.5-flash-lite"
	defaultSpeechLocale   = "en-US"
	defaultSpeechPitch    = 1.0
	defaultSpeechRate     = 0.9
	defaultRequestTimeout = 30 * time.Second
)

// GatewayFromEnv reads the gateway configuration from the environment.
func GatewayFromEnv() Gateway {
	return Gateway{
		Port:           getEnv("PORT", "8080"),
		VisionAPIKey:   os.Getenv("VISION_API_KEY"),
		VisionEndpoint: getEnv("VISION_ENDPOINT", defaultVisionEndpoint),
		VisionModel:    getEnv("VISION_MODEL", defaultVisionModel),
		VisionBackend:  getEnv("VISION_BACKEND", "rest"),
		RelayURL:       os.Getenv("RELAY_URL"),
		SpeechLocale:   getEnv("SPEECH_LOCALE", defaultSpeechLocale),
		SpeechPitch:    getEnvFloat("SPEECH_PITCH", defaultSpeechPitch),
		SpeechRate:     getEnvFloat("SPEECH_RATE", defaultSpeechRate),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", defaultRequestTimeout),
		JWTSecret:      os.Getenv("JWT_SECRET"),
		DeviceRegistry: os.Getenv("DEVICE_REGISTRY"),
	}
}

// RelayFromEnv reads the relay configuration from the environment.
func RelayFromEnv() Relay {
	return Relay{
		Port:                getEnv("PORT", "3000"),
		RecognitionLanguage: getEnv("RECOGNITION_LANGUAGE", defaultSpeechLocale),
		FFmpegPath:          getEnv("FFMPEG_PATH", "ffmpeg"),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			return d
		}
	}
	return fallback
}
