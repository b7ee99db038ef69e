package relay

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/visionassist/server/internal/observability"
)

// TranscribeResponse is the success payload of POST /transcribe.
type TranscribeResponse struct {
	Transcript string `json:"transcript"`
}

// Handler is the stateless transcription request handler. Every request
// owns a fresh temporary directory holding the upload and its transcoded
// form; the directory is removed on every exit path.
type Handler struct {
	transcoder Transcoder
	recognizer Recognizer
	metrics    *observability.RelayMetrics
	logger     *zap.Logger

	// tmpRoot overrides the parent of per-request temp directories.
	// Empty means the system default; tests point it at a scratch dir.
	tmpRoot string
}

// NewHandler creates a relay handler.
func NewHandler(transcoder Transcoder, recognizer Recognizer, metrics *observability.RelayMetrics, logger *zap.Logger) *Handler {
	return &Handler{
		transcoder: transcoder,
		recognizer: recognizer,
		metrics:    metrics,
		logger:     logger,
	}
}

// Register wires the relay routes onto the Echo instance.
func (h *Handler) Register(e *echo.Echo) {
	e.GET("/", h.liveness)
	e.POST("/transcribe", h.transcribe)
}

func (h *Handler) liveness(c echo.Context) error {
	return c.String(http.StatusOK, "Vision Assist transcription relay")
}

// transcribe accepts one multipart audio upload and responds with the
// transcript. Any failure after the upload is persisted is a 500 carrying
// the upstream error message; the client speaks it to the user.
func (h *Handler) transcribe(c echo.Context) error {
	start := time.Now()

	fileHeader, err := c.FormFile("file")
	if err != nil {
		h.observe("no_file", start)
		return c.String(http.StatusBadRequest, "No file uploaded")
	}

	transcript, err := h.process(c, fileHeader)
	if err != nil {
		h.logger.Error("Transcription request failed", zap.Error(err))
		h.observe("error", start)
		return c.String(http.StatusInternalServerError, err.Error())
	}

	h.observe("ok", start)
	return c.JSON(http.StatusOK, TranscribeResponse{Transcript: transcript})
}

func (h *Handler) process(c echo.Context, fileHeader *multipart.FileHeader) (string, error) {
	src, err := fileHeader.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open upload: %w", err)
	}
	defer src.Close()

	// Fresh uniquely-named directory per request; concurrent requests
	// never collide.
	tmpDir, err := os.MkdirTemp(h.tmpRoot, "upload-")
	if err != nil {
		return "", fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(tmpDir); err != nil {
			h.logger.Warn("Failed to remove temp dir",
				zap.String("dir", tmpDir),
				zap.Error(err))
		}
	}()

	inputPath := filepath.Join(tmpDir, "input")
	dst, err := os.Create(inputPath)
	if err != nil {
		return "", fmt.Errorf("failed to create input file: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		return "", fmt.Errorf("failed to persist upload: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to persist upload: %w", err)
	}

	outputPath := filepath.Join(tmpDir, "out.wav")
	ctx := c.Request().Context()
	if err := h.transcoder.Transcode(ctx, inputPath, outputPath); err != nil {
		return "", err
	}

	audio, err := os.ReadFile(outputPath)
	if err != nil {
		return "", fmt.Errorf("failed to read transcoded audio: %w", err)
	}

	transcript, err := h.recognizer.Recognize(ctx, audio)
	if err != nil {
		return "", err
	}
	return transcript, nil
}

func (h *Handler) observe(outcome string, start time.Time) {
	if h.metrics != nil {
		h.metrics.ObserveRequest(outcome, time.Since(start))
	}
}
