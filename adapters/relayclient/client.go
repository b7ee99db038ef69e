package relayclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
)

// Client uploads finished recordings to the transcription relay.
type Client struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

var _ repositories.TranscriptionRelay = (*Client)(nil)

type transcribeResponse struct {
	Transcript string `json:"transcript"`
}

// New creates a relay client for the given base URL.
func New(baseURL string, logger *zap.Logger) (*Client, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("relay URL is required")
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{},
		logger:  logger,
	}, nil
}

// Transcribe posts the recording as a multipart upload and returns the
// transcript text. An empty transcript is a valid result.
func (c *Client) Transcribe(ctx context.Context, rec entities.Recording) (string, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)

	fileName := rec.FileName
	if fileName == "" {
		fileName = "recording.m4a"
	}
	part, err := writer.CreateFormFile("file", fileName)
	if err != nil {
		return "", fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := part.Write(rec.Data); err != nil {
		return "", fmt.Errorf("failed to write recording payload: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart body: %w", err)
	}

	url := c.baseURL + "/transcribe"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, &body)
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read relay response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("relay error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed transcribeResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", fmt.Errorf("malformed relay response: %w", err)
	}

	c.logger.Debug("Transcription relay responded",
		zap.Int("transcriptLength", len(parsed.Transcript)))

	return parsed.Transcript, nil
}
