package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
)

// RESTConfig holds configuration for the REST vision adapter.
// Required fields:
// - APIKey: the generative language API key
// Optional fields with defaults:
// - Endpoint: API base URL (default: "https://generativelanguage.googleapis.com")
// - Model: model name (default: "gemini-2.5-flash-lite")
type RESTConfig struct {
	APIKey   string
	Endpoint string
	Model    string
}

const (
	defaultEndpoint = "https://generativelanguage.googleapis.com"
	defaultModel    = "gemini-2.5-flash-lite"
)

// REST implements VisionModel against the generative language REST API
// directly, using the inline_data wire contract the device contract pins
// down: errors must surface the raw status code and body verbatim.
type REST struct {
	apiKey   string
	endpoint string
	model    string
	client   *http.Client
	logger   *zap.Logger
}

var _ repositories.VisionModel = (*REST)(nil)

type restPart struct {
	Text       string          `json:"text,omitempty"`
	InlineData *restInlineData `json:"inline_data,omitempty"`
}

type restInlineData struct {
	MIMEType string `json:"mime_type"`
	Data     string `json:"data"`
}

type restContent struct {
	Role  string     `json:"role"`
	Parts []restPart `json:"parts"`
}

type restRequest struct {
	Contents []restContent `json:"contents"`
}

type restResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// NewREST creates a REST vision adapter.
func NewREST(cfg RESTConfig, logger *zap.Logger) (*REST, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("vision API key is required")
	}

	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}

	return &REST{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		model:    model,
		client:   &http.Client{},
		logger:   logger,
	}, nil
}

// Generate sends the prompt and image to the generateContent endpoint and
// returns the joined candidate text.
func (r *REST) Generate(ctx context.Context, prompt string, image entities.CapturedImage) (string, error) {
	reqBody := restRequest{
		Contents: []restContent{
			{
				Role: "user",
				Parts: []restPart{
					{Text: prompt},
					{InlineData: &restInlineData{
						MIMEType: image.MIMEType,
						Data:     base64.StdEncoding.EncodeToString(image.Data),
					}},
				},
			},
		},
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:generateContent?key=%s", r.endpoint, r.model, r.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("vision request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read vision response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		// The caller speaks this message to the user, so it carries the
		// upstream status and body verbatim.
		return "", fmt.Errorf("vision error %d: %s", resp.StatusCode, string(body))
	}

	var parsed restResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("malformed vision response: %w", err)
	}

	text := joinCandidateText(parsed)
	if text == "" {
		text = "No response"
	}

	r.logger.Debug("Vision inference completed",
		zap.String("model", r.model),
		zap.Int("responseLength", len(text)))

	return text, nil
}

func joinCandidateText(resp restResponse) string {
	if len(resp.Candidates) == 0 {
		return ""
	}
	var parts []string
	for _, p := range resp.Candidates[0].Content.Parts {
		if p.Text != "" {
			parts = append(parts, p.Text)
		}
	}
	return strings.Join(parts, "\n")
}
