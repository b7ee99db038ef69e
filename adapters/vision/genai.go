package vision

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
)

// GenAI implements VisionModel on top of the official genai SDK. Functionally
// equivalent to the REST adapter; useful where the SDK's auth plumbing
// (service accounts, Vertex backends) is preferred over a bare API key URL.
type GenAI struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

var _ repositories.VisionModel = (*GenAI)(nil)

// NewGenAI creates an SDK-backed vision adapter.
func NewGenAI(ctx context.Context, apiKey, model string, logger *zap.Logger) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("vision API key is required")
	}
	if model == "" {
		model = defaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	return &GenAI{
		client: client,
		model:  model,
		logger: logger,
	}, nil
}

// Generate sends the prompt and image and returns the joined response text.
func (g *GenAI) Generate(ctx context.Context, prompt string, image entities.CapturedImage) (string, error) {
	parts := []*genai.Part{
		genai.NewPartFromText(prompt),
		genai.NewPartFromBytes(image.Data, image.MIMEType),
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	response, err := g.client.Models.GenerateContent(ctx, g.model, contents, nil)
	if err != nil {
		return "", fmt.Errorf("vision inference failed: %w", err)
	}

	if len(response.Candidates) == 0 || response.Candidates[0].Content == nil {
		return "No response", nil
	}

	var texts []string
	for _, part := range response.Candidates[0].Content.Parts {
		if part.Text != "" {
			texts = append(texts, part.Text)
		}
	}
	text := strings.Join(texts, "\n")
	if text == "" {
		text = "No response"
	}

	g.logger.Debug("Vision inference completed",
		zap.String("model", g.model),
		zap.Int("responseLength", len(text)))

	return text, nil
}
