package repositories

import (
	"context"

	"github.com/visionassist/server/domain/entities"
)

// VisionModel abstracts the remote multimodal inference backend.
type VisionModel interface {
	// Generate sends a prompt plus one still image and returns the model's
	// text answer. Non-success upstream responses must come back as errors
	// that embed the HTTP status code and response body; the orchestrator
	// speaks them verbatim.
	Generate(ctx context.Context, prompt string, image entities.CapturedImage) (string, error)
}
