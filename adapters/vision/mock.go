package vision

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
)

// Mock is a canned VisionModel for development without an API key.
type Mock struct {
	logger *zap.Logger
}

var _ repositories.VisionModel = (*Mock)(nil)

// NewMock creates a mock vision adapter.
func NewMock(logger *zap.Logger) *Mock {
	return &Mock{logger: logger}
}

// Generate echoes the prompt together with the image size so the full
// capture path can be exercised end to end.
func (m *Mock) Generate(ctx context.Context, prompt string, image entities.CapturedImage) (string, error) {
	m.logger.Info("Mock vision inference",
		zap.String("prompt", prompt),
		zap.Int("imageBytes", len(image.Data)),
		zap.String("mimeType", image.MIMEType))

	return fmt.Sprintf("Mock answer to %q for a %d byte %s image.", prompt, len(image.Data), image.MIMEType), nil
}
