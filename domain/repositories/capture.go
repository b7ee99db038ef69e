package repositories

import (
	"context"

	"github.com/visionassist/server/domain/entities"
)

// StillCapture abstracts the device camera.
type StillCapture interface {
	// CaptureStill requests one encoded frame from the camera. A camera
	// that is not ready or returns no image data is an error, not a crash.
	CaptureStill(ctx context.Context) (entities.CapturedImage, error)
}
