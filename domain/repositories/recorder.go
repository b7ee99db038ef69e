package repositories

import (
	"context"

	"github.com/visionassist/server/domain/entities"
)

// AudioRecorder abstracts the device's file-based microphone capture used
// for voice questions.
type AudioRecorder interface {
	// Start allocates a new recording session and returns its ID. Failure
	// to allocate (device busy, permission revoked) is an error; the
	// session reverts to idle.
	Start(ctx context.Context) (string, error)
	// Stop finalizes the active recording and returns it. Safe to call
	// when no recording is active; the zero Recording is then returned.
	Stop(ctx context.Context) (entities.Recording, error)
}
