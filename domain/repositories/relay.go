package repositories

import (
	"context"

	"github.com/visionassist/server/domain/entities"
)

// TranscriptionRelay abstracts the relay service that turns a finished
// recording into transcript text.
type TranscriptionRelay interface {
	// Transcribe uploads the recording and returns the transcript. An
	// empty transcript is a valid result, not an error; transport failures
	// and non-2xx responses are errors embedding status and body.
	Transcribe(ctx context.Context, rec entities.Recording) (string, error)
}
