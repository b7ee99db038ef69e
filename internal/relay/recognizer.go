package relay

import (
	"context"
	"fmt"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"go.uber.org/zap"
)

// Recognizer turns transcoded LINEAR16 WAV audio into transcript text. An
// empty transcript is a valid result: the backend heard no speech.
type Recognizer interface {
	Recognize(ctx context.Context, audio []byte) (string, error)
}

// GoogleRecognizer calls Google Cloud Speech-to-Text with fixed parameters
// matching the transcoder's output format. Credentials come from the
// environment (GOOGLE_APPLICATION_CREDENTIALS or the platform's ambient
// identity).
type GoogleRecognizer struct {
	language string
	logger   *zap.Logger
}

var _ Recognizer = (*GoogleRecognizer)(nil)

// NewGoogleRecognizer creates a recognizer for the given language code.
func NewGoogleRecognizer(language string, logger *zap.Logger) *GoogleRecognizer {
	if language == "" {
		language = "en-US"
	}
	return &GoogleRecognizer{
		language: language,
		logger:   logger,
	}
}

// Recognize sends one whole-utterance recognition request and joins the top
// transcript of every result segment with newlines.
func (g *GoogleRecognizer) Recognize(ctx context.Context, audio []byte) (string, error) {
	client, err := speech.NewClient(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to create speech client: %w", err)
	}
	defer client.Close()

	resp, err := client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz:            16000,
			LanguageCode:               g.language,
			EnableAutomaticPunctuation: true,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return "", fmt.Errorf("recognition failed: %w", err)
	}

	var transcripts []string
	for _, result := range resp.GetResults() {
		alts := result.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		transcripts = append(transcripts, alts[0].GetTranscript())
	}

	transcript := strings.Join(transcripts, "\n")
	g.logger.Debug("Recognition completed",
		zap.Int("segments", len(transcripts)),
		zap.Int("transcriptLength", len(transcript)))

	return transcript, nil
}
