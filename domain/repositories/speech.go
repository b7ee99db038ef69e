package repositories

import "context"

// SpeechRequest carries one utterance for the device's text-to-speech
// engine, with the voice parameters the device should apply.
type SpeechRequest struct {
	Text   string
	Locale string
	Pitch  float64
	Rate   float64
}

// SpeechEventKind is a text-to-speech lifecycle notification.
type SpeechEventKind string

const (
	SpeechStarted  SpeechEventKind = "started"
	SpeechFinished SpeechEventKind = "finished"
	SpeechFailed   SpeechEventKind = "failed"
)

// SpeechEvent reports a lifecycle change for one utterance. The orchestrator
// demultiplexes by utterance ID; events for superseded utterances are stale.
type SpeechEvent struct {
	UtteranceID string
	Kind        SpeechEventKind
}

// SpeechOutput abstracts the device text-to-speech engine.
type SpeechOutput interface {
	// Speak starts playback of the given text and returns an utterance ID
	// used to correlate lifecycle events. It does not wait for playback.
	Speak(ctx context.Context, req SpeechRequest) (string, error)
	// Stop interrupts playback immediately. Idempotent: calling it when
	// nothing is speaking is a no-op, not an error.
	Stop(ctx context.Context) error
	// Events is the single lifecycle channel for this session. Subscribed
	// once at startup.
	Events() <-chan SpeechEvent
}

// RecognitionEvent is one result-or-error emission from a live-recognition
// session. Texts carries the recognized alternatives, best first.
type RecognitionEvent struct {
	SessionID string
	Texts     []string
	Err       error
}

// LiveRecognizer abstracts on-device streaming speech recognition. The
// capability may be absent from a given runtime build.
type LiveRecognizer interface {
	// Available reports whether the runtime carries the recognition
	// capability. Detected once at session startup and cached; gestures
	// must not probe it repeatedly.
	Available() bool
	// Start begins a recognition session in the given locale and returns
	// its session ID.
	Start(ctx context.Context, locale string) (string, error)
	// Stop ends the active session. Safe to call when none is active.
	Stop(ctx context.Context) error
	// Events is the single result-or-error channel for this session.
	Events() <-chan RecognitionEvent
}
