package websocket

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
)

// Bridge implements the device-side capability interfaces over one
// WebSocket connection: commands go down as protocol messages, results come
// back correlated by request/session IDs. One bridge per connected device.
type Bridge struct {
	send   func([]byte) error
	logger *zap.Logger

	mu               sync.Mutex
	closed           bool
	liveRecognition  bool
	recordingSession string
	captureWaiters   map[string]chan CaptureResultPayload
	recordingWaiters map[string]chan RecordingResultPayload

	// Event channels are never closed; the orchestrator's loop ends with
	// its context. Delivery after Close is dropped under the mutex so a
	// frame racing a disconnect can never panic the process.
	speechEvents      chan repositories.SpeechEvent
	recognitionEvents chan repositories.RecognitionEvent
}

var (
	_ repositories.StillCapture = (*Bridge)(nil)
	_ repositories.Presenter    = (*Bridge)(nil)
)

// The speech, recognition and recording capabilities share the bridge but
// have colliding method names, so each is exposed as a thin view.

type speechView struct{ b *Bridge }

func (v speechView) Speak(ctx context.Context, req repositories.SpeechRequest) (string, error) {
	return v.b.Speak(ctx, req)
}
func (v speechView) Stop(ctx context.Context) error          { return v.b.Stop(ctx) }
func (v speechView) Events() <-chan repositories.SpeechEvent { return v.b.speechEvents }

type recognizerView struct{ b *Bridge }

func (v recognizerView) Available() bool { return v.b.Available() }
func (v recognizerView) Start(ctx context.Context, locale string) (string, error) {
	return v.b.Start(ctx, locale)
}
func (v recognizerView) Stop(ctx context.Context) error { return v.b.StopRecognition(ctx) }
func (v recognizerView) Events() <-chan repositories.RecognitionEvent {
	return v.b.recognitionEvents
}

type recorderView struct{ b *Bridge }

func (v recorderView) Start(ctx context.Context) (string, error) { return v.b.StartRecording(ctx) }
func (v recorderView) Stop(ctx context.Context) (entities.Recording, error) {
	return v.b.StopRecording(ctx)
}

var (
	_ repositories.SpeechOutput   = speechView{}
	_ repositories.LiveRecognizer = recognizerView{}
	_ repositories.AudioRecorder  = recorderView{}
)

// Speech returns the speech-output capability view.
func (b *Bridge) Speech() repositories.SpeechOutput { return speechView{b} }

// Recognizer returns the live-recognition capability view.
func (b *Bridge) Recognizer() repositories.LiveRecognizer { return recognizerView{b} }

// Recorder returns the audio-recording capability view.
func (b *Bridge) Recorder() repositories.AudioRecorder { return recorderView{b} }

// NewBridge creates a bridge that writes outbound frames through send.
func NewBridge(send func([]byte) error, logger *zap.Logger) *Bridge {
	return &Bridge{
		send:              send,
		logger:            logger,
		captureWaiters:    make(map[string]chan CaptureResultPayload),
		recordingWaiters:  make(map[string]chan RecordingResultPayload),
		speechEvents:      make(chan repositories.SpeechEvent, 16),
		recognitionEvents: make(chan repositories.RecognitionEvent, 16),
	}
}

// SetCapabilities records the device's capability handshake.
func (b *Bridge) SetCapabilities(hello HelloPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.liveRecognition = hello.Capabilities.LiveRecognition
}

// Close releases outstanding waiters and marks the bridge done. Idempotent;
// called on disconnect.
func (b *Bridge) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for id, ch := range b.captureWaiters {
		close(ch)
		delete(b.captureWaiters, id)
	}
	for id, ch := range b.recordingWaiters {
		close(ch)
		delete(b.recordingWaiters, id)
	}
}

func (b *Bridge) command(msgType MessageType, payload interface{}) error {
	frame, err := NewEnvelope(msgType, payload)
	if err != nil {
		return err
	}
	return b.send(frame)
}

// CaptureStill requests one frame and waits for the correlated result.
func (b *Bridge) CaptureStill(ctx context.Context) (entities.CapturedImage, error) {
	requestID := uuid.NewString()
	ch := make(chan CaptureResultPayload, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return entities.CapturedImage{}, fmt.Errorf("device disconnected")
	}
	b.captureWaiters[requestID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.captureWaiters, requestID)
		b.mu.Unlock()
	}()

	if err := b.command(MessageTypeCapture, CapturePayload{RequestID: requestID}); err != nil {
		return entities.CapturedImage{}, fmt.Errorf("failed to send capture command: %w", err)
	}

	select {
	case <-ctx.Done():
		return entities.CapturedImage{}, fmt.Errorf("capture timed out: %w", ctx.Err())
	case result, ok := <-ch:
		if !ok {
			return entities.CapturedImage{}, fmt.Errorf("device disconnected during capture")
		}
		if result.Error != "" {
			return entities.CapturedImage{}, fmt.Errorf("camera not ready: %s", result.Error)
		}
		data, err := base64.StdEncoding.DecodeString(result.Data)
		if err != nil {
			return entities.CapturedImage{}, fmt.Errorf("malformed capture payload: %w", err)
		}
		if len(data) == 0 {
			return entities.CapturedImage{}, fmt.Errorf("no image data")
		}
		mime := result.MIMEType
		if mime == "" {
			mime = "image/jpeg"
		}
		return entities.CapturedImage{Data: data, MIMEType: mime}, nil
	}
}

// Speak commands the device to start playback and returns the utterance ID.
func (b *Bridge) Speak(ctx context.Context, req repositories.SpeechRequest) (string, error) {
	utteranceID := uuid.NewString()
	err := b.command(MessageTypeSpeak, SpeakPayload{
		UtteranceID: utteranceID,
		Text:        req.Text,
		Locale:      req.Locale,
		Pitch:       req.Pitch,
		Rate:        req.Rate,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send speak command: %w", err)
	}
	return utteranceID, nil
}

// Stop interrupts device playback.
func (b *Bridge) Stop(ctx context.Context) error {
	return b.command(MessageTypeStopSpeaking, nil)
}

// Events is the speech lifecycle channel.
func (b *Bridge) Events() <-chan repositories.SpeechEvent {
	return b.speechEvents
}

// Available reports the device's live-recognition capability from the
// handshake.
func (b *Bridge) Available() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.liveRecognition
}

// Start begins a live-recognition session on the device.
func (b *Bridge) Start(ctx context.Context, locale string) (string, error) {
	sessionID := uuid.NewString()
	err := b.command(MessageTypeRecognitionStart, RecognitionStartPayload{
		SessionID: sessionID,
		Locale:    locale,
	})
	if err != nil {
		return "", fmt.Errorf("failed to send recognition start: %w", err)
	}
	return sessionID, nil
}

// StopRecognition ends the live-recognition session.
func (b *Bridge) StopRecognition(ctx context.Context) error {
	return b.command(MessageTypeRecognitionStop, nil)
}

// RecognitionEvents is the live-recognition result channel.
func (b *Bridge) RecognitionEvents() <-chan repositories.RecognitionEvent {
	return b.recognitionEvents
}

// StartRecording opens a microphone recording session on the device.
func (b *Bridge) StartRecording(ctx context.Context) (string, error) {
	sessionID := uuid.NewString()

	b.mu.Lock()
	b.recordingSession = sessionID
	b.mu.Unlock()

	if err := b.command(MessageTypeRecordingStart, RecordingStartPayload{SessionID: sessionID}); err != nil {
		b.mu.Lock()
		b.recordingSession = ""
		b.mu.Unlock()
		return "", fmt.Errorf("failed to send recording start: %w", err)
	}
	return sessionID, nil
}

// StopRecording finalizes the active recording and waits for its payload.
// Safe when no recording is active: returns the zero Recording.
func (b *Bridge) StopRecording(ctx context.Context) (entities.Recording, error) {
	b.mu.Lock()
	sessionID := b.recordingSession
	b.recordingSession = ""
	if sessionID == "" {
		b.mu.Unlock()
		return entities.Recording{}, nil
	}
	if b.closed {
		b.mu.Unlock()
		return entities.Recording{}, fmt.Errorf("device disconnected")
	}
	ch := make(chan RecordingResultPayload, 1)
	b.recordingWaiters[sessionID] = ch
	b.mu.Unlock()
	defer func() {
		b.mu.Lock()
		delete(b.recordingWaiters, sessionID)
		b.mu.Unlock()
	}()

	if err := b.command(MessageTypeRecordingStop, RecordingStopPayload{SessionID: sessionID}); err != nil {
		return entities.Recording{}, fmt.Errorf("failed to send recording stop: %w", err)
	}

	select {
	case <-ctx.Done():
		return entities.Recording{}, fmt.Errorf("recording finalization timed out: %w", ctx.Err())
	case result, ok := <-ch:
		if !ok {
			return entities.Recording{}, fmt.Errorf("device disconnected during recording")
		}
		if result.Error != "" {
			return entities.Recording{}, fmt.Errorf("recording failed: %s", result.Error)
		}
		data, err := base64.StdEncoding.DecodeString(result.Data)
		if err != nil {
			return entities.Recording{}, fmt.Errorf("malformed recording payload: %w", err)
		}
		return entities.Recording{
			Data:     data,
			MIMEType: result.MIMEType,
			FileName: result.FileName,
		}, nil
	}
}

// ShowOutput replaces the device output panel text.
func (b *Bridge) ShowOutput(ctx context.Context, text string) error {
	return b.command(MessageTypeDisplay, DisplayPayload{Text: text})
}

// Notify surfaces a transient notice on the device.
func (b *Bridge) Notify(ctx context.Context, text string) error {
	return b.command(MessageTypeNotice, NoticePayload{Text: text})
}

// deliverCaptureResult routes an inbound capture result to its waiter. The
// send happens under the mutex: waiter channels are buffered and closed
// only by Close, which holds the same lock.
func (b *Bridge) deliverCaptureResult(p CaptureResultPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ch, ok := b.captureWaiters[p.RequestID]
	if !ok {
		b.logger.Debug("Capture result without waiter", zap.String("requestID", p.RequestID))
		return
	}
	select {
	case ch <- p:
	default:
	}
}

// deliverRecordingResult routes an inbound recording result to its waiter.
func (b *Bridge) deliverRecordingResult(p RecordingResultPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ch, ok := b.recordingWaiters[p.SessionID]
	if !ok {
		b.logger.Debug("Recording result without waiter", zap.String("sessionID", p.SessionID))
		return
	}
	select {
	case ch <- p:
	default:
	}
}

// deliverSpeechEvent forwards a speech lifecycle event. Full channels drop
// the event; the orchestrator only needs the latest state. Events arriving
// after Close are dropped.
func (b *Bridge) deliverSpeechEvent(p SpeechEventPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	ev := repositories.SpeechEvent{
		UtteranceID: p.UtteranceID,
		Kind:        repositories.SpeechEventKind(p.Event),
	}
	select {
	case b.speechEvents <- ev:
	default:
		b.logger.Warn("Speech event channel full, dropping event")
	}
}

// deliverRecognitionResult forwards a recognition result.
func (b *Bridge) deliverRecognitionResult(p RecognitionResultPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.recognitionEvents <- repositories.RecognitionEvent{SessionID: p.SessionID, Texts: p.Texts}:
	default:
		b.logger.Warn("Recognition event channel full, dropping result")
	}
}

// deliverRecognitionError forwards a recognition error.
func (b *Bridge) deliverRecognitionError(p RecognitionErrorPayload) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	select {
	case b.recognitionEvents <- repositories.RecognitionEvent{SessionID: p.SessionID, Err: fmt.Errorf("%s", p.Message)}:
	default:
		b.logger.Warn("Recognition event channel full, dropping error")
	}
}
