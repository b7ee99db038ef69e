package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
)

// User-facing messages. Every failure ends in one of these being spoken;
// the primary consumer cannot read the screen.
const (
	describePrompt = "Describe this scene in a concise paragraph."

	msgUsage = "Welcome to Vision Assist. Tap anywhere to describe what the camera sees. " +
		"Long press to ask a question with your voice. Tap the bottom panel to hear the answer again. " +
		"Triple tap the bottom panel to ask with live speech."

	msgVisionNotConfigured = "No vision credential is configured. Set the VISION_API_KEY setting to enable scene answers."
	msgRelayNotConfigured  = "The transcription relay is not configured. Set the RELAY_URL setting to enable voice questions."
	msgVoiceUnavailable    = "Live speech recognition is not available in this build."
	msgVoiceStartFailed    = "Could not start voice recognition."
	msgVoiceFailed         = "Could not recognize speech. Please try again."
	msgRecordingFailed     = "Could not start recording."
	msgNothingUnderstood   = "Nothing was understood from the recording. Please try again."
)

// Deps are the capability services the orchestrator coordinates. Vision and
// Relay may be nil when the corresponding credential or endpoint is not
// configured; the orchestrator then degrades to spoken configuration
// messages instead of attempting network calls.
type Deps struct {
	Capture    repositories.StillCapture
	Vision     repositories.VisionModel
	Speech     repositories.SpeechOutput
	Recognizer repositories.LiveRecognizer
	Recorder   repositories.AudioRecorder
	Relay      repositories.TranscriptionRelay
	Presenter  repositories.Presenter
}

// Config tunes the orchestrator's speech parameters and call bounds.
type Config struct {
	Locale string
	Pitch  float64
	Rate   float64
	// RequestTimeout bounds every outbound inference and relay call so a
	// hung remote can never leave the busy flag stuck.
	RequestTimeout time.Duration
}

// Orchestrator multiplexes the capture, vision, speech-output, live
// recognition and audio recording services behind classified gestures. All
// cross-subsystem sequencing and mutual exclusion lives here; no gesture
// handler blocks on a network call.
type Orchestrator struct {
	capture    repositories.StillCapture
	vision     repositories.VisionModel
	speech     repositories.SpeechOutput
	recognizer repositories.LiveRecognizer
	recorder   repositories.AudioRecorder
	relay      repositories.TranscriptionRelay
	presenter  repositories.Presenter

	state  *entities.InteractionState
	cfg    Config
	logger *zap.Logger

	// Live-recognition availability is probed once at construction and
	// cached; gestures never re-probe.
	liveAvailable bool

	mu                 sync.Mutex
	currentUtterance   string
	recognitionSession string
}

// New creates an orchestrator for one device session.
func New(deps Deps, cfg Config, logger *zap.Logger) *Orchestrator {
	if cfg.Locale == "" {
		cfg.Locale = "en-US"
	}
	if cfg.Pitch == 0 {
		cfg.Pitch = 1.0
	}
	if cfg.Rate == 0 {
		cfg.Rate = 0.9
	}
	if cfg.RequestTimeout == 0 {
		cfg.RequestTimeout = 30 * time.Second
	}

	return &Orchestrator{
		capture:       deps.Capture,
		vision:        deps.Vision,
		speech:        deps.Speech,
		recognizer:    deps.Recognizer,
		recorder:      deps.Recorder,
		relay:         deps.Relay,
		presenter:     deps.Presenter,
		state:         entities.NewInteractionState(),
		cfg:           cfg,
		logger:        logger,
		liveAvailable: deps.Recognizer != nil && deps.Recognizer.Available(),
	}
}

// State exposes the interaction state for status reporting and tests.
func (o *Orchestrator) State() *entities.InteractionState {
	return o.state
}

// Run consumes speech and recognition lifecycle events until ctx is
// cancelled. It must run exactly once per session; the orchestrator
// subscribes to each event channel here and demultiplexes by session and
// utterance identity.
func (o *Orchestrator) Run(ctx context.Context) {
	speechEvents := o.speech.Events()
	var recognitionEvents <-chan repositories.RecognitionEvent
	if o.recognizer != nil {
		recognitionEvents = o.recognizer.Events()
	}

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-speechEvents:
			if !ok {
				speechEvents = nil
				continue
			}
			o.onSpeechEvent(ev)
		case ev, ok := <-recognitionEvents:
			if !ok {
				recognitionEvents = nil
				continue
			}
			o.onRecognitionEvent(ev)
		}
	}
}

// AnnounceUsage speaks the gesture instructions. Called once when a device
// session attaches.
func (o *Orchestrator) AnnounceUsage() {
	o.speak(msgUsage)
}

// HandleGesture dispatches one classified gesture. Exactly one of the
// intent paths fires per gesture; the classifier guarantees a long-press
// release never doubles as a tap.
func (o *Orchestrator) HandleGesture(g entities.Gesture) {
	o.logger.Debug("Gesture received",
		zap.String("type", string(g.Type)),
		zap.String("surface", string(g.Surface)))

	switch g.Type {
	case entities.GestureTap:
		if g.Surface == entities.SurfaceOutput {
			o.ToggleReplay()
		} else {
			o.Describe()
		}
	case entities.GestureLongPressStart:
		o.StartRecording()
	case entities.GestureLongPressEnd:
		o.FinishRecording()
	case entities.GestureRepeatPattern:
		// The pattern toggles live recognition: repeating it while a
		// session is open cancels instead of stacking a second session.
		if o.state.Listening() {
			o.StopListening()
		} else {
			o.StartListening()
		}
	default:
		o.logger.Warn("Unknown gesture type", zap.String("type", string(g.Type)))
	}
}

// Describe runs the Describe intent against the current camera frame.
func (o *Orchestrator) Describe() {
	o.runIntent(describePrompt)
}

// Ask runs the Ask intent with the given question text. Blank questions are
// dropped.
func (o *Orchestrator) Ask(question string) {
	question = strings.TrimSpace(question)
	if question == "" {
		return
	}
	o.runIntent(question)
}

// runIntent drives one intent through the capture → inference → speech
// protocol. The busy flag guarantees at most one inference in flight; a
// competing intent is dropped, not queued. Whatever happens after the flag
// is claimed, it is released and exactly one speak attempt is made.
func (o *Orchestrator) runIntent(prompt string) {
	if o.state.BusyInferring() {
		o.logger.Info("Intent dropped, inference already in flight")
		return
	}

	if o.vision == nil {
		// Normal terminal path: no credential, no network attempted.
		o.state.SetOutput(msgVisionNotConfigured)
		o.showOutput(msgVisionNotConfigured)
		o.speak(msgVisionNotConfigured)
		return
	}

	if !o.state.BeginInference() {
		o.logger.Info("Intent dropped, lost race for the inference slot")
		return
	}
	o.showOutput("")

	go func() {
		result := o.executeIntent(prompt)
		o.state.FinishInference(result)
		o.showOutput(result)
		o.speak(result)
	}()
}

// executeIntent performs the capture and inference steps and always returns
// text to speak: the answer on success, the failure description otherwise.
func (o *Orchestrator) executeIntent(prompt string) string {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	image, err := o.capture.CaptureStill(ctx)
	if err != nil {
		o.logger.Warn("Still capture failed", zap.Error(err))
		return fmt.Sprintf("Camera capture failed: %v", err)
	}

	text, err := o.vision.Generate(ctx, prompt, image)
	if err != nil {
		o.logger.Warn("Vision inference failed", zap.Error(err))
		return err.Error()
	}
	return text
}

// ToggleReplay replays the last output, or stops speech when it is already
// playing. Ignored while an answer is still being produced or when there is
// nothing to replay.
func (o *Orchestrator) ToggleReplay() {
	if o.state.Speaking() {
		o.StopSpeaking()
		return
	}
	if o.state.BusyInferring() {
		return
	}
	if last := o.state.LastOutput(); last != "" {
		o.speak(last)
	}
}

// StopSpeaking interrupts playback. Idempotent: safe when nothing is
// speaking.
func (o *Orchestrator) StopSpeaking() {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	if err := o.speech.Stop(ctx); err != nil {
		o.logger.Warn("Failed to stop speech", zap.Error(err))
	}
	o.state.SetSpeaking(false)
}

// StartListening begins a live-recognition session. Refused with a spoken
// notice when the runtime lacks the capability.
func (o *Orchestrator) StartListening() {
	if !o.liveAvailable {
		o.notify(msgVoiceUnavailable)
		return
	}
	if !o.state.BeginListening() {
		o.logger.Info("Live recognition already active")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	sessionID, err := o.recognizer.Start(ctx, o.cfg.Locale)
	if err != nil {
		o.logger.Warn("Failed to start live recognition", zap.Error(err))
		o.state.EndListening()
		o.notify(msgVoiceStartFailed)
		return
	}

	o.mu.Lock()
	o.recognitionSession = sessionID
	o.mu.Unlock()

	o.logger.Info("Live recognition started", zap.String("sessionID", sessionID))
}

// StopListening cancels the live-recognition session. Safe when none is
// active. The session ID is invalidated so a result still in flight from
// the cancelled session is dropped as stale.
func (o *Orchestrator) StopListening() {
	if !o.state.Listening() {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	if err := o.recognizer.Stop(ctx); err != nil {
		o.logger.Warn("Failed to stop live recognition", zap.Error(err))
	}

	o.mu.Lock()
	o.recognitionSession = ""
	o.mu.Unlock()

	o.state.EndListening()
}

// onRecognitionEvent handles one result-or-error emission. An event naming
// a session other than the current one is stale and dropped without
// touching any state; the current session is consumed only once its own
// event arrives. Errors clear the listening flag and surface a notice,
// never an automatic retry.
func (o *Orchestrator) onRecognitionEvent(ev repositories.RecognitionEvent) {
	o.mu.Lock()
	current := o.recognitionSession
	o.mu.Unlock()

	if ev.SessionID != "" && ev.SessionID != current {
		o.logger.Debug("Dropping stale recognition event",
			zap.String("sessionID", ev.SessionID))
		return
	}

	o.mu.Lock()
	o.recognitionSession = ""
	o.mu.Unlock()

	o.state.EndListening()

	if ev.Err != nil {
		o.logger.Warn("Live recognition error", zap.Error(ev.Err))
		o.notify(msgVoiceFailed)
		return
	}

	if len(ev.Texts) == 0 || strings.TrimSpace(ev.Texts[0]) == "" {
		return
	}
	o.Ask(ev.Texts[0])
}

// StartRecording opens an audio-capture session for a voice question.
func (o *Orchestrator) StartRecording() {
	if !o.state.BeginRecording() {
		o.logger.Info("Recording already in flight")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	sessionID, err := o.recorder.Start(ctx)
	if err != nil {
		o.logger.Warn("Failed to start recording", zap.Error(err))
		o.state.EndRecording()
		o.notify(msgRecordingFailed)
		return
	}
	o.logger.Info("Recording started", zap.String("sessionID", sessionID))
}

// FinishRecording stops the active recording and hands it to the relay.
// Safe when no recording is active. An empty recording aborts silently;
// there is nothing to upload.
func (o *Orchestrator) FinishRecording() {
	if !o.state.Recording() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	rec, err := o.recorder.Stop(ctx)
	o.state.EndRecording()
	if err != nil {
		o.logger.Warn("Failed to finalize recording", zap.Error(err))
		return
	}
	if rec.Empty() {
		o.logger.Info("Recording produced no audio, nothing to upload")
		return
	}

	go o.uploadRecording(rec)
}

// uploadRecording transcribes a finished recording and feeds a non-empty
// transcript into the Ask intent. An empty transcript is "nothing
// understood", not a failure, and never reaches the vision backend.
func (o *Orchestrator) uploadRecording(rec entities.Recording) {
	if o.relay == nil {
		o.notify(msgRelayNotConfigured)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	transcript, err := o.relay.Transcribe(ctx, rec)
	if err != nil {
		o.logger.Warn("Transcription failed", zap.Error(err))
		o.notify(fmt.Sprintf("Transcription failed: %v", err))
		return
	}

	if strings.TrimSpace(transcript) == "" {
		o.notify(msgNothingUnderstood)
		return
	}

	o.logger.Info("Voice question transcribed", zap.String("transcript", transcript))
	o.Ask(transcript)
}

// onSpeechEvent tracks playback lifecycle. Events for superseded utterances
// are ignored so a stale "finished" cannot clear the flag of a newer
// utterance.
func (o *Orchestrator) onSpeechEvent(ev repositories.SpeechEvent) {
	o.mu.Lock()
	current := o.currentUtterance
	o.mu.Unlock()

	if ev.UtteranceID != current {
		return
	}

	switch ev.Kind {
	case repositories.SpeechStarted:
		o.state.SetSpeaking(true)
	case repositories.SpeechFinished, repositories.SpeechFailed:
		o.state.SetSpeaking(false)
	}
}

// speak issues one speak command. Failures are logged, never escalated; a
// broken speaker must not take down the interaction loop.
func (o *Orchestrator) speak(text string) {
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()

	utteranceID, err := o.speech.Speak(ctx, repositories.SpeechRequest{
		Text:   text,
		Locale: o.cfg.Locale,
		Pitch:  o.cfg.Pitch,
		Rate:   o.cfg.Rate,
	})
	if err != nil {
		o.logger.Warn("Speak failed", zap.Error(err))
		return
	}

	o.mu.Lock()
	o.currentUtterance = utteranceID
	o.mu.Unlock()
}

// notify surfaces a transient notice on the device and speaks it.
func (o *Orchestrator) notify(text string) {
	if o.presenter != nil {
		ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
		defer cancel()
		if err := o.presenter.Notify(ctx, text); err != nil {
			o.logger.Warn("Failed to deliver notice", zap.Error(err))
		}
	}
	o.speak(text)
}

func (o *Orchestrator) showOutput(text string) {
	if o.presenter == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), o.cfg.RequestTimeout)
	defer cancel()
	if err := o.presenter.ShowOutput(ctx, text); err != nil {
		o.logger.Warn("Failed to update output panel", zap.Error(err))
	}
}
