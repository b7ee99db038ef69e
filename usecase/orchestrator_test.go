package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
	"github.com/visionassist/server/domain/repositories"
)

type fakeCapture struct {
	mu    sync.Mutex
	img   entities.CapturedImage
	err   error
	calls int
}

func (f *fakeCapture) CaptureStill(ctx context.Context) (entities.CapturedImage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.img, f.err
}

type fakeVision struct {
	mu      sync.Mutex
	prompts []string
	reply   string
	err     error
	block   chan struct{}
}

func (f *fakeVision) Generate(ctx context.Context, prompt string, image entities.CapturedImage) (string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, prompt)
	block := f.block
	reply, err := f.reply, f.err
	f.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return reply, err
}

func (f *fakeVision) promptCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.prompts)
}

type fakeSpeech struct {
	mu     sync.Mutex
	spoken []string
	stops  int
	seq    int
	events chan repositories.SpeechEvent
}

func newFakeSpeech() *fakeSpeech {
	return &fakeSpeech{events: make(chan repositories.SpeechEvent, 8)}
}

func (f *fakeSpeech) Speak(ctx context.Context, req repositories.SpeechRequest) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seq++
	f.spoken = append(f.spoken, req.Text)
	return fmt.Sprintf("utt-%d", f.seq), nil
}

func (f *fakeSpeech) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

func (f *fakeSpeech) Events() <-chan repositories.SpeechEvent { return f.events }

func (f *fakeSpeech) spokenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.spoken))
	copy(out, f.spoken)
	return out
}

func (f *fakeSpeech) stopCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

type fakeRecognizer struct {
	mu        sync.Mutex
	available bool
	startErr  error
	started   int
	stopped   int
	events    chan repositories.RecognitionEvent
}

func newFakeRecognizer(available bool) *fakeRecognizer {
	return &fakeRecognizer{
		available: available,
		events:    make(chan repositories.RecognitionEvent, 8),
	}
}

func (f *fakeRecognizer) Available() bool { return f.available }

func (f *fakeRecognizer) Start(ctx context.Context, locale string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.started++
	return fmt.Sprintf("rec-%d", f.started), nil
}

func (f *fakeRecognizer) Stop(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped++
	return nil
}

func (f *fakeRecognizer) Events() <-chan repositories.RecognitionEvent { return f.events }

type fakeRecorder struct {
	mu       sync.Mutex
	startErr error
	stopRec  entities.Recording
	stopErr  error
	starts   int
	stops    int
}

func (f *fakeRecorder) Start(ctx context.Context) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return "", f.startErr
	}
	f.starts++
	return fmt.Sprintf("audio-%d", f.starts), nil
}

func (f *fakeRecorder) Stop(ctx context.Context) (entities.Recording, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return f.stopRec, f.stopErr
}

type fakeRelay struct {
	mu         sync.Mutex
	transcript string
	err        error
	received   []entities.Recording
}

func (f *fakeRelay) Transcribe(ctx context.Context, rec entities.Recording) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.received = append(f.received, rec)
	return f.transcript, f.err
}

type fakePresenter struct {
	mu      sync.Mutex
	outputs []string
	notices []string
}

func (f *fakePresenter) ShowOutput(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outputs = append(f.outputs, text)
	return nil
}

func (f *fakePresenter) Notify(ctx context.Context, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.notices = append(f.notices, text)
	return nil
}

func (f *fakePresenter) lastOutput() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.outputs) == 0 {
		return "", false
	}
	return f.outputs[len(f.outputs)-1], true
}

func (f *fakePresenter) noticeTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.notices))
	copy(out, f.notices)
	return out
}

type testHarness struct {
	orch       *Orchestrator
	capture    *fakeCapture
	vision     *fakeVision
	speech     *fakeSpeech
	recognizer *fakeRecognizer
	recorder   *fakeRecorder
	relay      *fakeRelay
	presenter  *fakePresenter
	cancel     context.CancelFunc
}

func newHarness(t *testing.T, mutate func(*Deps)) *testHarness {
	t.Helper()

	h := &testHarness{
		capture:    &fakeCapture{img: entities.CapturedImage{Data: []byte("jpeg"), MIMEType: "image/jpeg"}},
		vision:     &fakeVision{reply: "A sunlit kitchen."},
		speech:     newFakeSpeech(),
		recognizer: newFakeRecognizer(true),
		recorder:   &fakeRecorder{stopRec: entities.Recording{Data: []byte("audio"), MIMEType: "audio/mp4", FileName: "q.m4a"}},
		relay:      &fakeRelay{transcript: "what is on the table"},
		presenter:  &fakePresenter{},
	}

	deps := Deps{
		Capture:    h.capture,
		Vision:     h.vision,
		Speech:     h.speech,
		Recognizer: h.recognizer,
		Recorder:   h.recorder,
		Relay:      h.relay,
		Presenter:  h.presenter,
	}
	if mutate != nil {
		mutate(&deps)
	}

	h.orch = New(deps, Config{RequestTimeout: 2 * time.Second}, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	go h.orch.Run(ctx)
	t.Cleanup(cancel)
	return h
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestDescribeSpeaksAnswerOnce(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.Describe()

	waitFor(t, "spoken answer", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	spoken := h.speech.spokenTexts()
	if spoken[0] != "A sunlit kitchen." {
		t.Errorf("expected answer spoken, got %q", spoken[0])
	}
	if h.orch.State().BusyInferring() {
		t.Error("expected busy flag released after intent")
	}
	if got := h.orch.State().LastOutput(); got != "A sunlit kitchen." {
		t.Errorf("expected last output stored, got %q", got)
	}
	if out, ok := h.presenter.lastOutput(); !ok || out != "A sunlit kitchen." {
		t.Errorf("expected output panel updated, got %q", out)
	}

	h.vision.mu.Lock()
	prompt := h.vision.prompts[0]
	h.vision.mu.Unlock()
	if prompt != describePrompt {
		t.Errorf("expected describe prompt, got %q", prompt)
	}
}

func TestCompetingIntentDroppedWhileBusy(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	h.vision.block = release

	h.orch.Describe()
	waitFor(t, "first inference in flight", func() bool {
		return h.orch.State().BusyInferring()
	})

	h.orch.Describe()
	h.orch.Ask("what color is the mug")
	close(release)

	waitFor(t, "intent completion", func() bool {
		return !h.orch.State().BusyInferring()
	})
	// Give any wrongly queued intent a moment to surface.
	time.Sleep(50 * time.Millisecond)

	if got := h.vision.promptCount(); got != 1 {
		t.Errorf("expected exactly one inference call, got %d", got)
	}
	if got := len(h.speech.spokenTexts()); got != 1 {
		t.Errorf("expected exactly one speak, got %d", got)
	}
}

func TestIntentWithoutVisionCredential(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Vision = nil })

	h.orch.Describe()

	waitFor(t, "configuration message spoken", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	if got := h.speech.spokenTexts()[0]; got != msgVisionNotConfigured {
		t.Errorf("expected configuration message, got %q", got)
	}
	if h.orch.State().BusyInferring() {
		t.Error("expected busy flag untouched by the short circuit")
	}
	if got := h.orch.State().LastOutput(); got != msgVisionNotConfigured {
		t.Errorf("expected configuration message replayable, got %q", got)
	}
	if h.capture.calls != 0 {
		t.Error("expected no capture attempt without a credential")
	}
}

func TestVisionErrorSpokenVerbatim(t *testing.T) {
	h := newHarness(t, nil)
	h.vision.reply = ""
	h.vision.err = errors.New("vision error 500: quota exceeded")

	h.orch.Describe()

	waitFor(t, "error spoken", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	got := h.speech.spokenTexts()[0]
	if !strings.Contains(got, "500") || !strings.Contains(got, "quota exceeded") {
		t.Errorf("expected status and body in spoken error, got %q", got)
	}
	if h.orch.State().BusyInferring() {
		t.Error("expected busy flag released after failure")
	}
}

func TestCaptureFailureSpoken(t *testing.T) {
	h := newHarness(t, nil)
	h.capture.err = errors.New("camera not ready")

	h.orch.Describe()

	waitFor(t, "capture failure spoken", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	got := h.speech.spokenTexts()[0]
	if !strings.Contains(got, "Camera capture failed") || !strings.Contains(got, "camera not ready") {
		t.Errorf("unexpected capture failure text %q", got)
	}
	if h.vision.promptCount() != 0 {
		t.Error("expected no inference after capture failure")
	}
}

func TestToggleReplaySpeaksLastOutput(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.Describe()
	waitFor(t, "answer spoken", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	h.orch.ToggleReplay()
	waitFor(t, "answer replayed", func() bool {
		return len(h.speech.spokenTexts()) == 2
	})

	spoken := h.speech.spokenTexts()
	if spoken[1] != spoken[0] {
		t.Errorf("expected replay of %q, got %q", spoken[0], spoken[1])
	}
}

func TestToggleReplayStopsActiveSpeech(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.Describe()
	waitFor(t, "answer spoken", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	h.speech.events <- repositories.SpeechEvent{UtteranceID: "utt-1", Kind: repositories.SpeechStarted}
	waitFor(t, "speaking flag set", func() bool {
		return h.orch.State().Speaking()
	})

	h.orch.ToggleReplay()

	if h.speech.stopCount() != 1 {
		t.Errorf("expected one stop call, got %d", h.speech.stopCount())
	}
	if h.orch.State().Speaking() {
		t.Error("expected speaking flag cleared")
	}
	if got := len(h.speech.spokenTexts()); got != 1 {
		t.Errorf("expected no replay while stopping, got %d speaks", got)
	}
}

func TestToggleReplayIgnoredWhileBusy(t *testing.T) {
	h := newHarness(t, nil)
	release := make(chan struct{})
	h.vision.block = release

	h.orch.Describe()
	waitFor(t, "inference in flight", func() bool {
		return h.orch.State().BusyInferring()
	})

	h.orch.ToggleReplay()
	if got := len(h.speech.spokenTexts()); got != 0 {
		t.Errorf("expected no speak while busy, got %d", got)
	}
	close(release)
}

func TestToggleReplayNoOutputIsNoOp(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.ToggleReplay()
	if got := len(h.speech.spokenTexts()); got != 0 {
		t.Errorf("expected silence with no prior output, got %d speaks", got)
	}
}

func TestStaleSpeechEventIgnored(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.Describe()
	waitFor(t, "answer spoken", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	h.speech.events <- repositories.SpeechEvent{UtteranceID: "utt-1", Kind: repositories.SpeechStarted}
	waitFor(t, "speaking flag set", func() bool {
		return h.orch.State().Speaking()
	})

	// A finished event for a different utterance must not clear the flag.
	h.speech.events <- repositories.SpeechEvent{UtteranceID: "utt-99", Kind: repositories.SpeechFinished}
	time.Sleep(30 * time.Millisecond)
	if !h.orch.State().Speaking() {
		t.Error("expected stale finished event to be ignored")
	}

	h.speech.events <- repositories.SpeechEvent{UtteranceID: "utt-1", Kind: repositories.SpeechFinished}
	waitFor(t, "speaking flag cleared", func() bool {
		return !h.orch.State().Speaking()
	})
}

func TestLiveRecognitionUnavailable(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Recognizer = newFakeRecognizer(false) })

	h.orch.StartListening()

	waitFor(t, "unavailable notice", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	if got := h.speech.spokenTexts()[0]; got != msgVoiceUnavailable {
		t.Errorf("expected unavailable message, got %q", got)
	}
	if h.orch.State().Listening() {
		t.Error("expected listening flag untouched")
	}
}

func TestLiveRecognitionStartFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.recognizer.startErr = errors.New("engine refused")

	h.orch.StartListening()

	waitFor(t, "start failure notice", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	if got := h.speech.spokenTexts()[0]; got != msgVoiceStartFailed {
		t.Errorf("expected start-failure message, got %q", got)
	}
	if h.orch.State().Listening() {
		t.Error("expected listening flag cleared after start failure")
	}
}

func TestLiveRecognitionResultAsksQuestion(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.StartListening()
	waitFor(t, "listening flag", func() bool {
		return h.orch.State().Listening()
	})

	h.recognizer.events <- repositories.RecognitionEvent{
		SessionID: "rec-1",
		Texts:     []string{"is the stove on"},
	}

	waitFor(t, "question answered", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	h.vision.mu.Lock()
	prompt := h.vision.prompts[0]
	h.vision.mu.Unlock()
	if prompt != "is the stove on" {
		t.Errorf("expected transcript as prompt, got %q", prompt)
	}
	if h.orch.State().Listening() {
		t.Error("expected listening flag cleared after result")
	}
}

func TestLiveRecognitionErrorNotifiesWithoutRetry(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.StartListening()
	waitFor(t, "listening flag", func() bool {
		return h.orch.State().Listening()
	})

	h.recognizer.events <- repositories.RecognitionEvent{
		SessionID: "rec-1",
		Err:       errors.New("audio route lost"),
	}

	waitFor(t, "failure notice", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	if got := h.speech.spokenTexts()[0]; got != msgVoiceFailed {
		t.Errorf("expected recognition-failure message, got %q", got)
	}
	if h.orch.State().Listening() {
		t.Error("expected listening flag cleared after error")
	}

	h.recognizer.mu.Lock()
	started := h.recognizer.started
	h.recognizer.mu.Unlock()
	if started != 1 {
		t.Errorf("expected no automatic retry, got %d starts", started)
	}
}

func TestLiveRecognitionEmptyResultStaysSilent(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.StartListening()
	waitFor(t, "listening flag", func() bool {
		return h.orch.State().Listening()
	})

	h.recognizer.events <- repositories.RecognitionEvent{SessionID: "rec-1"}

	waitFor(t, "listening flag cleared", func() bool {
		return !h.orch.State().Listening()
	})
	time.Sleep(30 * time.Millisecond)
	if got := len(h.speech.spokenTexts()); got != 0 {
		t.Errorf("expected silence on empty recognition, got %d speaks", got)
	}
	if h.vision.promptCount() != 0 {
		t.Error("expected no inference from empty recognition")
	}
}

func TestStopSpeakingWhenIdleIsNoOp(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.StopSpeaking()

	if h.speech.stopCount() != 1 {
		t.Errorf("expected stop forwarded once, got %d", h.speech.stopCount())
	}
	if h.orch.State().Speaking() {
		t.Error("expected speaking flag to stay clear")
	}
	if got := len(h.speech.spokenTexts()); got != 0 {
		t.Errorf("expected no speech from an idle stop, got %d", got)
	}
}

func TestStopListeningWithoutSessionIsNoOp(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.StopListening()

	h.recognizer.mu.Lock()
	stopped := h.recognizer.stopped
	h.recognizer.mu.Unlock()
	if stopped != 0 {
		t.Errorf("expected no stop command without a session, got %d", stopped)
	}
	if h.orch.State().Listening() {
		t.Error("expected listening flag to stay clear")
	}
}

func TestRepeatPatternTogglesLiveRecognitionOff(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.HandleGesture(entities.Gesture{Type: entities.GestureRepeatPattern, Surface: entities.SurfaceOutput})
	waitFor(t, "listening flag", func() bool {
		return h.orch.State().Listening()
	})

	h.orch.HandleGesture(entities.Gesture{Type: entities.GestureRepeatPattern, Surface: entities.SurfaceOutput})

	if h.orch.State().Listening() {
		t.Error("expected second pattern to cancel the session")
	}
	h.recognizer.mu.Lock()
	stopped := h.recognizer.stopped
	h.recognizer.mu.Unlock()
	if stopped != 1 {
		t.Errorf("expected one stop command, got %d", stopped)
	}

	// A result from the cancelled session arriving late is stale.
	h.recognizer.events <- repositories.RecognitionEvent{
		SessionID: "rec-1",
		Texts:     []string{"is the stove on"},
	}
	time.Sleep(30 * time.Millisecond)
	if h.vision.promptCount() != 0 {
		t.Error("expected cancelled-session result dropped")
	}
}

func TestStaleRecognitionEventLeavesSessionIntact(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.StartListening()
	waitFor(t, "listening flag", func() bool {
		return h.orch.State().Listening()
	})

	// An event from a superseded session must not consume the current
	// session or clear the listening flag.
	h.recognizer.events <- repositories.RecognitionEvent{
		SessionID: "rec-0",
		Texts:     []string{"old words"},
	}
	time.Sleep(30 * time.Millisecond)
	if !h.orch.State().Listening() {
		t.Fatal("expected stale event to leave the session listening")
	}
	if h.vision.promptCount() != 0 {
		t.Error("expected stale transcript dropped")
	}

	// The genuine result is still accepted afterwards.
	h.recognizer.events <- repositories.RecognitionEvent{
		SessionID: "rec-1",
		Texts:     []string{"is the stove on"},
	}
	waitFor(t, "genuine result answered", func() bool {
		return h.vision.promptCount() == 1
	})
	if h.orch.State().Listening() {
		t.Error("expected listening flag cleared by the genuine result")
	}
}

func TestRecordingRoundTripAsksTranscript(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.StartRecording()
	if !h.orch.State().Recording() {
		t.Fatal("expected recording flag set")
	}

	h.orch.FinishRecording()
	if h.orch.State().Recording() {
		t.Error("expected recording flag cleared at finalize")
	}

	waitFor(t, "transcript answered", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})

	h.vision.mu.Lock()
	prompt := h.vision.prompts[0]
	h.vision.mu.Unlock()
	if prompt != "what is on the table" {
		t.Errorf("expected transcript as prompt, got %q", prompt)
	}

	h.relay.mu.Lock()
	uploads := len(h.relay.received)
	h.relay.mu.Unlock()
	if uploads != 1 {
		t.Errorf("expected one upload, got %d", uploads)
	}
}

func TestRecordingStartFailureNotifies(t *testing.T) {
	h := newHarness(t, nil)
	h.recorder.startErr = errors.New("microphone busy")

	h.orch.StartRecording()

	waitFor(t, "recording failure notice", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	if got := h.speech.spokenTexts()[0]; got != msgRecordingFailed {
		t.Errorf("expected recording-failure message, got %q", got)
	}
	if h.orch.State().Recording() {
		t.Error("expected recording flag cleared after start failure")
	}
}

func TestFinishRecordingWithoutStartIsNoOp(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.FinishRecording()

	h.recorder.mu.Lock()
	stops := h.recorder.stops
	h.recorder.mu.Unlock()
	if stops != 0 {
		t.Errorf("expected no finalize without an active recording, got %d", stops)
	}
}

func TestEmptyRecordingSkipsUpload(t *testing.T) {
	h := newHarness(t, nil)
	h.recorder.stopRec = entities.Recording{}

	h.orch.StartRecording()
	h.orch.FinishRecording()

	time.Sleep(50 * time.Millisecond)
	h.relay.mu.Lock()
	uploads := len(h.relay.received)
	h.relay.mu.Unlock()
	if uploads != 0 {
		t.Errorf("expected no upload of an empty recording, got %d", uploads)
	}
	if got := len(h.speech.spokenTexts()); got != 0 {
		t.Errorf("expected silent abort, got %d speaks", got)
	}
}

func TestEmptyTranscriptNeverReachesVision(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.transcript = "   "

	h.orch.StartRecording()
	h.orch.FinishRecording()

	waitFor(t, "nothing-understood notice", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	if got := h.speech.spokenTexts()[0]; got != msgNothingUnderstood {
		t.Errorf("expected nothing-understood message, got %q", got)
	}
	if h.vision.promptCount() != 0 {
		t.Error("expected no inference from an empty transcript")
	}
}

func TestTranscriptionFailureNotifies(t *testing.T) {
	h := newHarness(t, nil)
	h.relay.transcript = ""
	h.relay.err = errors.New("relay error 500: transcode failed")

	h.orch.StartRecording()
	h.orch.FinishRecording()

	waitFor(t, "transcription failure notice", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	got := h.speech.spokenTexts()[0]
	if !strings.Contains(got, "Transcription failed") || !strings.Contains(got, "transcode failed") {
		t.Errorf("unexpected transcription failure text %q", got)
	}
	if h.vision.promptCount() != 0 {
		t.Error("expected no inference after transcription failure")
	}
}

func TestRecordingWithoutRelayConfigured(t *testing.T) {
	h := newHarness(t, func(d *Deps) { d.Relay = nil })

	h.orch.StartRecording()
	h.orch.FinishRecording()

	waitFor(t, "relay configuration notice", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	if got := h.speech.spokenTexts()[0]; got != msgRelayNotConfigured {
		t.Errorf("expected relay configuration message, got %q", got)
	}
}

func TestAskDropsBlankQuestion(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.Ask("   ")

	time.Sleep(30 * time.Millisecond)
	if h.vision.promptCount() != 0 {
		t.Error("expected blank question dropped before inference")
	}
}

func TestAnnounceUsageSpeaksInstructions(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.AnnounceUsage()

	waitFor(t, "usage spoken", func() bool {
		return len(h.speech.spokenTexts()) == 1
	})
	if got := h.speech.spokenTexts()[0]; got != msgUsage {
		t.Errorf("expected usage message, got %q", got)
	}
}

func TestHandleGestureDispatch(t *testing.T) {
	h := newHarness(t, nil)

	h.orch.HandleGesture(entities.Gesture{Type: entities.GestureLongPressStart, Surface: entities.SurfaceCapture})
	if !h.orch.State().Recording() {
		t.Error("expected long-press start to begin recording")
	}

	h.orch.HandleGesture(entities.Gesture{Type: entities.GestureLongPressEnd, Surface: entities.SurfaceCapture})
	if h.orch.State().Recording() {
		t.Error("expected long-press end to finalize recording")
	}

	waitFor(t, "voice question answered", func() bool {
		return h.vision.promptCount() == 1
	})

	h.orch.HandleGesture(entities.Gesture{Type: entities.GestureTap, Surface: entities.SurfaceCapture})
	waitFor(t, "describe dispatched", func() bool {
		return h.vision.promptCount() == 2
	})
	h.vision.mu.Lock()
	prompt := h.vision.prompts[1]
	h.vision.mu.Unlock()
	if prompt != describePrompt {
		t.Errorf("expected describe prompt from capture tap, got %q", prompt)
	}
}
