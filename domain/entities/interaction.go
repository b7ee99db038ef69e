package entities

import "sync"

// InteractionState is the orchestrator's single source of truth. The flags
// are mutually exclusive guards for conflicting operations; they are only
// reachable through the transition methods below so the invariants stay
// checkable in one place.
//
// Invariant: at most one inference is in flight at a time. A second intent
// arriving while busyInferring is set is dropped, never queued.
type InteractionState struct {
	mu sync.Mutex

	busyInferring bool
	speaking      bool
	listening     bool
	recording     bool
	lastOutput    string
}

// NewInteractionState returns an idle state with empty output.
func NewInteractionState() *InteractionState {
	return &InteractionState{}
}

// BeginInference atomically claims the inference slot. It returns false when
// an inference is already outstanding, in which case the caller must drop
// the intent without side effects.
func (s *InteractionState) BeginInference() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.busyInferring {
		return false
	}
	s.busyInferring = true
	s.lastOutput = ""
	return true
}

// FinishInference records the intent's outcome (success text or error text)
// and releases the inference slot. Safe to call exactly once per successful
// BeginInference, on every exit path.
func (s *InteractionState) FinishInference(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.busyInferring = false
	s.lastOutput = output
}

// BusyInferring reports whether an inference call is outstanding.
func (s *InteractionState) BusyInferring() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.busyInferring
}

// SetOutput replaces the displayed output without touching the busy flag.
// Used by the configuration-error short circuit, which never claims the
// inference slot.
func (s *InteractionState) SetOutput(output string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastOutput = output
}

// LastOutput returns the most recent displayed output, empty when cleared.
func (s *InteractionState) LastOutput() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastOutput
}

// SetSpeaking tracks the speech-output lifecycle reported by the device.
func (s *InteractionState) SetSpeaking(speaking bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speaking = speaking
}

// Speaking reports whether speech output is currently playing.
func (s *InteractionState) Speaking() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.speaking
}

// BeginListening atomically claims the live-recognition session. Returns
// false when a session is already active.
func (s *InteractionState) BeginListening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listening {
		return false
	}
	s.listening = true
	return true
}

// EndListening clears the live-recognition flag. Idempotent.
func (s *InteractionState) EndListening() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listening = false
}

// Listening reports whether a live-recognition session is active.
func (s *InteractionState) Listening() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listening
}

// BeginRecording atomically claims the audio-capture session. Returns false
// when a recording is already in flight.
func (s *InteractionState) BeginRecording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.recording {
		return false
	}
	s.recording = true
	return true
}

// EndRecording clears the audio-capture flag. Idempotent.
func (s *InteractionState) EndRecording() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recording = false
}

// Recording reports whether an audio-capture session is active.
func (s *InteractionState) Recording() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.recording
}

// Snapshot is a point-in-time copy of the flags, for status reporting.
type Snapshot struct {
	BusyInferring bool   `json:"busy_inferring"`
	Speaking      bool   `json:"speaking"`
	Listening     bool   `json:"listening"`
	Recording     bool   `json:"recording"`
	LastOutput    string `json:"last_output"`
}

// Snapshot returns a consistent copy of the current state.
func (s *InteractionState) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		BusyInferring: s.busyInferring,
		Speaking:      s.speaking,
		Listening:     s.listening,
		Recording:     s.recording,
		LastOutput:    s.lastOutput,
	}
}
