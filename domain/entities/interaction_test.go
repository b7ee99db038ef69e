package entities

import (
	"sync"
	"testing"
)

func TestBeginInferenceClaimsSlotOnce(t *testing.T) {
	s := NewInteractionState()

	if !s.BeginInference() {
		t.Fatal("expected first BeginInference to succeed")
	}
	if s.BeginInference() {
		t.Error("expected second BeginInference to fail while busy")
	}
	if !s.BusyInferring() {
		t.Error("expected BusyInferring to report true")
	}

	s.FinishInference("a scene")
	if s.BusyInferring() {
		t.Error("expected FinishInference to release the slot")
	}
	if !s.BeginInference() {
		t.Error("expected BeginInference to succeed after release")
	}
}

func TestBeginInferenceClearsLastOutput(t *testing.T) {
	s := NewInteractionState()
	s.SetOutput("stale answer")

	s.BeginInference()
	if got := s.LastOutput(); got != "" {
		t.Errorf("expected output cleared on claim, got %q", got)
	}

	s.FinishInference("fresh answer")
	if got := s.LastOutput(); got != "fresh answer" {
		t.Errorf("expected output %q, got %q", "fresh answer", got)
	}
}

func TestBeginInferenceSingleWinnerUnderContention(t *testing.T) {
	s := NewInteractionState()

	const attempts = 32
	var wg sync.WaitGroup
	results := make(chan bool, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.BeginInference()
		}()
	}
	wg.Wait()
	close(results)

	winners := 0
	for ok := range results {
		if ok {
			winners++
		}
	}
	if winners != 1 {
		t.Errorf("expected exactly one winner, got %d", winners)
	}
}

func TestListeningAndRecordingFlags(t *testing.T) {
	s := NewInteractionState()

	if !s.BeginListening() {
		t.Fatal("expected BeginListening to succeed")
	}
	if s.BeginListening() {
		t.Error("expected second BeginListening to fail")
	}
	s.EndListening()
	s.EndListening() // idempotent
	if s.Listening() {
		t.Error("expected listening cleared")
	}

	if !s.BeginRecording() {
		t.Fatal("expected BeginRecording to succeed")
	}
	if s.BeginRecording() {
		t.Error("expected second BeginRecording to fail")
	}
	s.EndRecording()
	if s.Recording() {
		t.Error("expected recording cleared")
	}
}

func TestSnapshotReflectsFlags(t *testing.T) {
	s := NewInteractionState()
	s.BeginInference()
	s.SetSpeaking(true)
	s.BeginListening()

	snap := s.Snapshot()
	if !snap.BusyInferring || !snap.Speaking || !snap.Listening || snap.Recording {
		t.Errorf("unexpected snapshot %+v", snap)
	}
}

func TestRecordingEmpty(t *testing.T) {
	if !(Recording{}).Empty() {
		t.Error("expected zero recording to be empty")
	}
	if (Recording{Data: []byte{1}}).Empty() {
		t.Error("expected recording with data to be non-empty")
	}
}
