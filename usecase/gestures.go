package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/visionassist/server/domain/entities"
)

// Default disambiguation thresholds. The press-and-hold threshold separates
// taps from recording gestures; the repeat window bounds the gap between
// taps of the rapid-repeat pattern.
const (
	defaultLongPressThreshold = 450 * time.Millisecond
	defaultRepeatWindow       = 350 * time.Millisecond
	defaultRepeatTaps         = 3
)

// ClassifierConfig tunes gesture disambiguation. Zero values take the
// defaults above.
type ClassifierConfig struct {
	LongPressThreshold time.Duration
	RepeatWindow       time.Duration
	RepeatTaps         int
}

// Classifier turns raw press/release touch events into exactly one gesture
// per physical input. A release that closes a long press emits only
// GestureLongPressEnd, never a tap, which is what keeps the tap-describe
// and release-upload paths from both firing for the same gesture.
//
// Taps on the output panel are withheld for the repeat window so a rapid
// triple tap collapses into a single GestureRepeatPattern instead of three
// replay toggles. Taps on the capture surface fire immediately.
type Classifier struct {
	cfg    ClassifierConfig
	emit   func(entities.Gesture)
	logger *zap.Logger

	mu             sync.Mutex
	pressed        bool
	pressSurface   entities.Surface
	longPressFired bool
	longPressTimer *time.Timer

	pendingTaps int
	tapTimer    *time.Timer
}

// NewClassifier creates a classifier that forwards gestures to emit. The
// callback runs on timer goroutines and must be safe for that.
func NewClassifier(cfg ClassifierConfig, emit func(entities.Gesture), logger *zap.Logger) *Classifier {
	if cfg.LongPressThreshold <= 0 {
		cfg.LongPressThreshold = defaultLongPressThreshold
	}
	if cfg.RepeatWindow <= 0 {
		cfg.RepeatWindow = defaultRepeatWindow
	}
	if cfg.RepeatTaps <= 0 {
		cfg.RepeatTaps = defaultRepeatTaps
	}
	return &Classifier{
		cfg:    cfg,
		emit:   emit,
		logger: logger,
	}
}

// Handle consumes one raw touch event.
func (c *Classifier) Handle(ev entities.TouchEvent) {
	switch ev.Kind {
	case entities.TouchPress:
		c.handlePress(ev)
	case entities.TouchRelease:
		c.handleRelease(ev)
	default:
		c.logger.Warn("Unknown touch kind", zap.String("kind", string(ev.Kind)))
	}
}

func (c *Classifier) handlePress(ev entities.TouchEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pressed {
		// Second finger while held; the first press owns the gesture.
		return
	}
	c.pressed = true
	c.pressSurface = ev.Surface
	c.longPressFired = false

	c.longPressTimer = time.AfterFunc(c.cfg.LongPressThreshold, func() {
		c.mu.Lock()
		if !c.pressed {
			c.mu.Unlock()
			return
		}
		c.longPressFired = true
		surface := c.pressSurface
		c.mu.Unlock()

		c.emit(entities.Gesture{Type: entities.GestureLongPressStart, Surface: surface})
	})
}

func (c *Classifier) handleRelease(ev entities.TouchEvent) {
	c.mu.Lock()

	if !c.pressed {
		c.mu.Unlock()
		return
	}
	c.pressed = false
	if c.longPressTimer != nil {
		c.longPressTimer.Stop()
		c.longPressTimer = nil
	}
	surface := c.pressSurface

	if c.longPressFired {
		c.longPressFired = false
		c.mu.Unlock()
		c.emit(entities.Gesture{Type: entities.GestureLongPressEnd, Surface: surface})
		return
	}

	if surface != entities.SurfaceOutput {
		c.mu.Unlock()
		c.emit(entities.Gesture{Type: entities.GestureTap, Surface: surface})
		return
	}

	// Output-panel tap: hold it back until the repeat window closes so a
	// rapid tap burst can become the repeat pattern.
	c.pendingTaps++
	if c.pendingTaps >= c.cfg.RepeatTaps {
		c.pendingTaps = 0
		if c.tapTimer != nil {
			c.tapTimer.Stop()
			c.tapTimer = nil
		}
		c.mu.Unlock()
		c.emit(entities.Gesture{Type: entities.GestureRepeatPattern, Surface: entities.SurfaceOutput})
		return
	}

	if c.tapTimer != nil {
		c.tapTimer.Stop()
	}
	c.tapTimer = time.AfterFunc(c.cfg.RepeatWindow, c.flushPendingTaps)
	c.mu.Unlock()
}

// flushPendingTaps fires when the repeat window closes without completing
// the pattern. Any burst shorter than the pattern collapses into a single
// tap; one replay toggle per burst is what the panel behavior wants.
func (c *Classifier) flushPendingTaps() {
	c.mu.Lock()
	had := c.pendingTaps
	c.pendingTaps = 0
	c.tapTimer = nil
	c.mu.Unlock()

	if had > 0 {
		c.emit(entities.Gesture{Type: entities.GestureTap, Surface: entities.SurfaceOutput})
	}
}

// Close stops outstanding timers. Pending taps are dropped.
func (c *Classifier) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.longPressTimer != nil {
		c.longPressTimer.Stop()
		c.longPressTimer = nil
	}
	if c.tapTimer != nil {
		c.tapTimer.Stop()
		c.tapTimer = nil
	}
	c.pendingTaps = 0
	c.pressed = false
}
