package entities

import "time"

// Surface identifies which touch surface an event landed on.
type Surface string

const (
	// SurfaceCapture is the full-screen camera view.
	SurfaceCapture Surface = "capture"
	// SurfaceOutput is the bottom output panel.
	SurfaceOutput Surface = "output"
)

// TouchKind is the raw phase of a touch reported by the device.
type TouchKind string

const (
	TouchPress   TouchKind = "press"
	TouchRelease TouchKind = "release"
)

// TouchEvent is a single raw touch phase as reported by the device runtime.
type TouchEvent struct {
	Surface Surface   `json:"surface"`
	Kind    TouchKind `json:"kind"`
	At      time.Time `json:"at"`
}

// GestureType is the closed set of gestures the classifier can emit.
// Exactly one gesture fires per physical input; a release that closes a
// long press never also produces a tap.
type GestureType string

const (
	// GestureTap is a short press-and-release.
	GestureTap GestureType = "tap"
	// GestureLongPressStart fires once the press has been held past the
	// long-press threshold.
	GestureLongPressStart GestureType = "long_press_start"
	// GestureLongPressEnd fires on release of a long press.
	GestureLongPressEnd GestureType = "long_press_end"
	// GestureRepeatPattern is the rapid-repeat tap pattern on the output
	// panel that triggers live recognition.
	GestureRepeatPattern GestureType = "repeat_pattern"
)

// Gesture is a classified input event ready for intent dispatch.
type Gesture struct {
	Type    GestureType `json:"type"`
	Surface Surface     `json:"surface"`
}
