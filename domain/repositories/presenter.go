package repositories

import "context"

// Presenter abstracts the device's visual output surfaces. Layout is owned
// by the device; the orchestrator only pushes text.
type Presenter interface {
	// ShowOutput replaces the output panel's text.
	ShowOutput(ctx context.Context, text string) error
	// Notify surfaces a transient user-visible notice.
	Notify(ctx context.Context, text string) error
}
