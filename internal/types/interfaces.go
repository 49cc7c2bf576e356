package types

import (
	"context"
)

// InputSimulator abstracts clipboard and keyboard access. The dictation
// tool writes the clipboard through the same OS facility without
// coordination, so every read may race an external write.
type InputSimulator interface {
	// ReadClipboard returns the current clipboard text, or nil when the
	// clipboard is empty or unreadable.
	ReadClipboard() *string
	WriteClipboard(text string) error
	// ReadSelectedText returns the currently selected text in the front
	// application, or nil when nothing is selected or the query failed.
	ReadSelectedText() *string
	SimulatePaste(ctx context.Context, text string) error
	SimulateKeystrokes(ctx context.Context, text string) error
	// SimulateDismiss sends a dismiss/escape signal to the foreground UI.
	SimulateDismiss(ctx context.Context) error
	// FocusIsTextInput reports whether the focused element accepts text.
	// A dismiss signal into a text field is destructive, so callers skip
	// the dismiss when this returns true.
	FocusIsTextInput() bool
	// FrontApplication returns the frontmost application at call time.
	FrontApplication() FrontApp
}

// ActionRunner executes one fully resolved action payload. Runners report
// success or failure only; nothing streams back into the core, and an
// already-launched process is never cancelled.
type ActionRunner interface {
	Run(ctx context.Context, payload string) error
}

// DedupStore persists the set of already-processed session paths across
// daemon restarts.
type DedupStore interface {
	Contains(path string) bool
	MarkProcessed(path string) error
	Evict(path string) error
}

// Notifier surfaces user-facing conditions (configuration problems,
// action failures) to an external delivery mechanism.
type Notifier interface {
	Notify(title, message string)
}

// HistoryMover applies the post-action folder disposition.
type HistoryMover interface {
	// Apply moves sessionPath according to behavior: PostMoveDelete
	// removes the folder, PostMoveLeave keeps it in place, any other
	// non-empty value is a destination directory.
	Apply(sessionPath, behavior string) error
}
