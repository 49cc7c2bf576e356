// Package types provides shared type definitions used across voxd packages.
// This package exists to break import cycles between the watcher, clipboard,
// and action packages. Types here are foundational data structures with no
// complex dependencies.
package types

import (
	"time"
)

// SessionState tracks a recording session through its lifecycle.
type SessionState int

const (
	// SessionWatching means the session folder exists but no valid
	// completion signal has been observed yet.
	SessionWatching SessionState = iota
	// SessionSignaled means a non-empty result was observed and the
	// session has been handed to the action selector.
	SessionSignaled
	// SessionProcessed means the action decision ran (including "no
	// action") and the session will not be picked up again.
	SessionProcessed
)

func (s SessionState) String() string {
	switch s {
	case SessionWatching:
		return "watching"
	case SessionSignaled:
		return "signaled"
	case SessionProcessed:
		return "processed"
	default:
		return "unknown"
	}
}

// Session represents one recording cycle: a folder appearing under the
// watched base path. Owned exclusively by the session watcher.
type Session struct {
	ID        string
	Path      string
	State     SessionState
	CreatedAt time.Time
}

// FrontApp identifies the frontmost application at signal time.
type FrontApp struct {
	Name       string `json:"name"`
	Identifier string `json:"identifier"`
}

// CompletionRecord holds the parsed fields of a session's completion
// signal plus the synchronously captured front application. Immutable
// once captured for a given signal.
type CompletionRecord struct {
	Result        string    `json:"result"`
	RefinedResult string    `json:"refinedResult,omitempty"`
	ModeName      string    `json:"modeName,omitempty"`
	StartedAt     time.Time `json:"startedAt,omitempty"`
	FinishedAt    time.Time `json:"finishedAt,omitempty"`
	FrontApp      FrontApp  `json:"-"`
}

// EffectiveResult returns the refined transcription when present,
// falling back to the raw result.
func (r CompletionRecord) EffectiveResult() string {
	if r.RefinedResult != "" {
		return r.RefinedResult
	}
	return r.Result
}

// ClipboardSnapshot is one observed clipboard value. Content is nil when
// the clipboard was unreadable at sample time.
type ClipboardSnapshot struct {
	Content *string
	At      time.Time
}

// ActionKind enumerates the supported automated response kinds.
type ActionKind string

const (
	ActionInsertText      ActionKind = "insert_text"
	ActionOpenURL         ActionKind = "open_url"
	ActionRunAutomation   ActionKind = "run_automation"
	ActionRunShellCommand ActionKind = "run_shell"
	ActionRunScript       ActionKind = "run_script"
)

// KnownActionKinds lists every valid ActionKind for validation.
var KnownActionKinds = []ActionKind{
	ActionInsertText,
	ActionOpenURL,
	ActionRunAutomation,
	ActionRunShellCommand,
	ActionRunScript,
}

// Dimension is one trigger-matching axis: voice transcript, front
// application, or dictation mode.
type Dimension struct {
	Include []string `yaml:"include,omitempty" json:"include,omitempty"`
	Exclude []string `yaml:"exclude,omitempty" json:"exclude,omitempty"`
}

// Configured reports whether the dimension carries at least one pattern.
// An unconfigured dimension contributes nothing to rule evaluation.
func (d Dimension) Configured() bool {
	return len(d.Include) > 0 || len(d.Exclude) > 0
}

// TriggerLogic combines per-dimension results.
type TriggerLogic string

const (
	TriggerAND TriggerLogic = "and"
	TriggerOR  TriggerLogic = "or"
)

// TriggerRules is the declarative matching rule attached to an action.
type TriggerRules struct {
	Voice Dimension    `yaml:"voice,omitempty" json:"voice,omitempty"`
	App   Dimension    `yaml:"app,omitempty" json:"app,omitempty"`
	Mode  Dimension    `yaml:"mode,omitempty" json:"mode,omitempty"`
	Logic TriggerLogic `yaml:"logic,omitempty" json:"logic,omitempty"`
}

// ActionOverrides carries per-action settings that fall back to global
// defaults when nil.
type ActionOverrides struct {
	Delay            *time.Duration `yaml:"delay,omitempty" json:"delay,omitempty"`
	PressEscape      *bool          `yaml:"press_escape,omitempty" json:"press_escape,omitempty"`
	RestoreClipboard *bool          `yaml:"restore_clipboard,omitempty" json:"restore_clipboard,omitempty"`
	Icon             string         `yaml:"icon,omitempty" json:"icon,omitempty"`
	PostMove         string         `yaml:"post_move,omitempty" json:"post_move,omitempty"`
}

// ActionDescriptor is one configured automated response. Name is unique
// across all actions regardless of kind.
type ActionDescriptor struct {
	Name      string          `yaml:"name" json:"name"`
	Kind      ActionKind      `yaml:"kind" json:"kind"`
	Content   string          `yaml:"content" json:"content"`
	Trigger   TriggerRules    `yaml:"trigger,omitempty" json:"trigger,omitempty"`
	Overrides ActionOverrides `yaml:"overrides,omitempty" json:"overrides,omitempty"`
}

// PostMove special values understood by the history mover. Any other
// non-empty value is a destination directory.
const (
	PostMoveDelete = "delete"
	PostMoveLeave  = "leave"
)
