package action

import (
	"context"
	"fmt"
	"os"
	"strings"

	"voxd/internal/clipboard"
	"voxd/internal/config"
	"voxd/internal/logging"
	"voxd/internal/types"
)

// textPlaceholder in an action's content is replaced with the (possibly
// stripped) transcription at execution time.
const textPlaceholder = "{{text}}"

// execute runs one resolved action for a session through the clipboard
// synchronization pipeline.
func (s *Selector) execute(sess types.Session, rec types.CompletionRecord, desc types.ActionDescriptor, text string, cfg *config.Config) {
	opts := s.resolveOptions(sess, desc, cfg)

	err := s.clip.SyncExecute(s.ctx, sess.ID, rec.Result, opts, func(ctx context.Context) error {
		return s.executeBody(ctx, sess.ID, desc, text, cfg)
	})
	if err != nil {
		// Launch failures are logged and the action marked failed; no
		// retry, and folder post-processing still proceeds.
		logging.Get(logging.CategoryAction).Error("session %s: action %q failed: %v", sess.ID, desc.Name, err)
		s.notifier.Notify("voxd", fmt.Sprintf("action %q failed: %v", desc.Name, err))
	}
}

// executeInsert handles auto-return: the transcription is emitted
// directly, bypassing action resolution, through the same pipeline.
func (s *Selector) executeInsert(sess types.Session, rec types.CompletionRecord, text string, cfg *config.Config) {
	opts := s.resolveOptions(sess, types.ActionDescriptor{}, cfg)

	err := s.clip.SyncExecute(s.ctx, sess.ID, rec.Result, opts, func(ctx context.Context) error {
		return s.insertText(ctx, sess.ID, text)
	})
	if err != nil {
		logging.Get(logging.CategoryAction).Error("session %s: auto-return failed: %v", sess.ID, err)
	}
}

// executeBody dispatches by kind. For externally-facing kinds the
// payload goes to the corresponding runner; an already-launched process
// is never cancelled by this core.
func (s *Selector) executeBody(ctx context.Context, sessionID string, desc types.ActionDescriptor, text string, cfg *config.Config) error {
	payload := strings.ReplaceAll(desc.Content, textPlaceholder, text)

	switch desc.Kind {
	case types.ActionInsertText:
		if payload == "" {
			payload = text
		}
		return s.insertText(ctx, sessionID, payload)

	case types.ActionOpenURL, types.ActionRunAutomation, types.ActionRunShellCommand, types.ActionRunScript:
		runner, ok := s.runners[desc.Kind]
		if !ok {
			return fmt.Errorf("no runner for kind %q", desc.Kind)
		}
		rctx, cancel := context.WithTimeout(ctx, cfg.GetRunnerTimeout())
		defer cancel()
		return runner.Run(rctx, payload)

	default:
		return fmt.Errorf("unknown action kind %q", desc.Kind)
	}
}

// insertText places text via the clipboard and a simulated paste. The
// write is recorded against the session so restore resolution can tell
// the daemon's writes from the dictation tool's.
func (s *Selector) insertText(ctx context.Context, sessionID, text string) error {
	if sessionID != "" {
		if err := s.clip.NoteWrite(sessionID, text); err != nil {
			return fmt.Errorf("clipboard write: %w", err)
		}
	} else if err := s.sim.WriteClipboard(text); err != nil {
		return fmt.Errorf("clipboard write: %w", err)
	}
	return s.sim.SimulatePaste(ctx, text)
}

// resolveOptions merges per-action overrides with global defaults.
func (s *Selector) resolveOptions(sess types.Session, desc types.ActionDescriptor, cfg *config.Config) clipboard.ExecOptions {
	opts := clipboard.ExecOptions{
		Delay:            cfg.GetActionDelay(),
		PressEscape:      cfg.Defaults.PressEscape,
		RestoreClipboard: cfg.Defaults.RestoreClipboard,
		SessionGone: func() bool {
			_, err := os.Stat(sess.Path)
			return err != nil
		},
	}
	if desc.Overrides.Delay != nil {
		opts.Delay = *desc.Overrides.Delay
	}
	if desc.Overrides.PressEscape != nil {
		opts.PressEscape = *desc.Overrides.PressEscape
	}
	if desc.Overrides.RestoreClipboard != nil {
		opts.RestoreClipboard = *desc.Overrides.RestoreClipboard
	}
	return opts
}
