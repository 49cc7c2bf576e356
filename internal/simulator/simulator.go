// Package simulator implements the input-simulation boundary: clipboard
// access, paste/keystroke injection, overlay dismissal, and
// front-application queries. The clipboard goes through the system
// clipboard library; everything keyboard-shaped shells out to a
// configurable platform command so the daemon core stays portable.
package simulator

import (
	"bytes"
	"context"
	"os/exec"
	"strings"
	"time"

	"github.com/atotto/clipboard"

	"voxd/internal/config"
	"voxd/internal/logging"
	"voxd/internal/types"
)

// ExecSimulator is the production InputSimulator. Each simulation verb
// runs the configured command with the text (when any) on stdin.
type ExecSimulator struct {
	cfg     config.SimulatorConfig
	timeout time.Duration
}

// New creates a simulator from config; empty command fields fall back
// to the platform defaults.
func New(cfg config.SimulatorConfig) *ExecSimulator {
	defaults := platformDefaults()
	if cfg.PasteCommand == "" {
		cfg.PasteCommand = defaults.PasteCommand
	}
	if cfg.KeystrokeCommand == "" {
		cfg.KeystrokeCommand = defaults.KeystrokeCommand
	}
	if cfg.DismissCommand == "" {
		cfg.DismissCommand = defaults.DismissCommand
	}
	if cfg.FrontAppCommand == "" {
		cfg.FrontAppCommand = defaults.FrontAppCommand
	}
	if cfg.FocusCommand == "" {
		cfg.FocusCommand = defaults.FocusCommand
	}
	return &ExecSimulator{cfg: cfg, timeout: 5 * time.Second}
}

// ReadClipboard returns the current clipboard text, or nil when the
// clipboard is unreadable. An unreadable clipboard is routine on
// headless systems and never an error for callers.
func (e *ExecSimulator) ReadClipboard() *string {
	s, err := clipboard.ReadAll()
	if err != nil {
		return nil
	}
	return &s
}

// WriteClipboard replaces the clipboard content.
func (e *ExecSimulator) WriteClipboard(text string) error {
	return clipboard.WriteAll(text)
}

// ReadSelectedText queries the front application's selection. Not every
// platform exposes this; nil means unknown.
func (e *ExecSimulator) ReadSelectedText() *string {
	// Selection queries need accessibility APIs that have no portable
	// command-line form; platforms without one report nothing.
	return nil
}

// SimulatePaste injects a paste of text into the front application.
func (e *ExecSimulator) SimulatePaste(ctx context.Context, text string) error {
	return e.runVerb(ctx, e.cfg.PasteCommand, text)
}

// SimulateKeystrokes types text into the front application.
func (e *ExecSimulator) SimulateKeystrokes(ctx context.Context, text string) error {
	return e.runVerb(ctx, e.cfg.KeystrokeCommand, text)
}

// SimulateDismiss sends the dismiss/escape signal to the foreground UI.
func (e *ExecSimulator) SimulateDismiss(ctx context.Context) error {
	return e.runVerb(ctx, e.cfg.DismissCommand, "")
}

// FocusIsTextInput reports whether the focused element accepts text.
// The configured command answers with its exit status: zero means a
// text input. With no command configured we assume a text input, the
// conservative choice that suppresses the dismiss.
func (e *ExecSimulator) FocusIsTextInput() bool {
	if e.cfg.FocusCommand == "" {
		return true
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, "sh", "-c", e.cfg.FocusCommand)
	return cmd.Run() == nil
}

// FrontApplication returns the frontmost application. The command
// prints "name<TAB>identifier" on one line.
func (e *ExecSimulator) FrontApplication() types.FrontApp {
	if e.cfg.FrontAppCommand == "" {
		return types.FrontApp{}
	}
	ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
	defer cancel()

	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, "sh", "-c", e.cfg.FrontAppCommand)
	cmd.Stdout = &out
	if err := cmd.Run(); err != nil {
		logging.Get(logging.CategoryRunner).Debug("front-app query failed: %v", err)
		return types.FrontApp{}
	}

	line := strings.TrimSpace(out.String())
	parts := strings.SplitN(line, "\t", 2)
	app := types.FrontApp{Name: parts[0]}
	if len(parts) == 2 {
		app.Identifier = parts[1]
	}
	return app
}

func (e *ExecSimulator) runVerb(ctx context.Context, command, text string) error {
	if command == "" {
		return nil
	}
	vctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(vctx, "sh", "-c", command)
	if text != "" {
		cmd.Stdin = strings.NewReader(text)
	}
	return cmd.Run()
}
