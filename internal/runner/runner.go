// Package runner implements the per-kind action runners. A runner
// receives a fully resolved payload string and executes it; it reports
// success or failure only, and an already-launched process runs to
// completion unsupervised.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"voxd/internal/config"
	"voxd/internal/logging"
	"voxd/internal/types"
)

// Shell runs the payload through the system shell.
type Shell struct{}

func (Shell) Run(ctx context.Context, payload string) error {
	return runLogged(ctx, "sh", "-c", payload)
}

// Script executes the payload as a script path with optional arguments.
type Script struct{}

func (Script) Run(ctx context.Context, payload string) error {
	fields := strings.Fields(payload)
	if len(fields) == 0 {
		return fmt.Errorf("empty script payload")
	}
	return runLogged(ctx, fields[0], fields[1:]...)
}

// URL opens the payload with the platform opener.
type URL struct {
	Opener string
}

func (u URL) Run(ctx context.Context, payload string) error {
	opener := u.Opener
	if opener == "" {
		opener = "xdg-open"
	}
	return runLogged(ctx, opener, payload)
}

// Automation hands the payload to the configured automation bridge
// (osascript on macOS, a shell elsewhere).
type Automation struct {
	Bridge string
}

func (a Automation) Run(ctx context.Context, payload string) error {
	bridge := a.Bridge
	if bridge == "" {
		return fmt.Errorf("no automation bridge configured")
	}
	cmd := exec.CommandContext(ctx, bridge)
	cmd.Stdin = strings.NewReader(payload)
	return finish(cmd)
}

// ForConfig builds the runner set from the simulator configuration.
func ForConfig(sim config.SimulatorConfig) map[types.ActionKind]types.ActionRunner {
	return map[types.ActionKind]types.ActionRunner{
		types.ActionRunShellCommand: Shell{},
		types.ActionRunScript:       Script{},
		types.ActionOpenURL:         URL{Opener: sim.URLOpener},
		types.ActionRunAutomation:   Automation{Bridge: sim.AutomationBridge},
	}
}

func runLogged(ctx context.Context, bin string, args ...string) error {
	return finish(exec.CommandContext(ctx, bin, args...))
}

func finish(cmd *exec.Cmd) error {
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg != "" {
			logging.Get(logging.CategoryRunner).Warn("runner stderr: %s", msg)
		}
		return fmt.Errorf("runner %s: %w", cmd.Path, err)
	}
	return nil
}
