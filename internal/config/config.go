package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"voxd/internal/types"
)

// Config holds all voxd configuration.
type Config struct {
	// BasePath is the directory the dictation tool writes into.
	// Sessions appear under BasePath/recordings/<session-id>/.
	BasePath string `yaml:"base_path"`

	// Timing knobs. These are empirically tuned against the dictation
	// tool's own clipboard timing and may need retuning per platform,
	// so they are configuration rather than constants.
	Timing TimingConfig `yaml:"timing"`

	// Defaults applied when an action carries no override.
	Defaults DefaultsConfig `yaml:"defaults"`

	// Bounds keep the long-running daemon's memory flat.
	Bounds BoundsConfig `yaml:"bounds"`

	// Actions is the full set of configured automated responses.
	Actions []types.ActionDescriptor `yaml:"actions"`

	// Simulator configures the platform input-simulation commands.
	Simulator SimulatorConfig `yaml:"simulator"`

	// Logging configures log output.
	Logging LoggingConfig `yaml:"logging"`
}

// TimingConfig holds every timing constant as an overridable duration
// string. A value of "0" disables the knob where the field says so.
type TimingConfig struct {
	MaxClipboardWait string `yaml:"max_clipboard_wait"` // cap on the pre-action clipboard poll
	IntensivePoll    string `yaml:"intensive_poll"`     // per-session clipboard poll interval
	GlobalSample     string `yaml:"global_sample"`      // rolling-history sample interval
	BufferWindow     string `yaml:"buffer_window"`      // rolling-history age bound; 0 disables the history
	ScheduledTimeout string `yaml:"scheduled_timeout"`  // one-shot arm timeout; 0 means never expire
	ActionDelay      string `yaml:"action_delay"`       // default pre-action delay
	RunnerTimeout    string `yaml:"runner_timeout"`     // external runner launch timeout
}

// DefaultsConfig holds global fallbacks for per-action overrides.
type DefaultsConfig struct {
	DefaultAction    string `yaml:"default_action"`    // run when nothing else applies; empty disables
	RestoreClipboard bool   `yaml:"restore_clipboard"` // restore the clipboard after actions
	PressEscape      bool   `yaml:"press_escape"`      // dismiss the dictation overlay before acting
	PostMove         string `yaml:"post_move"`         // "delete", "leave", or a destination directory
}

// BoundsConfig bounds the coordinator's in-memory structures.
type BoundsConfig struct {
	MaxSessionChanges int `yaml:"max_session_changes"`
	MaxGlobalHistory  int `yaml:"max_global_history"`
}

// SimulatorConfig names the platform commands used for input simulation.
// Empty values fall back to platform detection in the simulator package.
type SimulatorConfig struct {
	PasteCommand     string `yaml:"paste_command"`
	KeystrokeCommand string `yaml:"keystroke_command"`
	DismissCommand   string `yaml:"dismiss_command"`
	FrontAppCommand  string `yaml:"front_app_command"`
	FocusCommand     string `yaml:"focus_command"`
	URLOpener        string `yaml:"url_opener"`
	AutomationBridge string `yaml:"automation_bridge"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level   string `yaml:"level"` // debug, info, warn, error
	File    string `yaml:"file"`
	Console bool   `yaml:"console"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		BasePath: filepath.Join(home, ".voxd"),
		Timing: TimingConfig{
			MaxClipboardWait: "100ms",
			IntensivePoll:    "10ms",
			GlobalSample:     "500ms",
			BufferWindow:     "5s",
			ScheduledTimeout: "5s",
			ActionDelay:      "0s",
			RunnerTimeout:    "30s",
		},
		Defaults: DefaultsConfig{
			RestoreClipboard: true,
			PressEscape:      true,
			PostMove:         types.PostMoveLeave,
		},
		Bounds: BoundsConfig{
			MaxSessionChanges: 50,
			MaxGlobalHistory:  100,
		},
		Logging: LoggingConfig{
			Level:   "info",
			Console: true,
		},
	}
}

// Load loads configuration from a YAML file. A missing file yields the
// defaults; a malformed file is an error so a reloader can keep the
// previous snapshot.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save writes the configuration to a YAML file.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() {
	if base := os.Getenv("VOXD_BASE"); base != "" {
		c.BasePath = base
	}
	if level := os.Getenv("VOXD_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
}

// RecordingsPath returns the watched directory for session folders.
func (c *Config) RecordingsPath() string {
	return filepath.Join(c.BasePath, "recordings")
}

// SocketPath returns the control socket location.
func (c *Config) SocketPath() string {
	return filepath.Join(c.BasePath, "voxd.sock")
}

// DedupPath returns the processed-session database location.
func (c *Config) DedupPath() string {
	return filepath.Join(c.BasePath, "processed.db")
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

// GetMaxClipboardWait returns the cap on the pre-action clipboard poll.
func (c *Config) GetMaxClipboardWait() time.Duration {
	return parseDuration(c.Timing.MaxClipboardWait, 100*time.Millisecond)
}

// GetIntensivePoll returns the per-session clipboard poll interval.
// Both poll intervals feed tickers, so a non-positive configured value
// falls back to the default rather than reaching time.NewTicker.
func (c *Config) GetIntensivePoll() time.Duration {
	if d := parseDuration(c.Timing.IntensivePoll, 10*time.Millisecond); d > 0 {
		return d
	}
	return 10 * time.Millisecond
}

// GetGlobalSample returns the rolling-history sample interval. Use
// BufferWindow, not this knob, to disable the global history.
func (c *Config) GetGlobalSample() time.Duration {
	if d := parseDuration(c.Timing.GlobalSample, 500*time.Millisecond); d > 0 {
		return d
	}
	return 500 * time.Millisecond
}

// GetBufferWindow returns the rolling-history age bound. Zero disables
// the global history entirely.
func (c *Config) GetBufferWindow() time.Duration {
	return parseDuration(c.Timing.BufferWindow, 5*time.Second)
}

// GetScheduledTimeout returns the one-shot arm timeout. Zero means an
// armed auto-return or scheduled action never expires.
func (c *Config) GetScheduledTimeout() time.Duration {
	return parseDuration(c.Timing.ScheduledTimeout, 5*time.Second)
}

// GetActionDelay returns the default pre-action delay.
func (c *Config) GetActionDelay() time.Duration {
	return parseDuration(c.Timing.ActionDelay, 0)
}

// GetRunnerTimeout returns the external runner launch timeout.
func (c *Config) GetRunnerTimeout() time.Duration {
	return parseDuration(c.Timing.RunnerTimeout, 30*time.Second)
}

// ActionByName returns the descriptor with the given name.
func (c *Config) ActionByName(name string) (types.ActionDescriptor, bool) {
	for _, a := range c.Actions {
		if a.Name == name {
			return a, true
		}
	}
	return types.ActionDescriptor{}, false
}

// SortedActions returns the actions ordered by name ascending. Trigger
// selection uses this order as its tie-break.
func (c *Config) SortedActions() []types.ActionDescriptor {
	out := make([]types.ActionDescriptor, len(c.Actions))
	copy(out, c.Actions)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// rawPattern matches the raw-regex delimiter form /.../ used in trigger
// include and exclude entries.
var rawPattern = regexp.MustCompile(`^/.*/$`)

// Validate checks the configuration for inconsistencies. The first
// error is returned; callers treat validation failure as a reason to
// keep the previous snapshot, never as fatal.
func (c *Config) Validate() error {
	if c.BasePath == "" {
		return fmt.Errorf("base_path must be set")
	}

	seen := make(map[string]bool, len(c.Actions))
	for _, a := range c.Actions {
		if a.Name == "" {
			return fmt.Errorf("action with empty name")
		}
		if seen[a.Name] {
			return fmt.Errorf("duplicate action name %q", a.Name)
		}
		seen[a.Name] = true

		valid := false
		for _, k := range types.KnownActionKinds {
			if a.Kind == k {
				valid = true
				break
			}
		}
		if !valid {
			return fmt.Errorf("action %q has unknown kind %q", a.Name, a.Kind)
		}

		if err := validateRules(a.Name, a.Trigger); err != nil {
			return err
		}
	}

	// A missing default action is a ConfigurationInconsistency surfaced
	// at selection time, not here: the config may legitimately be saved
	// mid-edit and the daemon must keep running.
	return nil
}

func validateRules(action string, rules types.TriggerRules) error {
	if rules.Logic != "" && rules.Logic != types.TriggerAND && rules.Logic != types.TriggerOR {
		return fmt.Errorf("action %q has unknown trigger logic %q", action, rules.Logic)
	}
	for _, dim := range []types.Dimension{rules.Voice, rules.App, rules.Mode} {
		for _, p := range append(append([]string{}, dim.Include...), dim.Exclude...) {
			if rawPattern.MatchString(p) && len(p) > 1 {
				expr := strings.TrimSuffix(strings.TrimPrefix(p, "/"), "/")
				if _, err := regexp.Compile(expr); err != nil {
					return fmt.Errorf("action %q has invalid pattern %q: %v", action, p, err)
				}
			}
		}
	}
	return nil
}
