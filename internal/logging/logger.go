// Package logging provides categorized structured logging for voxd.
// Each subsystem logs through a named zap child logger so log lines can
// be filtered per category. Before Initialize is called every logger is
// a silent no-op, which keeps tests quiet by default.
package logging

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Category represents a log category/subsystem.
type Category string

const (
	CategoryBoot      Category = "boot"      // startup and wiring
	CategoryWatcher   Category = "watcher"   // session and completion watchers
	CategoryClipboard Category = "clipboard" // clipboard coordinator
	CategoryTrigger   Category = "trigger"   // trigger evaluation
	CategoryAction    Category = "action"    // priority selection and execution
	CategoryStore     Category = "store"     // dedup store
	CategoryControl   Category = "control"   // control socket
	CategoryRunner    Category = "runner"    // external action runners
	CategoryConfig    Category = "config"    // configuration loading and reload
)

// Options configures the logging sinks.
type Options struct {
	Level   string // debug, info, warn, error (default info)
	File    string // optional log file path; empty means stderr only
	Console bool   // also log to stderr when a file is set
}

var (
	mu      sync.RWMutex
	root    *zap.SugaredLogger
	loggers = make(map[Category]*Logger)
)

// Logger is a category-scoped logger with printf-style methods matching
// how call sites format messages throughout the daemon.
type Logger struct {
	s *zap.SugaredLogger
}

func (l *Logger) Debug(format string, args ...interface{}) {
	if l.s != nil {
		l.s.Debugf(format, args...)
	}
}

func (l *Logger) Info(format string, args ...interface{}) {
	if l.s != nil {
		l.s.Infof(format, args...)
	}
}

func (l *Logger) Warn(format string, args ...interface{}) {
	if l.s != nil {
		l.s.Warnf(format, args...)
	}
}

func (l *Logger) Error(format string, args ...interface{}) {
	if l.s != nil {
		l.s.Errorf(format, args...)
	}
}

// Initialize sets up the zap core. Safe to call once at startup; later
// Get calls return children of the configured root.
func Initialize(opts Options) error {
	level := zapcore.InfoLevel
	if opts.Level != "" {
		if err := level.Set(opts.Level); err != nil {
			return fmt.Errorf("invalid log level %q: %w", opts.Level, err)
		}
	}

	encCfg := zap.NewProductionEncoderConfig()
	encCfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var cores []zapcore.Core
	if opts.File != "" {
		if err := os.MkdirAll(filepath.Dir(opts.File), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encCfg), zapcore.AddSync(f), level))
	}
	if opts.File == "" || opts.Console {
		consoleCfg := zap.NewDevelopmentEncoderConfig()
		consoleCfg.EncodeTime = zapcore.ISO8601TimeEncoder
		cores = append(cores, zapcore.NewCore(zapcore.NewConsoleEncoder(consoleCfg), zapcore.AddSync(os.Stderr), level))
	}

	mu.Lock()
	defer mu.Unlock()
	root = zap.New(zapcore.NewTee(cores...)).Sugar()
	loggers = make(map[Category]*Logger)
	return nil
}

// Get returns the logger for a category, creating it on first use.
func Get(cat Category) *Logger {
	mu.RLock()
	if l, ok := loggers[cat]; ok {
		mu.RUnlock()
		return l
	}
	mu.RUnlock()

	mu.Lock()
	defer mu.Unlock()
	if l, ok := loggers[cat]; ok {
		return l
	}
	l := &Logger{}
	if root != nil {
		l.s = root.Named(string(cat))
	}
	loggers[cat] = l
	return l
}

// Sync flushes buffered log entries. Called on shutdown.
func Sync() {
	mu.RLock()
	defer mu.RUnlock()
	if root != nil {
		_ = root.Sync()
	}
}

// Convenience helpers for the chattiest categories.

func Watcher(format string, args ...interface{})   { Get(CategoryWatcher).Info(format, args...) }
func Clipboard(format string, args ...interface{}) { Get(CategoryClipboard).Debug(format, args...) }
func Action(format string, args ...interface{})    { Get(CategoryAction).Info(format, args...) }
