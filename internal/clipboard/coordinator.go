// Package clipboard implements the coordinator that shares the OS
// clipboard between this daemon and the dictation tool. Two monitors run
// for the daemon's lifetime: a low-frequency global sampler feeding a
// rolling history, and a high-frequency per-session tracker recording
// every change while a session is live. At execution time the
// coordinator runs the synchronization dance that keeps the two
// uncoordinated writers from clobbering each other.
package clipboard

import (
	"context"
	"sync"
	"time"

	"voxd/internal/config"
	"voxd/internal/logging"
	"voxd/internal/types"
)

// Coordinator owns the global history and the set of active clipboard
// sessions. All mutation funnels through its mutex; callers never see
// the lock.
type Coordinator struct {
	sim  types.InputSimulator
	cfgs *config.Store

	mu         sync.RWMutex
	history    []types.ClipboardSnapshot
	lastSample *string
	sessions   map[string]*Session

	stopCh  chan struct{}
	doneCh  chan struct{}
	running bool
	runMu   sync.Mutex
}

// New creates a coordinator. Start must be called before sessions are
// begun.
func New(sim types.InputSimulator, cfgs *config.Store) *Coordinator {
	return &Coordinator{
		sim:      sim,
		cfgs:     cfgs,
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start launches the global sampler. Non-blocking.
func (c *Coordinator) Start() {
	c.runMu.Lock()
	defer c.runMu.Unlock()
	if c.running {
		return
	}
	c.running = true
	go c.sampleLoop()
}

// Stop halts the sampler and every active session tracker.
func (c *Coordinator) Stop() {
	c.runMu.Lock()
	if !c.running {
		c.runMu.Unlock()
		return
	}
	c.running = false
	c.runMu.Unlock()

	close(c.stopCh)
	<-c.doneCh

	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()
	for _, s := range sessions {
		s.stop()
	}
}

// sampleLoop maintains the bounded rolling history. A buffer window of
// zero disables the history entirely.
func (c *Coordinator) sampleLoop() {
	defer close(c.doneCh)

	interval := c.cfgs.Snapshot().GetGlobalSample()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stopCh:
			return
		case <-ticker.C:
			cfg := c.cfgs.Snapshot()
			if cfg.GetBufferWindow() == 0 {
				continue
			}
			c.sample(cfg)
		}
	}
}

func (c *Coordinator) sample(cfg *config.Config) {
	content := c.sim.ReadClipboard()

	c.mu.Lock()
	defer c.mu.Unlock()

	changed := !equalPtr(content, c.lastSample)
	c.lastSample = content
	if changed {
		c.history = append(c.history, types.ClipboardSnapshot{Content: content, At: time.Now()})
	}
	c.pruneHistoryLocked(cfg)
}

func (c *Coordinator) pruneHistoryLocked(cfg *config.Config) {
	maxEntries := cfg.Bounds.MaxGlobalHistory
	if maxEntries <= 0 {
		maxEntries = 100
	}
	if len(c.history) > maxEntries {
		c.history = c.history[len(c.history)-maxEntries:]
	}
	window := cfg.GetBufferWindow()
	if window <= 0 {
		return
	}
	cut := time.Now().Add(-window)
	i := 0
	for i < len(c.history) && c.history[i].At.Before(cut) {
		i++
	}
	if i > 0 {
		c.history = c.history[i:]
	}
}

// recentBefore returns the newest history entry recorded before t and
// within the buffer window of t.
func (c *Coordinator) recentBefore(t time.Time, window time.Duration) *string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for i := len(c.history) - 1; i >= 0; i-- {
		h := c.history[i]
		if !h.At.Before(t) {
			continue
		}
		if window > 0 && t.Sub(h.At) > window {
			return nil
		}
		return h.Content
	}
	return nil
}

// HistoryLen returns the current global history length.
func (c *Coordinator) HistoryLen() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.history)
}

// Begin creates the clipboard session for a newly observed recording.
// When the completion signal was already fully valid at observation
// time no further clipboard writes are expected from the tool, so the
// intensive tracker is skipped.
func (c *Coordinator) Begin(sessionID string, signalAlreadyValid bool) *Session {
	cfg := c.cfgs.Snapshot()
	now := time.Now()

	s := newSession(sessionID, cfg.Bounds.MaxSessionChanges)
	s.Original = c.sim.ReadClipboard()
	s.SelectedAtStart = c.sim.ReadSelectedText()
	s.PreSession = c.recentBefore(now, cfg.GetBufferWindow())

	c.mu.Lock()
	if old, ok := c.sessions[sessionID]; ok {
		c.mu.Unlock()
		return old
	}
	c.sessions[sessionID] = s
	c.mu.Unlock()

	if !signalAlreadyValid {
		c.startTracker(s, cfg.GetIntensivePoll())
	}

	logging.Clipboard("session %s: begin (tracking=%v)", sessionID, !signalAlreadyValid)
	return s
}

// Get returns the clipboard session for an id, if active.
func (c *Coordinator) Get(sessionID string) (*Session, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s, ok := c.sessions[sessionID]
	return s, ok
}

// End tears down a clipboard session.
func (c *Coordinator) End(sessionID string) {
	c.mu.Lock()
	s, ok := c.sessions[sessionID]
	delete(c.sessions, sessionID)
	c.mu.Unlock()
	if ok {
		s.stop()
		logging.Clipboard("session %s: end", sessionID)
	}
}

// startTracker launches the high-frequency per-session poll.
func (c *Coordinator) startTracker(s *Session, interval time.Duration) {
	s.mu.Lock()
	if s.trackerStarted || !s.active {
		s.mu.Unlock()
		return
	}
	s.trackerStarted = true
	s.trackerStop = make(chan struct{})
	s.trackerDone = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.trackerDone)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		last := c.sim.ReadClipboard()
		for {
			select {
			case <-s.trackerStop:
				return
			case <-ticker.C:
				cur := c.sim.ReadClipboard()
				if equalPtr(cur, last) {
					continue
				}
				last = cur
				s.recordChange(types.ClipboardSnapshot{Content: cur, At: time.Now()})
				if s.Executing() {
					logging.Clipboard("session %s: change during execution", s.SessionID)
				}
			}
		}
	}()
}

// ExecOptions resolves the per-action overrides for one execution.
type ExecOptions struct {
	Delay            time.Duration
	PressEscape      bool
	RestoreClipboard bool
	// SessionGone reports whether the session folder disappeared; when
	// it returns true mid-sync the restore step is skipped outright.
	SessionGone func() bool
}

// SyncExecute runs the clipboard synchronization dance around an action
// body:
//
//  1. wait (bounded) for the dictation tool's own clipboard write,
//  2. apply the configured delay,
//  3. optionally dismiss the tool's overlay,
//  4. run the body,
//  5. restore the clipboard per the session's change log.
//
// The initial wait is never shortened or skipped by the action delay.
// Clipboard errors degrade to best effort; nothing here blocks beyond
// the configured bounds.
func (c *Coordinator) SyncExecute(ctx context.Context, sessionID, result string, opts ExecOptions, body func(context.Context) error) error {
	cfg := c.cfgs.Snapshot()
	log := logging.Get(logging.CategoryClipboard)

	s, ok := c.Get(sessionID)
	if !ok {
		// No clipboard session (already torn down); still run the body.
		s = nil
	}

	if s != nil {
		s.SetExecuting(true)
	}

	// Step 1: give the tool up to maxWait to land the result.
	c.awaitResult(result, cfg.GetMaxClipboardWait(), cfg.GetIntensivePoll())

	// Step 2: the action's own delay.
	if opts.Delay > 0 {
		select {
		case <-time.After(opts.Delay):
		case <-ctx.Done():
			if s != nil {
				s.SetExecuting(false)
			}
			return ctx.Err()
		}
	}

	// Step 3: dismiss the overlay unless focus sits in a text input,
	// where an escape keystroke could destroy user state.
	if opts.PressEscape && !c.sim.FocusIsTextInput() {
		if err := c.sim.SimulateDismiss(ctx); err != nil {
			log.Warn("session %s: dismiss failed: %v", sessionID, err)
		}
	}

	// Step 4: the action body.
	bodyErr := body(ctx)

	// Step 5: restore.
	if s != nil {
		s.SetExecuting(false)
		if opts.RestoreClipboard {
			if opts.SessionGone != nil && opts.SessionGone() {
				log.Info("session %s: folder gone, skipping restore", sessionID)
			} else {
				c.restore(s, result)
			}
		}
	}

	// Step 6: teardown.
	c.End(sessionID)

	return bodyErr
}

// NoteWrite records a clipboard value the daemon itself wrote for a
// session, and performs the write.
func (c *Coordinator) NoteWrite(sessionID, text string) error {
	if s, ok := c.Get(sessionID); ok {
		s.noteOwnWrite(text)
	}
	return c.sim.WriteClipboard(text)
}

func (c *Coordinator) awaitResult(result string, maxWait, poll time.Duration) {
	if maxWait <= 0 {
		return
	}
	deadline := time.Now().Add(maxWait)
	for {
		if cur := c.sim.ReadClipboard(); cur != nil && *cur == result {
			return
		}
		if time.Now().After(deadline) {
			return
		}
		time.Sleep(poll)
	}
}

func (c *Coordinator) restore(s *Session, result string) {
	log := logging.Get(logging.CategoryClipboard)
	value := s.RestoreValue(result)
	if value == nil {
		log.Debug("session %s: nothing to restore", s.SessionID)
		return
	}
	if cur := c.sim.ReadClipboard(); cur != nil && *cur == *value {
		return
	}
	if err := c.sim.WriteClipboard(*value); err != nil {
		log.Warn("session %s: restore failed: %v", s.SessionID, err)
	}
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
