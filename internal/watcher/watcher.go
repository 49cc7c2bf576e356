// Package watcher detects recording sessions appearing under the
// watched base path and drives each one through its lifecycle:
// Watching -> Signaled -> Processed, with an implicit Abandoned when the
// folder disappears. The session watcher owns session state exclusively;
// per-session completion watchers and the clipboard coordinator are
// started and cancelled from here.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"voxd/internal/clipboard"
	"voxd/internal/config"
	"voxd/internal/logging"
	"voxd/internal/types"
)

// Sink receives session lifecycle notifications. Implemented by the
// action priority selector.
type Sink interface {
	// SessionObserved fires when a new session folder is detected,
	// before any signal is valid. Used for supersession of armed
	// one-shot state.
	SessionObserved(sessionID string)
	// SessionSignaled fires exactly once per session, on the session's
	// own watcher goroutine, when a valid completion signal appears.
	SessionSignaled(session types.Session, rec types.CompletionRecord)
	// SessionAborted fires when a session folder (or its tracking) is
	// torn down without the action having run.
	SessionAborted(sessionID string)
}

type tracked struct {
	session *types.Session
	cw      *CompletionWatcher
}

// SessionWatcher is the top-level filesystem watcher.
type SessionWatcher struct {
	cfgs  *config.Store
	dedup types.DedupStore
	clip  *clipboard.Coordinator
	sim   types.InputSimulator
	sink  Sink

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu       sync.Mutex
	running  bool
	sessions map[string]*tracked

	stats Stats
}

// Stats tracks watcher activity for tests and debugging.
type Stats struct {
	SessionsAppeared int
	SessionsRemoved  int
	SessionsSignaled int
	SessionsDone     int
	ScanErrors       int
}

// New creates the session watcher.
func New(cfgs *config.Store, dedup types.DedupStore, clip *clipboard.Coordinator, sim types.InputSimulator, sink Sink) (*SessionWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &SessionWatcher{
		cfgs:     cfgs,
		dedup:    dedup,
		clip:     clip,
		sim:      sim,
		sink:     sink,
		watcher:  w,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		sessions: make(map[string]*tracked),
	}, nil
}

// Start performs the initial scan and begins watching. Non-blocking.
func (sw *SessionWatcher) Start() error {
	sw.mu.Lock()
	if sw.running {
		sw.mu.Unlock()
		return nil
	}
	sw.running = true
	sw.mu.Unlock()

	dir := sw.cfgs.Snapshot().RecordingsPath()
	if err := os.MkdirAll(dir, 0755); err != nil {
		logging.Get(logging.CategoryWatcher).Warn("create recordings dir: %v (continuing)", err)
	}
	if err := sw.watcher.Add(dir); err != nil {
		logging.Get(logging.CategoryWatcher).Warn("initial watch failed: %v", err)
	} else {
		logging.Watcher("watching %s", dir)
	}

	sw.InitialScan()

	go sw.run()
	return nil
}

// Stop cancels everything: the directory watch and every per-session
// completion watcher.
func (sw *SessionWatcher) Stop() {
	sw.mu.Lock()
	if !sw.running {
		sw.mu.Unlock()
		return
	}
	sw.running = false
	sw.mu.Unlock()

	close(sw.stopCh)
	<-sw.doneCh
	if err := sw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatcher).Error("close: %v", err)
	}

	sw.mu.Lock()
	ts := make([]*tracked, 0, len(sw.sessions))
	for _, t := range sw.sessions {
		ts = append(ts, t)
	}
	sw.sessions = make(map[string]*tracked)
	sw.mu.Unlock()
	for _, t := range ts {
		if t.cw != nil {
			t.cw.Stop()
		}
	}
}

// InitialScan marks the newest pre-existing session folder as processed
// without executing anything, so a daemon restart never replays the
// last recording. Idempotent: re-running with no folder changes is a
// no-op.
func (sw *SessionWatcher) InitialScan() {
	dir := sw.cfgs.Snapshot().RecordingsPath()
	entries, err := os.ReadDir(dir)
	if err != nil {
		logging.Get(logging.CategoryWatcher).Warn("initial scan: %v", err)
		sw.mu.Lock()
		sw.stats.ScanErrors++
		sw.mu.Unlock()
		return
	}

	var newest string
	var newestMod time.Time
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest = e.Name()
			newestMod = info.ModTime()
		}
	}
	if newest == "" {
		return
	}

	path := filepath.Join(dir, newest)
	if sw.dedup.Contains(path) {
		return
	}
	if err := sw.dedup.MarkProcessed(path); err != nil {
		logging.Get(logging.CategoryWatcher).Warn("initial scan: mark %s: %v", path, err)
		return
	}
	logging.Watcher("startup: marked newest existing session %s as processed", newest)
}

func (sw *SessionWatcher) run() {
	defer close(sw.doneCh)

	for {
		select {
		case <-sw.stopCh:
			return

		case event, ok := <-sw.watcher.Events:
			if !ok {
				return
			}
			sw.handleEvent(event)

		case err, ok := <-sw.watcher.Errors:
			if !ok {
				return
			}
			// Transient I/O while enumerating: logged, retried on the
			// next event, never fatal.
			logging.Get(logging.CategoryWatcher).Error("watch: %v", err)
			sw.mu.Lock()
			sw.stats.ScanErrors++
			sw.mu.Unlock()
		}
	}
}

func (sw *SessionWatcher) handleEvent(event fsnotify.Event) {
	dir := sw.cfgs.Snapshot().RecordingsPath()
	if filepath.Dir(event.Name) != dir {
		return
	}

	switch {
	case event.Op&fsnotify.Create != 0:
		info, err := os.Stat(event.Name)
		if err != nil || !info.IsDir() {
			return
		}
		sw.onAppeared(event.Name)

	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		sw.onRemoved(event.Name)
	}
}

// onAppeared starts tracking a new session folder.
func (sw *SessionWatcher) onAppeared(path string) {
	if sw.dedup.Contains(path) {
		return
	}
	id := filepath.Base(path)

	sw.mu.Lock()
	if _, exists := sw.sessions[id]; exists {
		sw.mu.Unlock()
		return
	}
	sess := &types.Session{
		ID:        id,
		Path:      path,
		State:     types.SessionWatching,
		CreatedAt: time.Now(),
	}
	t := &tracked{session: sess}
	sw.sessions[id] = t
	sw.stats.SessionsAppeared++
	sw.mu.Unlock()

	logging.Watcher("session %s: appeared", id)
	sw.sink.SessionObserved(id)

	// If the signal is already fully valid at observation time no
	// further clipboard writes are expected; skip intensive tracking.
	_, alreadyValid := ReadSignal(path)
	sw.clip.Begin(id, alreadyValid)

	cw, err := newCompletionWatcher(id, path, sw.sim, sw.handleSignal)
	if err != nil {
		logging.Get(logging.CategoryWatcher).Error("session %s: completion watcher: %v", id, err)
		return
	}
	sw.mu.Lock()
	t.cw = cw
	sw.mu.Unlock()
	_ = cw.Start()
}

// onRemoved tears down a deleted session folder: watchers cancelled,
// clipboard session stopped, dedup entry evicted so a reused path can
// be reprocessed.
func (sw *SessionWatcher) onRemoved(path string) {
	id := filepath.Base(path)

	sw.mu.Lock()
	t, ok := sw.sessions[id]
	if ok {
		delete(sw.sessions, id)
		sw.stats.SessionsRemoved++
	}
	sw.mu.Unlock()

	// Evict regardless of tracking: a processed folder deleted later
	// must also leave the dedup set.
	if sw.dedup.Contains(path) {
		if err := sw.dedup.Evict(path); err != nil {
			logging.Get(logging.CategoryStore).Warn("evict %s: %v", path, err)
		}
	}
	if !ok {
		return
	}

	logging.Watcher("session %s: folder removed", id)
	if t.cw != nil {
		t.cw.Stop()
	}
	sw.clip.End(id)
	sw.sink.SessionAborted(id)
}

// handleSignal transitions a session to Signaled exactly once and hands
// off to the sink. Runs on the session's completion-watcher goroutine.
func (sw *SessionWatcher) handleSignal(id string, rec types.CompletionRecord) {
	sw.mu.Lock()
	t, ok := sw.sessions[id]
	if !ok || t.session.State != types.SessionWatching {
		sw.mu.Unlock()
		return
	}
	t.session.State = types.SessionSignaled
	sess := *t.session
	sw.stats.SessionsSignaled++
	sw.mu.Unlock()

	sw.sink.SessionSignaled(sess, rec)
}

// SessionDone marks a session fully processed and removes it from
// tracking. Called by the selector after the action decision completed.
func (sw *SessionWatcher) SessionDone(id string) {
	sw.mu.Lock()
	t, ok := sw.sessions[id]
	if ok {
		t.session.State = types.SessionProcessed
		delete(sw.sessions, id)
		sw.stats.SessionsDone++
	}
	sw.mu.Unlock()

	if ok && t.cw != nil {
		t.cw.Stop()
	}
}

// TrackedSessions returns the ids currently tracked, for status output.
func (sw *SessionWatcher) TrackedSessions() []string {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	out := make([]string, 0, len(sw.sessions))
	for id := range sw.sessions {
		out = append(out, id)
	}
	return out
}

// GetStats returns a copy of the watcher statistics.
func (sw *SessionWatcher) GetStats() Stats {
	sw.mu.Lock()
	defer sw.mu.Unlock()
	return sw.stats
}
