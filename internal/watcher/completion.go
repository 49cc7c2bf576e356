package watcher

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"voxd/internal/logging"
	"voxd/internal/types"
)

// CompletionWatcher waits for one session's completion signal to become
// valid. It owns its own fsnotify watcher and goroutine, so events for
// one session are strictly ordered while separate sessions proceed
// concurrently.
type CompletionWatcher struct {
	sessionID   string
	sessionPath string
	sim         types.InputSimulator
	onSignal    func(sessionID string, rec types.CompletionRecord)

	watcher *fsnotify.Watcher
	stopCh  chan struct{}
	doneCh  chan struct{}

	mu       sync.Mutex
	running  bool
	signaled bool
}

// newCompletionWatcher wires a watcher for one session folder. onSignal
// fires at most once, on the watcher's own goroutine.
func newCompletionWatcher(sessionID, sessionPath string, sim types.InputSimulator, onSignal func(string, types.CompletionRecord)) (*CompletionWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &CompletionWatcher{
		sessionID:   sessionID,
		sessionPath: sessionPath,
		sim:         sim,
		onSignal:    onSignal,
		watcher:     w,
		stopCh:      make(chan struct{}),
		doneCh:      make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking. If the signal file is already
// valid the handoff fires immediately from the watcher goroutine.
func (cw *CompletionWatcher) Start() error {
	cw.mu.Lock()
	if cw.running {
		cw.mu.Unlock()
		return nil
	}
	cw.running = true
	cw.mu.Unlock()

	if err := cw.watcher.Add(cw.sessionPath); err != nil {
		// The folder may have vanished already; the session watcher
		// will tear us down on its removal event.
		logging.Get(logging.CategoryWatcher).Warn("completion %s: watch failed: %v", cw.sessionID, err)
	}

	go cw.run()
	return nil
}

// Stop cancels the watcher and waits for its goroutine.
func (cw *CompletionWatcher) Stop() {
	cw.mu.Lock()
	if !cw.running {
		cw.mu.Unlock()
		return
	}
	cw.running = false
	cw.mu.Unlock()

	close(cw.stopCh)
	<-cw.doneCh
	if err := cw.watcher.Close(); err != nil {
		logging.Get(logging.CategoryWatcher).Error("completion %s: close: %v", cw.sessionID, err)
	}
}

func (cw *CompletionWatcher) run() {
	defer close(cw.doneCh)

	// The tool may have written the file before our watch registered.
	cw.check()

	// Low-frequency re-check covers missed events on filesystems with
	// unreliable notification (network mounts).
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-cw.stopCh:
			return

		case event, ok := <-cw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != SignalFileName {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			if cw.check() {
				return
			}

		case err, ok := <-cw.watcher.Errors:
			if !ok {
				return
			}
			// Transient I/O: log and keep watching; never fatal.
			logging.Get(logging.CategoryWatcher).Error("completion %s: %v", cw.sessionID, err)

		case <-ticker.C:
			if cw.check() {
				return
			}
		}
	}
}

// check parses the signal file and, on first validity, captures the
// front application synchronously and hands off. Returns true once
// signaled so the loop can exit; later file events are ignored by the
// guard regardless.
func (cw *CompletionWatcher) check() bool {
	cw.mu.Lock()
	if cw.signaled {
		cw.mu.Unlock()
		return true
	}
	cw.mu.Unlock()

	rec, ok := ReadSignal(cw.sessionPath)
	if !ok {
		return false
	}

	cw.mu.Lock()
	if cw.signaled {
		cw.mu.Unlock()
		return true
	}
	cw.signaled = true
	cw.mu.Unlock()

	// Front application must be captured now, not when the action
	// eventually runs: focus changes fast.
	rec.FrontApp = cw.sim.FrontApplication()

	logging.Watcher("session %s: completion signal valid (mode=%q, %d chars)",
		cw.sessionID, rec.ModeName, len(rec.Result))
	cw.onSignal(cw.sessionID, rec)
	return true
}
