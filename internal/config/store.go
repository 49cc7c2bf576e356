package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"voxd/internal/logging"
)

// Store holds the live configuration snapshot. The core re-reads the
// current snapshot at each decision point instead of caching one across
// a session's lifetime, so a reload takes effect on the next decision.
type Store struct {
	mu  sync.RWMutex
	cfg *Config
}

// NewStore creates a store around an initial snapshot.
func NewStore(cfg *Config) *Store {
	return &Store{cfg: cfg}
}

// Snapshot returns the current configuration. The returned value must
// be treated as read-only.
func (s *Store) Snapshot() *Config {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg
}

// Replace swaps in a new snapshot.
func (s *Store) Replace(cfg *Config) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// Reloader watches the config file and swaps the store's snapshot when
// the file changes and still parses and validates. A bad edit keeps the
// previous snapshot in place.
type Reloader struct {
	store    *Store
	path     string
	watcher  *fsnotify.Watcher
	debounce time.Duration
	stopCh   chan struct{}
	doneCh   chan struct{}

	mu      sync.Mutex
	running bool
	pending time.Time
}

// NewReloader creates a reloader for the given config file path.
func NewReloader(store *Store, path string) (*Reloader, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Reloader{
		store:    store,
		path:     path,
		watcher:  w,
		debounce: 250 * time.Millisecond, // editors fire several writes per save
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching. Non-blocking.
func (r *Reloader) Start() error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = true
	r.mu.Unlock()

	// Watch the directory, not the file: editors replace config files
	// by rename and a file watch would go stale after the first save.
	if err := r.watcher.Add(filepath.Dir(r.path)); err != nil {
		logging.Get(logging.CategoryConfig).Warn("reloader: watch failed: %v", err)
	}

	go r.run()
	return nil
}

// Stop stops the reloader and waits for its loop to exit.
func (r *Reloader) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	<-r.doneCh
	if err := r.watcher.Close(); err != nil {
		logging.Get(logging.CategoryConfig).Error("reloader: close: %v", err)
	}
}

func (r *Reloader) run() {
	defer close(r.doneCh)

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-r.stopCh:
			return

		case event, ok := <-r.watcher.Events:
			if !ok {
				return
			}
			if event.Name != r.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			r.mu.Lock()
			r.pending = time.Now()
			r.mu.Unlock()

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryConfig).Error("reloader: %v", err)

		case <-ticker.C:
			r.mu.Lock()
			due := !r.pending.IsZero() && time.Since(r.pending) >= r.debounce
			if due {
				r.pending = time.Time{}
			}
			r.mu.Unlock()
			if due {
				r.reload()
			}
		}
	}
}

func (r *Reloader) reload() {
	log := logging.Get(logging.CategoryConfig)

	cfg, err := Load(r.path)
	if err != nil {
		log.Warn("reload rejected, keeping previous config: %v", err)
		return
	}
	if err := cfg.Validate(); err != nil {
		log.Warn("reload rejected, keeping previous config: %v", err)
		return
	}

	r.store.Replace(cfg)
	log.Info("configuration reloaded from %s (%d actions)", r.path, len(cfg.Actions))
}
