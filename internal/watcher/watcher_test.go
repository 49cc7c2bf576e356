package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"voxd/internal/clipboard"
	"voxd/internal/config"
	"voxd/internal/simulator"
	"voxd/internal/types"
)

type dedupFake struct {
	mu    sync.Mutex
	set   map[string]bool
	marks int
}

func newDedupFake() *dedupFake { return &dedupFake{set: make(map[string]bool)} }

func (d *dedupFake) Contains(path string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.set[path]
}

func (d *dedupFake) MarkProcessed(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.set[path] {
		d.marks++
	}
	d.set[path] = true
	return nil
}

func (d *dedupFake) Evict(path string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.set, path)
	return nil
}

type sinkFake struct {
	mu       sync.Mutex
	observed []string
	signaled []types.CompletionRecord
	sessions []types.Session
	aborted  []string
}

func (s *sinkFake) SessionObserved(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.observed = append(s.observed, id)
}

func (s *sinkFake) SessionSignaled(sess types.Session, rec types.CompletionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions = append(s.sessions, sess)
	s.signaled = append(s.signaled, rec)
}

func (s *sinkFake) SessionAborted(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.aborted = append(s.aborted, id)
}

func (s *sinkFake) observedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.observed...)
}

func (s *sinkFake) signaledRecords() []types.CompletionRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]types.CompletionRecord(nil), s.signaled...)
}

func (s *sinkFake) abortedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.aborted...)
}

type watchFixture struct {
	sw    *SessionWatcher
	sink  *sinkFake
	dedup *dedupFake
	sim   *simulator.Fake
	dir   string // recordings directory
}

func newWatchFixture(t *testing.T) *watchFixture {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.BasePath = t.TempDir()
	cfgs := config.NewStore(cfg)

	f := &watchFixture{
		sink:  &sinkFake{},
		dedup: newDedupFake(),
		sim:   simulator.NewFake(),
		dir:   cfg.RecordingsPath(),
	}
	clip := clipboard.New(f.sim, cfgs)

	sw, err := New(cfgs, f.dedup, clip, f.sim, f.sink)
	require.NoError(t, err)
	f.sw = sw
	return f
}

func (f *watchFixture) makeSessionDir(t *testing.T, id string) string {
	t.Helper()
	path := filepath.Join(f.dir, id)
	require.NoError(t, os.MkdirAll(path, 0755))
	return path
}

func TestSessionLifecycle_SignalDelivered(t *testing.T) {
	f := newWatchFixture(t)
	f.sim.SetFrontApp(types.FrontApp{Name: "Mail", Identifier: "com.apple.mail"})

	require.NoError(t, f.sw.Start())
	defer f.sw.Stop()

	path := f.makeSessionDir(t, "rec-1")
	require.Eventually(t, func() bool {
		return len(f.sink.observedIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond, "folder creation observed")

	writeSignal(t, path, `{"result":"send email to bob","modeName":"email"}`)
	require.Eventually(t, func() bool {
		return len(f.sink.signaledRecords()) == 1
	}, 2*time.Second, 10*time.Millisecond, "valid signal handed off")

	rec := f.sink.signaledRecords()[0]
	assert.Equal(t, "send email to bob", rec.Result)
	assert.Equal(t, "email", rec.ModeName)
	assert.Equal(t, "Mail", rec.FrontApp.Name, "front app captured at signal time")

	stats := f.sw.GetStats()
	assert.Equal(t, 1, stats.SessionsAppeared)
	assert.Equal(t, 1, stats.SessionsSignaled)
}

func TestSessionLifecycle_IncompleteSignalKeepsWatching(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, f.sw.Start())
	defer f.sw.Stop()

	path := f.makeSessionDir(t, "rec-1")
	require.Eventually(t, func() bool {
		return len(f.sink.observedIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	// The tool writes incrementally: an empty result is not a signal.
	writeSignal(t, path, `{"result":""}`)
	time.Sleep(150 * time.Millisecond)
	assert.Empty(t, f.sink.signaledRecords())

	// The rewrite with a real result completes the handoff.
	writeSignal(t, path, `{"result":"done"}`)
	require.Eventually(t, func() bool {
		return len(f.sink.signaledRecords()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "done", f.sink.signaledRecords()[0].Result)
}

func TestSessionLifecycle_SignalPresentAtCreation(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, f.sw.Start())
	defer f.sw.Stop()

	// Folder and signal land together, faster than the watch registers.
	path := filepath.Join(f.dir, "rec-1")
	staging := filepath.Join(t.TempDir(), "rec-1")
	require.NoError(t, os.MkdirAll(staging, 0755))
	writeSignal(t, staging, `{"result":"already done"}`)
	require.NoError(t, os.Rename(staging, path))

	require.Eventually(t, func() bool {
		return len(f.sink.signaledRecords()) == 1
	}, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, "already done", f.sink.signaledRecords()[0].Result)
}

func TestSessionRemoved_Aborts(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, f.sw.Start())
	defer f.sw.Stop()

	path := f.makeSessionDir(t, "rec-1")
	require.Eventually(t, func() bool {
		return len(f.sink.observedIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, os.RemoveAll(path))
	require.Eventually(t, func() bool {
		return len(f.sink.abortedIDs()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	assert.Empty(t, f.sw.TrackedSessions())
	assert.Equal(t, 1, f.sw.GetStats().SessionsRemoved)
}

func TestProcessedFolderRemoval_EvictsDedup(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, f.sw.Start())
	defer f.sw.Stop()

	// A folder already marked processed is never re-tracked...
	path := filepath.Join(f.dir, "rec-1")
	require.NoError(t, f.dedup.MarkProcessed(path))
	require.NoError(t, os.MkdirAll(path, 0755))
	f.sw.onAppeared(path)
	assert.Empty(t, f.sw.TrackedSessions())

	// ...but deleting it releases the dedup entry so a reused path can
	// be processed again.
	require.NoError(t, os.RemoveAll(path))
	require.Eventually(t, func() bool {
		return !f.dedup.Contains(path)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestInitialScan_MarksNewestOnly(t *testing.T) {
	f := newWatchFixture(t)

	older := f.makeSessionDir(t, "rec-old")
	newer := f.makeSessionDir(t, "rec-new")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(older, past, past))

	f.sw.InitialScan()
	assert.True(t, f.dedup.Contains(newer), "newest folder marked")
	assert.False(t, f.dedup.Contains(older), "older folders untouched")

	// Re-running with nothing changed is a no-op.
	f.sw.InitialScan()
	assert.Equal(t, 1, f.dedup.marks)
}

func TestInitialScan_EmptyDirectory(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, os.MkdirAll(f.dir, 0755))
	f.sw.InitialScan()
	assert.Equal(t, 0, f.dedup.marks)
}

func TestSessionDone_Untracks(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, f.sw.Start())
	defer f.sw.Stop()

	path := f.makeSessionDir(t, "rec-1")
	writeSignal(t, path, `{"result":"done"}`)
	require.Eventually(t, func() bool {
		return len(f.sink.signaledRecords()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	f.sw.SessionDone("rec-1")
	assert.Empty(t, f.sw.TrackedSessions())
	assert.Equal(t, 1, f.sw.GetStats().SessionsDone)

	// Done for an unknown session is a no-op.
	f.sw.SessionDone("rec-1")
	assert.Equal(t, 1, f.sw.GetStats().SessionsDone)
}

func TestStartStop_Idempotent(t *testing.T) {
	f := newWatchFixture(t)
	require.NoError(t, f.sw.Start())
	require.NoError(t, f.sw.Start())
	f.sw.Stop()
	f.sw.Stop()
}
