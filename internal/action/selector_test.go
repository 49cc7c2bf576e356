package action

import (
	"context"
	"encoding/json"
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

type fakeDedup struct {
	mu    sync.Mutex
	set   map[string]bool
	marks int
}

func newFakeDedup() *fakeDedup { return &fakeDedup{set: make(map[string]bool)} }

func (f *fakeDedup) Contains(path string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.set[path]
}

func (f *fakeDedup) MarkProcessed(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.set[path] {
		f.marks++
	}
	f.set[path] = true
	return nil
}

func (f *fakeDedup) Evict(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.set, path)
	return nil
}

type fakeNotifier struct {
	mu       sync.Mutex
	messages []string
}

func (f *fakeNotifier) Notify(title, message string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, message)
}

func (f *fakeNotifier) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.messages)
}

type fakeHistory struct {
	mu    sync.Mutex
	calls [][2]string
}

func (f *fakeHistory) Apply(path, behavior string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, [2]string{path, behavior})
	return nil
}

type fakeRunner struct {
	mu       sync.Mutex
	payloads []string
}

func (f *fakeRunner) Run(_ context.Context, payload string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.payloads = append(f.payloads, payload)
	return nil
}

func (f *fakeRunner) runs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.payloads...)
}

type fixture struct {
	selector *Selector
	sim      *simulator.Fake
	dedup    *fakeDedup
	notifier *fakeNotifier
	history  *fakeHistory
	shell    *fakeRunner
	done     []string
	doneMu   sync.Mutex
}

func newFixture(t *testing.T, cfg *config.Config) *fixture {
	t.Helper()
	cfg.Timing.MaxClipboardWait = "10ms"
	cfg.Timing.IntensivePoll = "2ms"

	f := &fixture{
		sim:      simulator.NewFake(),
		dedup:    newFakeDedup(),
		notifier: &fakeNotifier{},
		history:  &fakeHistory{},
		shell:    &fakeRunner{},
	}
	runners := map[types.ActionKind]types.ActionRunner{
		types.ActionRunShellCommand: f.shell,
		types.ActionRunScript:       f.shell,
		types.ActionOpenURL:         f.shell,
		types.ActionRunAutomation:   f.shell,
	}
	cfgs := config.NewStore(cfg)
	clip := clipboard.New(f.sim, cfgs)
	f.selector = NewSelector(cfgs, clip, f.sim, f.dedup, runners, f.notifier, f.history)
	f.selector.OnDone = func(id string) {
		f.doneMu.Lock()
		defer f.doneMu.Unlock()
		f.done = append(f.done, id)
	}
	t.Cleanup(f.selector.Stop)
	return f
}

// makeSession creates a real session folder with a valid signal file.
func makeSession(t *testing.T, id, result string) types.Session {
	t.Helper()
	path := filepath.Join(t.TempDir(), id)
	require.NoError(t, os.MkdirAll(path, 0755))
	data, err := json.Marshal(map[string]string{"result": result})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(path, "meta.json"), data, 0644))
	return types.Session{ID: id, Path: path, State: types.SessionSignaled, CreatedAt: time.Now()}
}

func mailConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Actions = []types.ActionDescriptor{
		{
			Name: "mailTrigger",
			Kind: types.ActionInsertText,
			Trigger: types.TriggerRules{
				Voice: types.Dimension{Include: []string{"send email"}},
				App:   types.Dimension{Include: []string{"Mail"}},
				Logic: types.TriggerAND,
			},
		},
	}
	return cfg
}

func TestProcess_TriggerMatchExecutesWithStrippedText(t *testing.T) {
	f := newFixture(t, mailConfig())
	sess := makeSession(t, "s1", "send email to bob")
	rec := types.CompletionRecord{
		Result:   "send email to bob",
		FrontApp: types.FrontApp{Name: "Mail"},
	}

	f.selector.process(sess, rec)

	require.Equal(t, 1, f.sim.PasteCount())
	assert.Equal(t, " to bob", f.sim.Pastes[0])
	assert.Equal(t, 1, f.dedup.marks, "processed exactly once")
	assert.Equal(t, []string{"s1"}, f.done)
}

func TestProcess_TriggerNoMatchWrongApp(t *testing.T) {
	f := newFixture(t, mailConfig())
	sess := makeSession(t, "s1", "send email to bob")
	rec := types.CompletionRecord{
		Result:   "send email to bob",
		FrontApp: types.FrontApp{Name: "Terminal"},
	}

	f.selector.process(sess, rec)

	assert.Zero(t, f.sim.PasteCount())
	assert.Equal(t, 1, f.dedup.marks, "still marked processed")
}

func TestProcess_AutoReturnBypassesTriggers(t *testing.T) {
	f := newFixture(t, mailConfig())
	sess := makeSession(t, "s1", "send email to bob")
	rec := types.CompletionRecord{
		Result:   "send email to bob",
		FrontApp: types.FrontApp{Name: "Mail"},
	}

	f.selector.ArmAutoReturn(true)
	f.selector.SessionObserved("s1")
	f.selector.process(sess, rec)

	require.Equal(t, 1, f.sim.PasteCount())
	assert.Equal(t, "send email to bob", f.sim.Pastes[0], "raw text, no stripping")

	st := f.selector.GetStatus()
	assert.False(t, st.AutoReturnArmed, "one-shot cleared")
}

func TestProcess_ScheduledActionWins(t *testing.T) {
	cfg := mailConfig()
	cfg.Actions = append(cfg.Actions, types.ActionDescriptor{
		Name:    "runBuild",
		Kind:    types.ActionRunShellCommand,
		Content: "make build",
	})
	f := newFixture(t, cfg)
	sess := makeSession(t, "s1", "send email to bob")
	rec := types.CompletionRecord{
		Result:   "send email to bob",
		FrontApp: types.FrontApp{Name: "Mail"},
	}

	require.NoError(t, f.selector.ArmScheduledAction("runBuild"))
	f.selector.SessionObserved("s1")
	f.selector.process(sess, rec)

	assert.Equal(t, []string{"make build"}, f.shell.payloads)
	assert.Zero(t, f.sim.PasteCount(), "trigger action bypassed")

	st := f.selector.GetStatus()
	assert.Empty(t, st.ScheduledAction, "one-shot cleared")
}

func TestProcess_UnknownScheduledFallsThrough(t *testing.T) {
	f := newFixture(t, mailConfig())
	sess := makeSession(t, "s1", "send email to bob")
	rec := types.CompletionRecord{
		Result:   "send email to bob",
		FrontApp: types.FrontApp{Name: "Mail"},
	}

	// Arm against a config that still has it, then remove it: simulates
	// the action vanishing on a live reload.
	cfgWith := mailConfig()
	cfgWith.Actions = append(cfgWith.Actions, types.ActionDescriptor{
		Name: "ghost", Kind: types.ActionRunShellCommand, Content: "true",
	})
	f.selector.cfgs.Replace(cfgWith)
	require.NoError(t, f.selector.ArmScheduledAction("ghost"))
	f.selector.cfgs.Replace(mailConfig())

	f.selector.SessionObserved("s1")
	f.selector.process(sess, rec)

	assert.GreaterOrEqual(t, f.notifier.count(), 1, "inconsistency surfaced")
	require.Equal(t, 1, f.sim.PasteCount(), "fell through to trigger match")
	assert.Equal(t, " to bob", f.sim.Pastes[0])
}

func TestProcess_DefaultActionFallback(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Actions = []types.ActionDescriptor{
		{Name: "typeIt", Kind: types.ActionInsertText},
	}
	cfg.Defaults.DefaultAction = "typeIt"
	f := newFixture(t, cfg)

	sess := makeSession(t, "s1", "just some words")
	f.selector.process(sess, types.CompletionRecord{Result: "just some words"})

	require.Equal(t, 1, f.sim.PasteCount())
	assert.Equal(t, "just some words", f.sim.Pastes[0])
}

func TestProcess_MissingDefaultActionNotifies(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Defaults.DefaultAction = "doesNotExist"
	f := newFixture(t, cfg)

	sess := makeSession(t, "s1", "words")
	f.selector.process(sess, types.CompletionRecord{Result: "words"})

	assert.Zero(t, f.sim.PasteCount())
	assert.Equal(t, 1, f.notifier.count())
	assert.Equal(t, 1, f.dedup.marks, "post-processing still ran")
}

func TestProcess_NoActionStillFinishes(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	sess := makeSession(t, "s1", "words")

	f.selector.process(sess, types.CompletionRecord{Result: "words"})

	assert.Zero(t, f.sim.PasteCount())
	assert.Equal(t, 1, f.dedup.marks)
	assert.Equal(t, []string{"s1"}, f.done)
}

func TestProcess_SignalFileGoneSkipsExecution(t *testing.T) {
	f := newFixture(t, mailConfig())
	sess := makeSession(t, "s1", "send email to bob")
	require.NoError(t, os.Remove(filepath.Join(sess.Path, "meta.json")))

	f.selector.ArmAutoReturn(true)
	f.selector.SessionObserved("s1")
	f.selector.process(sess, types.CompletionRecord{
		Result:   "send email to bob",
		FrontApp: types.FrontApp{Name: "Mail"},
	})

	assert.Zero(t, f.sim.PasteCount(), "nothing executed")
	st := f.selector.GetStatus()
	assert.False(t, st.AutoReturnArmed, "pending one-shot cleared")
}

func TestProcess_PostMoveDelete(t *testing.T) {
	cfg := mailConfig()
	cfg.Defaults.PostMove = types.PostMoveDelete
	f := newFixture(t, cfg)
	sess := makeSession(t, "s1", "send email to bob")

	f.selector.process(sess, types.CompletionRecord{
		Result:   "send email to bob",
		FrontApp: types.FrontApp{Name: "Mail"},
	})

	require.Len(t, f.history.calls, 1)
	assert.Equal(t, types.PostMoveDelete, f.history.calls[0][1])
}

func TestExecuteActionByName(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Actions = []types.ActionDescriptor{
		{Name: "openDocs", Kind: types.ActionOpenURL, Content: "https://example.com"},
	}
	f := newFixture(t, cfg)

	t.Run("unknown action errors", func(t *testing.T) {
		assert.Error(t, f.selector.ExecuteActionByName("nope"))
	})

	t.Run("runs and clears scheduled state", func(t *testing.T) {
		require.NoError(t, f.selector.ArmScheduledAction("openDocs"))
		require.NoError(t, f.selector.ExecuteActionByName("openDocs"))

		// Execution is dispatched off the caller's goroutine.
		require.Eventually(t, func() bool {
			return len(f.shell.runs()) == 1
		}, time.Second, 5*time.Millisecond)
		assert.Equal(t, []string{"https://example.com"}, f.shell.runs())

		st := f.selector.GetStatus()
		assert.Empty(t, st.ScheduledAction)
	})
}

func TestArmScheduledAction_UnknownName(t *testing.T) {
	f := newFixture(t, config.DefaultConfig())
	assert.Error(t, f.selector.ArmScheduledAction("missing"))
}

func TestGetStatus(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Defaults.DefaultAction = "typeIt"
	cfg.Actions = []types.ActionDescriptor{{Name: "typeIt", Kind: types.ActionInsertText}}
	f := newFixture(t, cfg)
	f.selector.WatchingFn = func() bool { return true }

	f.selector.ArmAutoReturn(true)
	st := f.selector.GetStatus()
	assert.True(t, st.Watching)
	assert.Equal(t, "typeIt", st.DefaultAction)
	assert.True(t, st.AutoReturnArmed)
	assert.Empty(t, st.ScheduledAction)
}
