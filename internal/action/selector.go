// Package action implements the priority selector and executor: given a
// signaled session it applies the strict precedence policy (auto-return,
// scheduled action, trigger match, default action), resolves the winning
// action, and executes it through the clipboard coordinator and the
// per-kind runners.
package action

import (
	"context"
	"fmt"
	"sync"

	"voxd/internal/clipboard"
	"voxd/internal/config"
	"voxd/internal/logging"
	"voxd/internal/trigger"
	"voxd/internal/types"
	"voxd/internal/watcher"
)

// Selector consumes signaled sessions and runs at most one action per
// session. It implements watcher.Sink.
type Selector struct {
	cfgs     *config.Store
	clip     *clipboard.Coordinator
	sim      types.InputSimulator
	dedup    types.DedupStore
	runners  map[types.ActionKind]types.ActionRunner
	notifier types.Notifier
	history  types.HistoryMover

	state priorityState

	// OnDone is invoked after a session's decision fully completed.
	// Wired to the session watcher's SessionDone.
	OnDone func(sessionID string)
	// WatchingFn reports whether the session watcher is live, for
	// status output.
	WatchingFn func() bool

	// wg tracks in-flight executions so Stop can drain them.
	wg sync.WaitGroup

	ctx    context.Context
	cancel context.CancelFunc
}

// NewSelector wires the selector.
func NewSelector(cfgs *config.Store, clip *clipboard.Coordinator, sim types.InputSimulator, dedup types.DedupStore, runners map[types.ActionKind]types.ActionRunner, notifier types.Notifier, history types.HistoryMover) *Selector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Selector{
		cfgs:     cfgs,
		clip:     clip,
		sim:      sim,
		dedup:    dedup,
		runners:  runners,
		notifier: notifier,
		history:  history,
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Stop cancels in-flight executions and waits for them to finish.
func (s *Selector) Stop() {
	s.cancel()
	s.wg.Wait()
}

// SessionObserved implements watcher.Sink.
func (s *Selector) SessionObserved(sessionID string) {
	s.state.observe(sessionID)
}

// SessionAborted implements watcher.Sink.
func (s *Selector) SessionAborted(sessionID string) {
	s.state.abort(sessionID)
}

// SessionSignaled implements watcher.Sink. Execution is dispatched off
// the watcher goroutine so event delivery is never blocked by a slow
// action.
func (s *Selector) SessionSignaled(sess types.Session, rec types.CompletionRecord) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.process(sess, rec)
	}()
}

// process runs the full decision pipeline for one signaled session.
// Evaluated once per session; a failure here never blocks other
// sessions.
func (s *Selector) process(sess types.Session, rec types.CompletionRecord) {
	log := logging.Get(logging.CategoryAction)
	cfg := s.cfgs.Snapshot()

	// The completion file can vanish between signal and action (the
	// user cancelled). Clear pending one-shots and execute nothing.
	if !watcher.SignalExists(sess.Path) {
		log.Info("session %s: completion file gone before action; skipping", sess.ID)
		s.state.abort(sess.ID)
		s.finish(sess, cfg, "")
		return
	}

	transcript := rec.EffectiveResult()
	autoReturn, scheduled := s.state.take(sess.ID)

	switch {
	case autoReturn:
		log.Info("session %s: auto-return", sess.ID)
		s.executeInsert(sess, rec, transcript, cfg)
		s.finish(sess, cfg, "")
		return

	case scheduled != "":
		desc, ok := cfg.ActionByName(scheduled)
		if !ok {
			// The action disappeared from config between arming and
			// firing. Surface it and fall through to normal selection.
			s.notifier.Notify("voxd", fmt.Sprintf("scheduled action %q not found", scheduled))
			log.Warn("session %s: scheduled action %q not found", sess.ID, scheduled)
		} else {
			log.Info("session %s: scheduled action %q", sess.ID, desc.Name)
			s.execute(sess, rec, desc, transcript, cfg)
			s.finish(sess, cfg, desc.Overrides.PostMove)
			return
		}
	}

	// Trigger match: first alphabetical winner.
	tctx := trigger.Context{
		Transcript: transcript,
		AppName:    rec.FrontApp.Name,
		AppID:      rec.FrontApp.Identifier,
		Mode:       rec.ModeName,
	}
	for _, desc := range cfg.SortedActions() {
		m := trigger.Evaluate(desc.Trigger, tctx)
		if !m.OK {
			continue
		}
		log.Info("session %s: trigger matched action %q", sess.ID, desc.Name)
		s.execute(sess, rec, desc, m.Stripped, cfg)
		s.finish(sess, cfg, desc.Overrides.PostMove)
		return
	}

	// Default action.
	if name := cfg.Defaults.DefaultAction; name != "" {
		desc, ok := cfg.ActionByName(name)
		if !ok {
			s.notifier.Notify("voxd", fmt.Sprintf("default action %q not found", name))
			log.Warn("session %s: default action %q not found; no action", sess.ID, name)
		} else {
			log.Info("session %s: default action %q", sess.ID, desc.Name)
			s.execute(sess, rec, desc, transcript, cfg)
			s.finish(sess, cfg, desc.Overrides.PostMove)
			return
		}
	}

	log.Info("session %s: no action applied", sess.ID)
	s.finish(sess, cfg, "")
}

// finish runs folder post-processing, marks the session processed, and
// releases tracking. Runs even when no action executed.
func (s *Selector) finish(sess types.Session, cfg *config.Config, postMove string) {
	if postMove == "" {
		postMove = cfg.Defaults.PostMove
	}
	if postMove != "" && postMove != types.PostMoveLeave {
		if err := s.history.Apply(sess.Path, postMove); err != nil {
			logging.Get(logging.CategoryAction).Warn("session %s: post-move: %v", sess.ID, err)
		}
	}

	if err := s.dedup.MarkProcessed(sess.Path); err != nil {
		logging.Get(logging.CategoryStore).Warn("session %s: mark processed: %v", sess.ID, err)
	}
	if s.OnDone != nil {
		s.OnDone(sess.ID)
	}
}

// ExecuteActionByName resolves a configured action and runs it outside
// any session. Resolution errors return to the caller; the execution
// itself is dispatched to a tracked goroutine so a slow runner never
// stalls the control connection past its deadline. Clears scheduled
// state as a side effect.
func (s *Selector) ExecuteActionByName(name string) error {
	cfg := s.cfgs.Snapshot()
	desc, ok := cfg.ActionByName(name)
	if !ok {
		return fmt.Errorf("unknown action %q", name)
	}
	s.state.clear("immediate execute requested")
	logging.Action("immediate execution of %q", name)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.executeBody(s.ctx, "", desc, "", cfg); err != nil {
			logging.Get(logging.CategoryAction).Error("immediate action %q failed: %v", name, err)
			s.notifier.Notify("voxd", fmt.Sprintf("action %q failed: %v", name, err))
		}
	}()
	return nil
}

// ArmAutoReturn sets or clears the one-shot auto-return flag.
func (s *Selector) ArmAutoReturn(on bool) {
	s.state.armAutoReturn(on, s.cfgs.Snapshot().GetScheduledTimeout())
	logging.Action("auto-return armed=%v", on)
}

// ArmScheduledAction arms the named action for the next session only.
// An empty name clears the slot.
func (s *Selector) ArmScheduledAction(name string) error {
	if name != "" {
		if _, ok := s.cfgs.Snapshot().ActionByName(name); !ok {
			return fmt.Errorf("unknown action %q", name)
		}
	}
	s.state.armScheduled(name, s.cfgs.Snapshot().GetScheduledTimeout())
	logging.Action("scheduled action=%q", name)
	return nil
}

// Status describes the selector's externally visible state.
type Status struct {
	Watching        bool   `json:"watching"`
	DefaultAction   string `json:"activeDefaultAction"`
	AutoReturnArmed bool   `json:"autoReturnArmed"`
	ScheduledAction string `json:"scheduledAction"`
}

// GetStatus reports the current state for the control surface.
func (s *Selector) GetStatus() Status {
	auto, scheduled := s.state.snapshot()
	st := Status{
		DefaultAction:   s.cfgs.Snapshot().Defaults.DefaultAction,
		AutoReturnArmed: auto,
		ScheduledAction: scheduled,
	}
	if s.WatchingFn != nil {
		st.Watching = s.WatchingFn()
	}
	return st
}
