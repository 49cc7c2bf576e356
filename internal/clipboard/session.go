package clipboard

import (
	"sync"
	"time"

	"voxd/internal/types"
)

// Session is the per-recording clipboard state: the values captured when
// the session was first observed plus the bounded change log filled by
// the intensive tracker. The dictation tool writes the clipboard on its
// own schedule, so the log is the only record of who wrote what when.
type Session struct {
	SessionID string
	StartedAt time.Time

	// Captured at session start.
	Original        *string // clipboard content when the session appeared
	PreSession      *string // newest global-history entry from before the session
	SelectedAtStart *string // selection in the front app, if any

	mu         sync.Mutex
	changes    []types.ClipboardSnapshot
	maxChanges int
	active     bool
	executing  bool

	// Values this daemon itself wrote during action execution, used to
	// tell the action's writes apart from the dictation tool's.
	ownWrites      []string
	trackerStop    chan struct{}
	trackerDone    chan struct{}
	trackerStarted bool
}

func newSession(id string, maxChanges int) *Session {
	if maxChanges <= 0 {
		maxChanges = 50
	}
	return &Session{
		SessionID:  id,
		StartedAt:  time.Now(),
		maxChanges: maxChanges,
		active:     true,
	}
}

// recordChange appends an observed clipboard change, pruning entries
// beyond the bound or older than the session itself.
func (s *Session) recordChange(snap types.ClipboardSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if snap.At.Before(s.StartedAt) {
		return
	}
	s.changes = append(s.changes, snap)
	if len(s.changes) > s.maxChanges {
		s.changes = s.changes[len(s.changes)-s.maxChanges:]
	}
}

// Changes returns a copy of the change log.
func (s *Session) Changes() []types.ClipboardSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.ClipboardSnapshot, len(s.changes))
	copy(out, s.changes)
	return out
}

// SetExecuting flags that an action is currently running for this
// session. Audit logging of changes is gated on this flag; the change
// log itself is always populated.
func (s *Session) SetExecuting(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.executing = v
}

// Executing reports the execution flag.
func (s *Session) Executing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.executing
}

// Active reports whether the session is still tracked.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// noteOwnWrite records a clipboard value written by the daemon itself
// during action execution.
func (s *Session) noteOwnWrite(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ownWrites = append(s.ownWrites, text)
}

func (s *Session) isOwnWrite(text string) bool {
	for _, w := range s.ownWrites {
		if w == text {
			return true
		}
	}
	return false
}

// RestoreValue computes what to put back on the clipboard after an
// action executed with expected result text. Nil means there is nothing
// meaningful to restore.
//
// The race this resolves: the dictation tool writes the result to the
// clipboard on its own schedule. Scanning the change log newest-first,
// the first entry that is neither the expected result nor one of the
// action's own writes is the last value the user actually owned,
// either a mid-session edit to preserve or whatever preceded the
// tool's write when the tool was faster than the action. With no such
// entry the session-start captures apply: originalClipboard, then
// preSessionClipboard.
func (s *Session) RestoreValue(result string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := len(s.changes) - 1; i >= 0; i-- {
		c := s.changes[i]
		if c.Content == nil {
			continue
		}
		if *c.Content == result || s.isOwnWrite(*c.Content) {
			continue
		}
		return c.Content
	}
	return s.fallbackLocked()
}

func (s *Session) fallbackLocked() *string {
	if s.Original != nil {
		return s.Original
	}
	return s.PreSession
}

// stop ends intensive tracking and deactivates the session.
func (s *Session) stop() {
	s.mu.Lock()
	if !s.active {
		s.mu.Unlock()
		return
	}
	s.active = false
	started := s.trackerStarted
	s.trackerStarted = false
	s.mu.Unlock()

	if started {
		close(s.trackerStop)
		<-s.trackerDone
	}
}
