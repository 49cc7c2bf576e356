package action

import (
	"sync"
	"time"

	"voxd/internal/logging"
)

// priorityState holds the one-shot overrides: auto-return and the
// scheduled action. At most one is ever set; arming one clears the
// other, so the invariant holds by construction rather than by caller
// discipline. Observed-but-unconsumed sessions are tracked whether or
// not anything is armed, because the expiry timer must stay paused for
// a session that was already live when the user armed. The shared
// timer runs only while something is armed and no session is pending.
type priorityState struct {
	mu         sync.Mutex
	autoReturn bool
	scheduled  string
	pending    map[string]bool // observed sessions not yet consumed or aborted
	timer      *time.Timer
}

// armAutoReturn sets or clears the auto-return flag. Arming clears any
// scheduled action.
func (p *priorityState) armAutoReturn(on bool, timeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.autoReturn = on
	if on {
		p.scheduled = ""
	}
	p.resetTimerLocked(timeout)
}

// armScheduled sets the scheduled action name, or clears it when name
// is empty. Arming clears auto-return.
func (p *priorityState) armScheduled(name string, timeout time.Duration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.scheduled = name
	if name != "" {
		p.autoReturn = false
	}
	p.resetTimerLocked(timeout)
}

// clear drops both one-shots without executing.
func (p *priorityState) clear(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.autoReturn && p.scheduled == "" {
		return
	}
	logging.Action("clearing armed one-shot state: %s", reason)
	p.clearLocked()
}

func (p *priorityState) clearLocked() {
	p.autoReturn = false
	p.scheduled = ""
	p.stopTimerLocked()
}

// observe records a newly observed session. The session joins the
// pending set regardless of armed state; while armed, the first
// pending session pauses the timeout and a second one supersedes it
// and clears the armed state.
func (p *priorityState) observe(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pending[sessionID] {
		return
	}

	armed := p.autoReturn || p.scheduled != ""
	if armed && len(p.pending) > 0 {
		logging.Action("session %s superseded a pending session; clearing armed state", sessionID)
		p.clearLocked()
	}
	if p.pending == nil {
		p.pending = make(map[string]bool)
	}
	p.pending[sessionID] = true
	if armed {
		p.stopTimerLocked()
	}
}

// abort removes a session that died before its action ran. Armed state
// is dropped when its last pending consumer is gone.
func (p *priorityState) abort(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.pending[sessionID] {
		return
	}
	delete(p.pending, sessionID)
	if (p.autoReturn || p.scheduled != "") && len(p.pending) == 0 {
		logging.Action("session %s aborted; clearing armed state", sessionID)
		p.clearLocked()
	}
}

// take consumes the armed state for a signaled session. Exactly one of
// the returns is meaningful: autoReturn, or a scheduled name, or
// neither.
func (p *priorityState) take(sessionID string) (autoReturn bool, scheduled string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.pending, sessionID)
	if p.autoReturn {
		p.autoReturn = false
		p.stopTimerLocked()
		return true, ""
	}
	if p.scheduled != "" {
		name := p.scheduled
		p.scheduled = ""
		p.stopTimerLocked()
		return false, name
	}
	return false, ""
}

// snapshot returns the current flags for status reporting.
func (p *priorityState) snapshot() (autoReturn bool, scheduled string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.autoReturn, p.scheduled
}

// resetTimerLocked arms the shared timeout whenever something is armed
// with no session pending, including sessions observed before arming.
// A zero timeout means never expire.
func (p *priorityState) resetTimerLocked(timeout time.Duration) {
	p.stopTimerLocked()
	if !p.autoReturn && p.scheduled == "" {
		return
	}
	if len(p.pending) != 0 || timeout <= 0 {
		return
	}
	p.timer = time.AfterFunc(timeout, func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		if len(p.pending) != 0 {
			return
		}
		if p.autoReturn || p.scheduled != "" {
			logging.Action("armed one-shot state expired after %s", timeout)
			p.autoReturn = false
			p.scheduled = ""
		}
	})
}

func (p *priorityState) stopTimerLocked() {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
}
