package game

import (
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

// TickInterval is the countdown granularity. Exactness to the second is not
// required; monotonic progress is.
const TickInterval = 250 // milliseconds

// TimerKey identifies the session instance a timer is bound to. A timer
// resets only when the key changes: re-observing the same ACTIVE session
// (re-render, ws reconnect) must not reset the countdown, a new session for
// the node must.
type TimerKey struct {
	SessionID string
	Status    model.SessionStatus
}

// Guard is the predicate re-evaluated on every tick. The countdown advances
// only while all of it holds.
type Guard struct {
	WithinRange        bool
	State              model.MiningState
	CompletionInFlight bool
}

func (g Guard) holds() bool {
	return g.WithinRange && g.State == model.StatePending && !g.CompletionInFlight
}

// SessionTimer is the remaining lock-in countdown for one session. One timer
// owns one session's remainingMs; no two timers should run for the same
// session in the same process.
type SessionTimer struct {
	key         TimerKey
	totalMs     int64
	remainingMs int64
	fired       bool
	onExpire    func()
}

// NewSessionTimer binds a timer to a session instance. onExpire fires at
// most once, when the countdown crosses zero under a holding guard.
func NewSessionTimer(session *model.MiningSession, onExpire func()) *SessionTimer {
	total := int64(session.LockInMinutes * 60_000)
	return &SessionTimer{
		key:         TimerKey{SessionID: session.ID, Status: session.Status},
		totalMs:     total,
		remainingMs: total,
		onExpire:    onExpire,
	}
}

// SetOnExpire rebinds the expiry callback. A timer outlives the connection
// that created it, so each new owner points expiry at its own channel.
func (t *SessionTimer) SetOnExpire(fn func()) {
	t.onExpire = fn
}

// Observe compares the session against the timer's identity key and resets
// the countdown only on a genuinely new instance (different id or status).
func (t *SessionTimer) Observe(session *model.MiningSession) {
	key := TimerKey{SessionID: session.ID, Status: session.Status}
	if key == t.key {
		return
	}
	t.key = key
	t.totalMs = int64(session.LockInMinutes * 60_000)
	t.remainingMs = t.totalMs
	t.fired = false
}

// Tick advances the countdown by elapsedMs if the guard holds. Remaining
// time never increases and never goes below zero. The zero-crossing fires
// the expiry callback exactly once per timer instance.
func (t *SessionTimer) Tick(elapsedMs int64, g Guard) {
	if t.remainingMs <= 0 || elapsedMs <= 0 {
		return
	}
	if !g.holds() {
		return
	}

	t.remainingMs -= elapsedMs
	if t.remainingMs < 0 {
		t.remainingMs = 0
	}

	if t.remainingMs == 0 && !t.fired {
		t.fired = true
		if t.onExpire != nil {
			t.onExpire()
		}
	}
}

// RemainingMs returns the remaining countdown in milliseconds.
func (t *SessionTimer) RemainingMs() int64 {
	return t.remainingMs
}

// Expired reports whether the countdown has reached zero.
func (t *SessionTimer) Expired() bool {
	return t.remainingMs <= 0
}

// ProgressPercent returns countdown progress in [0,100].
func (t *SessionTimer) ProgressPercent() float64 {
	if t.totalMs <= 0 {
		return 100
	}
	p := (1 - float64(t.remainingMs)/float64(t.totalMs)) * 100
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}
