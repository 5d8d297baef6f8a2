package game

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

var (
	// ErrMissingLocation means finalize was attempted without a usable
	// current location. No network or database work happens.
	ErrMissingLocation = errors.New("missing location")

	// ErrUnauthorized means finalize was attempted without a credential.
	ErrUnauthorized = errors.New("unauthorized")
)

// Finalizer performs the authoritative session completion. The server side
// of it must enforce the ACTIVE->COMPLETED transition atomically; the
// coordinator only prevents duplicate calls from one running instance.
type Finalizer interface {
	Finalize(ctx context.Context, sessionID, userID string, location *model.LatLng) (*model.CompletionResult, error)
}

// CompletionCoordinator converts completion intents (timer expiry, manual
// "complete now") into at most one in-flight finalize call per session
// instance. Duplicate triggers while a call is in flight, or after one has
// succeeded, are silent no-ops rather than errors: they are the same intent,
// not a new one.
type CompletionCoordinator struct {
	finalizer Finalizer
	sessionID string
	busy      atomic.Bool
	done      atomic.Bool
}

// NewCompletionCoordinator binds a coordinator to one session instance.
func NewCompletionCoordinator(sessionID string, f Finalizer) *CompletionCoordinator {
	return &CompletionCoordinator{finalizer: f, sessionID: sessionID}
}

// InFlight reports whether a finalize call is currently outstanding or has
// already succeeded.
func (c *CompletionCoordinator) InFlight() bool {
	return c.busy.Load() || c.done.Load()
}

// Trigger attempts the finalize call. The duplicate-trigger no-op returns
// (nil, nil, false); a real attempt returns its outcome with attempted=true.
// Preconditions fail locally before any remote work, and a failed attempt
// releases the guard so the caller may re-trigger.
func (c *CompletionCoordinator) Trigger(ctx context.Context, userID string, location *model.LatLng) (result *model.CompletionResult, err error, attempted bool) {
	if c.done.Load() {
		return nil, nil, false
	}
	if !c.busy.CompareAndSwap(false, true) {
		return nil, nil, false
	}

	if userID == "" || c.sessionID == "" {
		c.busy.Store(false)
		return nil, ErrUnauthorized, true
	}
	if location == nil {
		c.busy.Store(false)
		return nil, ErrMissingLocation, true
	}

	res, err := c.finalizer.Finalize(ctx, c.sessionID, userID, location)
	if err != nil {
		c.busy.Store(false)
		return nil, err, true
	}

	c.done.Store(true)
	c.busy.Store(false)
	return res, nil, true
}
