package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/futbolpi/harmonic-realm-sub000/internal/game"
	"github.com/futbolpi/harmonic-realm-sub000/internal/geo"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
	"github.com/futbolpi/harmonic-realm-sub000/internal/service"
)

// TickPayload is pushed to the client on every countdown tick
type TickPayload struct {
	RemainingMs     int64   `json:"remainingMs"`
	ProgressPercent float64 `json:"progressPercent"`
	WithinRange     bool    `json:"withinRange"`
}

type completionOutcome struct {
	result    *model.CompletionResult
	err       error
	attempted bool
}

// runner drives one session's countdown for the lifetime of one WebSocket
// connection. The SessionTimer is hub-owned and survives reconnects; the
// CompletionCoordinator is per-connection. The guard predicate is
// re-evaluated every tick from the freshest geofence sample; leaving range
// pauses the countdown, it never cancels the session.
type runner struct {
	svc     *service.SessionService
	session *model.MiningSession
	node    *model.Node
	timer   *game.SessionTimer
	coord   *game.CompletionCoordinator
	samples chan model.GeofenceSample
	manual  chan struct{}
	conn    *Connection
}

func newRunner(svc *service.SessionService, session *model.MiningSession, node *model.Node, conn *Connection) *runner {
	r := &runner{
		svc:     svc,
		session: session,
		node:    node,
		samples: make(chan model.GeofenceSample, 8),
		manual:  make(chan struct{}, 1),
		conn:    conn,
	}
	r.coord = game.NewCompletionCoordinator(session.ID, svc)
	// The hub owns timers across connections; reconnecting resumes the
	// countdown where it left off.
	r.timer = conn.Hub.SessionTimer(session)
	return r
}

// send marshals an envelope onto the connection, dropping on a full buffer.
func (r *runner) send(msgType MessageType, payload interface{}) {
	data, _ := json.Marshal(payload)
	msg, _ := json.Marshal(&Message{Type: msgType, Payload: data})
	select {
	case r.conn.Send <- msg:
	default:
	}
}

// withinRange checks the freshest sample against the node's geofence.
func (r *runner) withinRange(sample *model.GeofenceSample, now time.Time) bool {
	if sample == nil || !sample.Fresh(now, r.svc.MaxSampleAge()) {
		return false
	}
	dist, err := geo.DistanceMeters(sample.LatLng(), r.node.Location)
	if err != nil {
		return false
	}
	return dist <= r.svc.AllowedDistanceMeters()
}

// run blocks until the session completes, the context is cancelled, or the
// connection goes away. Stopping the loop only releases resources; the
// session itself stays ACTIVE on the server.
func (r *runner) run(ctx context.Context) {
	expireCh := make(chan struct{}, 1)
	resultCh := make(chan completionOutcome, 1)

	r.timer.SetOnExpire(func() {
		select {
		case expireCh <- struct{}{}:
		default:
		}
	})

	ticker := time.NewTicker(game.TickInterval * time.Millisecond)
	defer ticker.Stop()

	var lastSample *model.GeofenceSample
	lastTick := time.Now()
	wasWithinRange := false

	for {
		select {
		case <-ctx.Done():
			return

		case sample := <-r.samples:
			if geo.Validate(sample.LatLng()) != nil {
				r.send(MsgError, map[string]string{"error": geo.ErrInvalidCoordinate.Error()})
				continue
			}
			lastSample = &sample

		case <-r.manual:
			r.triggerCompletion(ctx, lastSample, resultCh)

		case <-expireCh:
			r.triggerCompletion(ctx, lastSample, resultCh)

		case outcome := <-resultCh:
			if !outcome.attempted {
				continue
			}
			if outcome.err != nil {
				// One notification per failed attempt; the session is still
				// ACTIVE and a manual complete can retry. Expiry fires only
				// once per timer instance.
				r.send(MsgError, map[string]string{"error": outcome.err.Error()})
				continue
			}
			r.send(MsgCompleted, outcome.result)
			r.conn.Hub.ReleaseTimer(r.session.ID)
			return

		case now := <-ticker.C:
			elapsed := now.Sub(lastTick).Milliseconds()
			lastTick = now

			inRange := r.withinRange(lastSample, now)
			if inRange != wasWithinRange {
				if inRange {
					r.send(MsgResumed, nil)
				} else {
					r.send(MsgPaused, nil)
				}
				wasWithinRange = inRange
			}

			r.timer.Tick(elapsed, game.Guard{
				WithinRange:        inRange,
				State:              model.StatePending,
				CompletionInFlight: r.coord.InFlight(),
			})

			r.send(MsgTick, TickPayload{
				RemainingMs:     r.timer.RemainingMs(),
				ProgressPercent: r.timer.ProgressPercent(),
				WithinRange:     inRange,
			})
		}
	}
}

// triggerCompletion hands the intent to the coordinator off the tick loop.
// Duplicate triggers die inside the coordinator, not here.
func (r *runner) triggerCompletion(ctx context.Context, sample *model.GeofenceSample, resultCh chan<- completionOutcome) {
	var location *model.LatLng
	if sample != nil {
		loc := sample.LatLng()
		location = &loc
	}

	go func() {
		result, err, attempted := r.coord.Trigger(ctx, r.session.UserID, location)
		if err != nil {
			log.Printf("session %s: finalize attempt failed: %v", r.session.ID, err)
		}
		select {
		case resultCh <- completionOutcome{result: result, err: err, attempted: attempted}:
		case <-ctx.Done():
		}
	}()
}
