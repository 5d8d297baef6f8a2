package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/futbolpi/harmonic-realm-sub000/internal/game"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

func activeSession() *model.MiningSession {
	return &model.MiningSession{
		ID:            "s_test",
		NodeID:        "n_test",
		UserID:        "u_test",
		Status:        model.SessionActive,
		LockInMinutes: 10,
	}
}

func holdingGuard() game.Guard {
	return game.Guard{WithinRange: true, State: model.StatePending}
}

func TestSessionTimerSurvivesReconnect(t *testing.T) {
	hub := NewHub()
	session := activeSession()

	timer := hub.SessionTimer(session)
	timer.Tick(998, holdingGuard())
	require.Equal(t, int64(599_002), timer.RemainingMs())

	// A reconnect observes the same session and must not restart the countdown.
	again := hub.SessionTimer(session)
	require.Same(t, timer, again)
	require.LessOrEqual(t, again.RemainingMs(), int64(599_002))
}

func TestSessionTimerResetsAfterRelease(t *testing.T) {
	hub := NewHub()
	session := activeSession()

	timer := hub.SessionTimer(session)
	timer.Tick(10_000, holdingGuard())
	hub.ReleaseTimer(session.ID)

	fresh := hub.SessionTimer(session)
	require.NotSame(t, timer, fresh)
	require.Equal(t, int64(600_000), fresh.RemainingMs())
}

func TestRegisterSessionClaimsSlotOnce(t *testing.T) {
	hub := NewHub()
	first := &Connection{SessionID: "s_test", UserID: "u_a", Send: make(chan []byte, 1), Hub: hub}
	second := &Connection{SessionID: "s_test", UserID: "u_b", Send: make(chan []byte, 1), Hub: hub}

	require.True(t, hub.RegisterSession(first))
	require.False(t, hub.RegisterSession(second))
	require.True(t, hub.HasSession("s_test"))

	hub.Unregister(first)
	require.Eventually(t, func() bool {
		return !hub.HasSession("s_test")
	}, time.Second, 10*time.Millisecond)

	require.True(t, hub.RegisterSession(second))
}
