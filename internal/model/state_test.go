package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

var allStates = []MiningState{
	StateNoLocation,
	StateCancelled,
	StateCompleted,
	StatePending,
	StateNodeClosed,
	StateNodeFull,
	StateTooFar,
	StateEligible,
}

// Every state has exactly one message; no state falls through to the
// unknown-state fallback.
func TestStateMessagesTotal(t *testing.T) {
	require.Len(t, stateMessages, len(allStates))
	for _, state := range allStates {
		require.NotEmpty(t, state.Message(), "state %s has no message", state)
		require.NotEqual(t, "Unknown mining state.", state.Message())
	}
}

func TestUnknownStateFallback(t *testing.T) {
	require.Equal(t, "Unknown mining state.", MiningState("BOGUS").Message())
}

func TestOnlyEligibleCanStart(t *testing.T) {
	for _, state := range allStates {
		require.Equal(t, state == StateEligible, state.CanStart(), "state %s", state)
	}
}

func TestTerminalStatuses(t *testing.T) {
	require.False(t, SessionActive.Terminal())
	require.True(t, SessionCompleted.Terminal())
	require.True(t, SessionCancelled.Terminal())
}
