// Package game holds the geofenced session engine: eligibility derivation,
// the pausable lock-in countdown, at-most-once completion, and reward math.
package game

import (
	"github.com/futbolpi/harmonic-realm-sub000/internal/geo"
	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

// EligibilityInput is everything state derivation needs for one caller and
// one node. ExistingSession is the caller's most recent session at the node,
// nil if they never mined here.
type EligibilityInput struct {
	UserLocation        *model.LatLng
	Node                *model.Node
	AllowedDistanceM    float64
	ExistingSession     *model.MiningSession
	CompletedMinerCount int
}

// Evaluate derives the caller's MiningState. The rules are priority-ordered
// and the first match wins: session history dominates node availability,
// which dominates proximity, so a miner mid-session never sees "too far"
// and a closed node is reported even to a miner standing on it.
func Evaluate(in EligibilityInput) model.MiningState {
	if in.UserLocation == nil {
		return model.StateNoLocation
	}

	if s := in.ExistingSession; s != nil {
		switch s.Status {
		case model.SessionCancelled:
			return model.StateCancelled
		case model.SessionCompleted:
			return model.StateCompleted
		case model.SessionActive:
			// Distance gates the timer, not this state.
			return model.StatePending
		}
	}

	if !in.Node.OpenForMining {
		return model.StateNodeClosed
	}
	if in.CompletedMinerCount >= in.Node.Type.MaxMiners {
		return model.StateNodeFull
	}

	dist, err := geo.DistanceMeters(*in.UserLocation, in.Node.Location)
	if err != nil {
		// Malformed reading degrades to NoLocation.
		return model.StateNoLocation
	}
	if dist > in.AllowedDistanceM {
		return model.StateTooFar
	}

	return model.StateEligible
}
