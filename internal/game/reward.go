package game

import "github.com/futbolpi/harmonic-realm-sub000/internal/model"

// EstimateYield is the pre-session estimate shown before starting:
// the node's base yield over its nominal lock-in, no bonuses.
func EstimateYield(node *model.Node) float64 {
	return node.Type.BaseYieldPerMinute * float64(node.Type.LockInMinutes)
}

// ResolveShares computes the final share count for a completed session. The
// credited minutes are the session's lock-in snapshot (already reflecting
// any echo transmission); the chamber bonus is an opaque multiplier.
func ResolveShares(session *model.MiningSession, baseYieldPerMinute float64, bonus model.ChamberBonus) float64 {
	shares := baseYieldPerMinute * session.LockInMinutes
	if bonus.HasBoost {
		shares *= bonus.BoostMultiplier
	}
	return shares
}
