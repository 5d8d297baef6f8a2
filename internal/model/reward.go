package model

// ChamberBonus is the guild-artifact boost descriptor supplied at finalize
// time. The session engine treats it as opaque: it multiplies, nothing more.
type ChamberBonus struct {
	HasBoost        bool    `json:"hasBoost"`
	ChamberLevel    int     `json:"chamberLevel"`
	BoostMultiplier float64 `json:"boostMultiplier"`
}

// NoBonus is the neutral bonus used when the chamber service is unavailable.
func NoBonus() ChamberBonus {
	return ChamberBonus{HasBoost: false, BoostMultiplier: 1}
}

// CompletionResult is what a successful finalize returns to the miner.
type CompletionResult struct {
	SessionID         string       `json:"sessionId"`
	NodeID            string       `json:"nodeId"`
	MinerSharesEarned float64      `json:"minerSharesEarned"`
	ChamberBonus      ChamberBonus `json:"chamberBonus"`
}
