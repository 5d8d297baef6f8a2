package model

import "time"

type SessionStatus string

const (
	SessionActive    SessionStatus = "ACTIVE"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// Terminal reports whether the status admits no further transitions.
func (s SessionStatus) Terminal() bool {
	return s == SessionCompleted || s == SessionCancelled
}

// MiningSession is one miner's timed attempt at one node. LockInMinutes is a
// snapshot taken at start; it may be shorter than the node's nominal value
// when an echo transmission was applied, and countdown math always uses the
// snapshot, never the node's live value.
type MiningSession struct {
	ID                      string        `json:"id" bson:"_id,omitempty"`
	NodeID                  string        `json:"nodeId" bson:"nodeId"`
	UserID                  string        `json:"userId" bson:"userId"`
	Status                  SessionStatus `json:"status" bson:"status"`
	StartedAt               time.Time     `json:"startedAt" bson:"startedAt"`
	CompletedAt             *time.Time    `json:"completedAt,omitempty" bson:"completedAt,omitempty"`
	LockInMinutes           float64       `json:"lockInMinutes" bson:"lockInMinutes"`
	EchoTransmissionApplied bool          `json:"echoTransmissionApplied" bson:"echoTransmissionApplied"`
	MinerSharesEarned       float64       `json:"minerSharesEarned" bson:"minerSharesEarned"`
}

// LockInDuration is the snapshot lock-in as a time.Duration.
func (s *MiningSession) LockInDuration() time.Duration {
	return time.Duration(s.LockInMinutes * float64(time.Minute))
}
