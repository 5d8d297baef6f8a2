package model

import "time"

// NodeRarity buckets nodes by how generous their yield is
type NodeRarity string

const (
	RarityCommon    NodeRarity = "common"
	RarityUncommon  NodeRarity = "uncommon"
	RarityRare      NodeRarity = "rare"
	RarityLegendary NodeRarity = "legendary"
)

// NodeType holds the yield and capacity parameters shared by nodes of a kind
type NodeType struct {
	BaseYieldPerMinute float64    `json:"baseYieldPerMinute" bson:"baseYieldPerMinute"`
	LockInMinutes      int        `json:"lockInMinutes" bson:"lockInMinutes"`
	MaxMiners          int        `json:"maxMiners" bson:"maxMiners"`
	Rarity             NodeRarity `json:"rarity" bson:"rarity"`
}

// Node is a fixed geographic mining site. The session engine reads nodes;
// only CompletedSessionCount is mutated here, as a side effect of completion.
type Node struct {
	ID                    string    `json:"id" bson:"_id,omitempty"`
	Name                  string    `json:"name" bson:"name"`
	Location              LatLng    `json:"location" bson:"location"`
	Type                  NodeType  `json:"type" bson:"type"`
	OpenForMining         bool      `json:"openForMining" bson:"openForMining"`
	Sponsor               string    `json:"sponsor,omitempty" bson:"sponsor,omitempty"`
	CompletedSessionCount int       `json:"completedSessionCount" bson:"completedSessionCount"`
	CreatedAt             time.Time `json:"createdAt" bson:"createdAt"`
}
