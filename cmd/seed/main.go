package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

func main() {
	mongoURI := os.Getenv("MONGO_URI")
	if mongoURI == "" {
		mongoURI = "mongodb://localhost:27017"
	}
	database := os.Getenv("MONGO_DATABASE")
	if database == "" {
		database = "harmonicrealm"
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(mongoURI))
	if err != nil {
		log.Fatalf("Failed to connect to MongoDB: %v", err)
	}
	defer client.Disconnect(ctx)

	nodeColl := client.Database(database).Collection("nodes")

	now := time.Now()
	nodes := []interface{}{
		model.Node{
			ID:       "n_harbor01",
			Name:     "Harbor Resonance Point",
			Location: model.LatLng{Lat: 6.4541, Lng: 3.3947},
			Type: model.NodeType{
				BaseYieldPerMinute: 2.5,
				LockInMinutes:      10,
				MaxMiners:          5,
				Rarity:             model.RarityCommon,
			},
			OpenForMining: true,
			CreatedAt:     now,
		},
		model.Node{
			ID:       "n_ridge02",
			Name:     "Ridge Echo Chamber",
			Location: model.LatLng{Lat: 6.5244, Lng: 3.3792},
			Type: model.NodeType{
				BaseYieldPerMinute: 4.0,
				LockInMinutes:      20,
				MaxMiners:          3,
				Rarity:             model.RarityRare,
			},
			OpenForMining: true,
			Sponsor:       "Guild of the Silver Vein",
			CreatedAt:     now,
		},
		model.Node{
			ID:       "n_plaza03",
			Name:     "Old Plaza Seam",
			Location: model.LatLng{Lat: 6.4698, Lng: 3.5852},
			Type: model.NodeType{
				BaseYieldPerMinute: 1.5,
				LockInMinutes:      5,
				MaxMiners:          10,
				Rarity:             model.RarityCommon,
			},
			OpenForMining: true,
			CreatedAt:     now,
		},
		model.Node{
			ID:       "n_quarry04",
			Name:     "Flooded Quarry Vein",
			Location: model.LatLng{Lat: 6.6018, Lng: 3.3515},
			Type: model.NodeType{
				BaseYieldPerMinute: 8.0,
				LockInMinutes:      30,
				MaxMiners:          2,
				Rarity:             model.RarityLegendary,
			},
			OpenForMining: false,
			CreatedAt:     now,
		},
	}

	result, err := nodeColl.InsertMany(ctx, nodes)
	if err != nil {
		log.Fatalf("Failed to insert nodes: %v", err)
	}

	fmt.Printf("Successfully seeded %d nodes\n", len(result.InsertedIDs))
}
