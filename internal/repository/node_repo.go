package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

type NodeRepo interface {
	Create(ctx context.Context, node *model.Node) error
	GetByID(ctx context.Context, id string) (*model.Node, error)
	List(ctx context.Context, openOnly bool) ([]*model.Node, error)
	SetOpen(ctx context.Context, id string, open bool) error
	IncrementCompletedSessions(ctx context.Context, id string) error
}

type nodeRepo struct {
	collection *mongo.Collection
}

func NewNodeRepo(db *mongo.Database) NodeRepo {
	return &nodeRepo{
		collection: db.Collection("nodes"),
	}
}

func (r *nodeRepo) Create(ctx context.Context, node *model.Node) error {
	_, err := r.collection.InsertOne(ctx, node)
	return err
}

func (r *nodeRepo) GetByID(ctx context.Context, id string) (*model.Node, error) {
	var node model.Node
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&node)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Node not found
		}
		return nil, err
	}

	return &node, nil
}

func (r *nodeRepo) List(ctx context.Context, openOnly bool) ([]*model.Node, error) {
	filter := bson.M{}
	if openOnly {
		filter["openForMining"] = true
	}

	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var nodes []*model.Node
	if err := cursor.All(ctx, &nodes); err != nil {
		return nil, err
	}
	return nodes, nil
}

func (r *nodeRepo) SetOpen(ctx context.Context, id string, open bool) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"openForMining": open}},
	)
	return err
}

func (r *nodeRepo) IncrementCompletedSessions(ctx context.Context, id string) error {
	_, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": id},
		bson.M{"$inc": bson.M{"completedSessionCount": 1}},
	)
	return err
}
