package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/futbolpi/harmonic-realm-sub000/internal/model"
)

type SessionRepo interface {
	Create(ctx context.Context, session *model.MiningSession) error
	GetByID(ctx context.Context, id string) (*model.MiningSession, error)
	GetLatestByUserAndNode(ctx context.Context, userID, nodeID string) (*model.MiningSession, error)
	// CompleteActive atomically transitions ACTIVE->COMPLETED and records the
	// earned shares. Returns nil if the session was not ACTIVE, so at most
	// one caller ever receives the completed document.
	CompleteActive(ctx context.Context, id string, shares float64, completedAt time.Time) (*model.MiningSession, error)
	// CancelActive atomically transitions ACTIVE->CANCELLED. Returns nil if
	// the session was not ACTIVE.
	CancelActive(ctx context.Context, id string) (*model.MiningSession, error)
	CountCompletedByNode(ctx context.Context, nodeID string) (int, error)
	EnsureIndexes(ctx context.Context) error
}

type sessionRepo struct {
	collection *mongo.Collection
}

func NewSessionRepo(db *mongo.Database) SessionRepo {
	return &sessionRepo{
		collection: db.Collection("sessions"),
	}
}

func (r *sessionRepo) Create(ctx context.Context, session *model.MiningSession) error {
	_, err := r.collection.InsertOne(ctx, session)
	return err
}

func (r *sessionRepo) GetByID(ctx context.Context, id string) (*model.MiningSession, error) {
	var session model.MiningSession
	err := r.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Session not found
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepo) GetLatestByUserAndNode(ctx context.Context, userID, nodeID string) (*model.MiningSession, error) {
	opts := options.FindOne().SetSort(bson.M{"startedAt": -1})

	var session model.MiningSession
	err := r.collection.FindOne(ctx, bson.M{"userId": userID, "nodeId": nodeID}, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepo) CompleteActive(ctx context.Context, id string, shares float64, completedAt time.Time) (*model.MiningSession, error) {
	filter := bson.M{"_id": id, "status": model.SessionActive}
	update := bson.M{"$set": bson.M{
		"status":            model.SessionCompleted,
		"minerSharesEarned": shares,
		"completedAt":       completedAt,
	}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.MiningSession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil // Lost the race or already terminal
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepo) CancelActive(ctx context.Context, id string) (*model.MiningSession, error) {
	filter := bson.M{"_id": id, "status": model.SessionActive}
	update := bson.M{"$set": bson.M{"status": model.SessionCancelled}}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var session model.MiningSession
	err := r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&session)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, nil
		}
		return nil, err
	}

	return &session, nil
}

func (r *sessionRepo) CountCompletedByNode(ctx context.Context, nodeID string) (int, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"nodeId": nodeID,
		"status": model.SessionCompleted,
	})
	return int(count), err
}

// EnsureIndexes creates the partial unique index enforcing at most one
// ACTIVE session per (user, node) even when two devices race.
func (r *sessionRepo) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "userId", Value: 1}, {Key: "nodeId", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"status": model.SessionActive}),
		},
		{
			Keys: bson.D{{Key: "nodeId", Value: 1}, {Key: "status", Value: 1}},
		},
	})
	return err
}
