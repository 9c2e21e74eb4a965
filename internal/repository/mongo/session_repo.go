package mongo

import (
	"context"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type SessionRepo struct {
	coll *mongo.Collection
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.MeetingSession) error {
	if s.RoomName == "" || s.OwnerID == "" {
		return repository.ErrInvalidInput
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.coll.InsertOne(ctx, toSessionDoc(s))
	return mapMongoError(err)
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.MeetingSession, error) {
	var d sessionDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&d); err != nil {
		return nil, mapMongoError(err)
	}
	return d.toDomain(), nil
}

func (r *SessionRepo) FindFresh(ctx context.Context, roomName string, since time.Time) (*domain.MeetingSession, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "started_at", Value: -1}})

	var d sessionDoc
	if err := r.coll.FindOne(ctx, freshSessionFilter(roomName, since), opts).Decode(&d); err != nil {
		return nil, mapMongoError(err)
	}
	return d.toDomain(), nil
}

func (r *SessionRepo) TouchHeartbeat(ctx context.Context, id string, at time.Time) error {
	res, err := r.coll.UpdateOne(ctx, activeSessionFilter(id), bson.M{
		"$set": bson.M{"last_heartbeat": at.UTC()},
	})
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) RaiseMaxParticipants(ctx context.Context, id string, max int) (bool, error) {
	res, err := r.coll.UpdateOne(ctx, raiseMaxFilter(id, max), bson.M{
		"$set": bson.M{"max_participants": max},
	})
	if err != nil {
		return false, mapMongoError(err)
	}
	return res.ModifiedCount > 0, nil
}

func (r *SessionRepo) End(ctx context.Context, s *domain.MeetingSession) error {
	if s.EndedAt == nil || s.TotalDurationSeconds == nil {
		return repository.ErrInvalidInput
	}
	res, err := r.coll.UpdateOne(ctx, activeSessionFilter(s.ID), bson.M{
		"$set": bson.M{
			"status":                 string(domain.SessionEnded),
			"ended_at":               s.EndedAt.UTC(),
			"total_duration_seconds": *s.TotalDurationSeconds,
		},
	})
	if err != nil {
		return mapMongoError(err)
	}
	if res.MatchedCount == 0 {
		return repository.ErrConflict
	}
	return nil
}
