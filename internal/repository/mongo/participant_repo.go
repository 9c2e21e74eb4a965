package mongo

import (
	"context"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/repository"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ParticipantRepo struct {
	coll *mongo.Collection
}

func (r *ParticipantRepo) Create(ctx context.Context, p *domain.MeetingParticipant) error {
	if p.SessionID == "" || p.ParticipantID == "" {
		return repository.ErrInvalidInput
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.coll.InsertOne(ctx, toParticipantDoc(p))
	return mapMongoError(err)
}

func (r *ParticipantRepo) FindOpen(ctx context.Context, sessionID, participantID string) (*domain.MeetingParticipant, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "joined_at", Value: -1}})

	var d participantDoc
	if err := r.coll.FindOne(ctx, openParticipantFilter(sessionID, participantID), opts).Decode(&d); err != nil {
		return nil, mapMongoError(err)
	}
	return d.toDomain(), nil
}

func (r *ParticipantRepo) Close(ctx context.Context, p *domain.MeetingParticipant) error {
	if p.LeftAt == nil || p.DurationSeconds == nil || p.LeftReason == nil {
		return repository.ErrInvalidInput
	}
	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": p.ID, "open": true}, bson.M{
		"$set": bson.M{
			"open":             false,
			"left_at":          p.LeftAt.UTC(),
			"duration_seconds": *p.DurationSeconds,
			"left_reason":      string(*p.LeftReason),
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

func (r *ParticipantRepo) ListBySession(ctx context.Context, sessionID string) ([]*domain.MeetingParticipant, error) {
	opts := options.Find().SetSort(bson.D{{Key: "joined_at", Value: 1}})

	cur, err := r.coll.Find(ctx, bson.M{"meeting_session_id": sessionID}, opts)
	if err != nil {
		return nil, mapMongoError(err)
	}
	defer cur.Close(ctx)

	out := make([]*domain.MeetingParticipant, 0, 8)
	for cur.Next(ctx) {
		var d participantDoc
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, d.toDomain())
	}
	if err := cur.Err(); err != nil {
		return nil, mapMongoError(err)
	}
	return out, nil
}
