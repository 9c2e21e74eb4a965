package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/repository"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type Config struct {
	URI            string
	Database       string
	ConnectTimeout time.Duration
}

type Store struct {
	client       *mongo.Client
	db           *mongo.Database
	sessions     *SessionRepo
	participants *ParticipantRepo
}

var _ repository.Store = (*Store)(nil)

// Open подключается к кластеру и проверяет primary.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	opts := options.Client().ApplyURI(cfg.URI).SetConnectTimeout(timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo: connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo: ping: %w", err)
	}

	db := client.Database(cfg.Database)
	return &Store{
		client:       client,
		db:           db,
		sessions:     &SessionRepo{coll: db.Collection(sessionsCollection)},
		participants: &ParticipantRepo{coll: db.Collection(participantsCollection)},
	}, nil
}

func (s *Store) Sessions() repository.SessionRepository         { return s.sessions }
func (s *Store) Participants() repository.ParticipantRepository { return s.participants }

// Migrate создаёт индексы, повторный вызов ничего не меняет.
func (s *Store) Migrate(ctx context.Context) error {
	_, err := s.db.Collection(sessionsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "room_name", Value: 1},
			{Key: "status", Value: 1},
			{Key: "last_heartbeat", Value: -1},
		},
		Options: options.Index().SetName("room_fresh_idx"),
	})
	if err != nil {
		return fmt.Errorf("mongo: sessions index: %w", err)
	}

	_, err = s.db.Collection(participantsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{
			{Key: "meeting_session_id", Value: 1},
			{Key: "participant_id", Value: 1},
		},
		Options: options.Index().
			SetName("open_participant_uidx").
			SetUnique(true).
			SetPartialFilterExpression(bson.M{"open": true}),
	})
	if err != nil {
		return fmt.Errorf("mongo: participants index: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func mapMongoError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, mongo.ErrNoDocuments):
		return repository.ErrNotFound
	case mongo.IsDuplicateKeyError(err):
		return repository.ErrAlreadyExists
	}
	return err
}
