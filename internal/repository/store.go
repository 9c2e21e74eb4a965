package repository

import "context"

// Store: хранилище аналитики встреч (postgres, mongo или память).
type Store interface {
	Sessions() SessionRepository
	Participants() ParticipantRepository
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
