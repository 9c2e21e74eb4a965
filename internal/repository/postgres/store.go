package postgres

import (
	"context"
	_ "embed"
	"fmt"

	"github.com/cwrk-planet/meet-bridge/internal/pg"
	"github.com/cwrk-planet/meet-bridge/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

type Store struct {
	pool         *pgxpool.Pool
	sessions     *SessionRepo
	participants *ParticipantRepo
}

var _ repository.Store = (*Store)(nil)

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		pool:         pool,
		sessions:     NewSessionRepo(pool),
		participants: NewParticipantRepo(pool),
	}
}

// Open: создаёт пул по конфигурации и оборачивает его в Store.
func Open(ctx context.Context, cfg pg.Config) (*Store, error) {
	pool, err := pg.NewPool(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewStore(pool), nil
}

func (s *Store) Sessions() repository.SessionRepository         { return s.sessions }
func (s *Store) Participants() repository.ParticipantRepository { return s.participants }

// Migrate применяет встроенную схему; запросы идемпотентны.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("postgres: apply schema: %w", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	return pg.Ping(ctx, s.pool, 0)
}

func (s *Store) Close(context.Context) error {
	s.pool.Close()
	return nil
}
