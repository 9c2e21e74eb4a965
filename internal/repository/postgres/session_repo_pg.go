package postgres

import (
	"context"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/repository"
	"github.com/cwrk-planet/meet-bridge/internal/repository/queries"

	"github.com/google/uuid"
)

type SessionRepo struct {
	q querier
}

func NewSessionRepo(q querier) *SessionRepo {
	return &SessionRepo{q: q}
}

func (r *SessionRepo) Create(ctx context.Context, s *domain.MeetingSession) error {
	if s.RoomName == "" || s.OwnerID == "" {
		return repository.ErrInvalidInput
	}
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	_, err := r.q.Exec(
		ctx,
		queries.QueryCreateSession,
		s.ID,
		s.OwnerID,
		s.RoomName,
		s.StartedAt,
		s.MaxParticipants,
		string(s.Status),
		s.LastHeartbeat,
	)
	return mapPgError(err)
}

func (r *SessionRepo) GetByID(ctx context.Context, id string) (*domain.MeetingSession, error) {
	return r.getOne(ctx, queries.QueryGetSessionByID, id)
}

// FindFresh: самая новая активная сессия комнаты, живая по heartbeat.
func (r *SessionRepo) FindFresh(ctx context.Context, roomName string, since time.Time) (*domain.MeetingSession, error) {
	return r.getOne(ctx, queries.QueryFindFreshSession, roomName, since)
}

func (r *SessionRepo) TouchHeartbeat(ctx context.Context, id string, at time.Time) error {
	tag, err := r.q.Exec(ctx, queries.QueryTouchHeartbeat, id, at)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *SessionRepo) RaiseMaxParticipants(ctx context.Context, id string, max int) (bool, error) {
	tag, err := r.q.Exec(ctx, queries.QueryRaiseMaxParticipants, id, max)
	if err != nil {
		return false, mapPgError(err)
	}
	return tag.RowsAffected() > 0, nil
}

func (r *SessionRepo) End(ctx context.Context, s *domain.MeetingSession) error {
	if s.EndedAt == nil || s.TotalDurationSeconds == nil {
		return repository.ErrInvalidInput
	}
	tag, err := r.q.Exec(ctx, queries.QueryEndSession, s.ID, *s.EndedAt, *s.TotalDurationSeconds)
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *SessionRepo) getOne(ctx context.Context, sql string, args ...any) (*domain.MeetingSession, error) {
	var (
		s      domain.MeetingSession
		status string
	)
	err := r.q.QueryRow(ctx, sql, args...).Scan(
		&s.ID,
		&s.OwnerID,
		&s.RoomName,
		&s.StartedAt,
		&s.EndedAt,
		&s.TotalDurationSeconds,
		&s.MaxParticipants,
		&status,
		&s.LastHeartbeat,
	)
	if err != nil {
		return nil, mapPgError(err)
	}
	s.Status = domain.SessionStatus(status)
	return &s, nil
}
