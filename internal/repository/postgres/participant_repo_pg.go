package postgres

import (
	"context"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/repository"
	"github.com/cwrk-planet/meet-bridge/internal/repository/queries"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

type ParticipantRepo struct {
	q querier
}

func NewParticipantRepo(q querier) *ParticipantRepo {
	return &ParticipantRepo{q: q}
}

func (r *ParticipantRepo) Create(ctx context.Context, p *domain.MeetingParticipant) error {
	if p.SessionID == "" || p.ParticipantID == "" {
		return repository.ErrInvalidInput
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	_, err := r.q.Exec(
		ctx,
		queries.QueryCreateParticipant,
		p.ID,
		p.SessionID,
		p.ParticipantID,
		toNullStringPtr(p.DisplayName),
		p.JoinedAt,
	)
	return mapPgError(err)
}

func (r *ParticipantRepo) FindOpen(ctx context.Context, sessionID, participantID string) (*domain.MeetingParticipant, error) {
	p, err := scanParticipant(r.q.QueryRow(ctx, queries.QueryFindOpenParticipant, sessionID, participantID))
	if err != nil {
		return nil, mapPgError(err)
	}
	return p, nil
}

func (r *ParticipantRepo) Close(ctx context.Context, p *domain.MeetingParticipant) error {
	if p.LeftAt == nil || p.DurationSeconds == nil || p.LeftReason == nil {
		return repository.ErrInvalidInput
	}
	tag, err := r.q.Exec(ctx, queries.QueryCloseParticipant, p.ID, *p.LeftAt, *p.DurationSeconds, string(*p.LeftReason))
	if err != nil {
		return mapPgError(err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrConflict
	}
	return nil
}

func (r *ParticipantRepo) ListBySession(ctx context.Context, sessionID string) ([]*domain.MeetingParticipant, error) {
	rows, err := r.q.Query(ctx, queries.QueryListParticipantsBySession, sessionID)
	if err != nil {
		return nil, mapPgError(err)
	}
	defer rows.Close()

	out := make([]*domain.MeetingParticipant, 0, 8)
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, mapPgError(err)
		}
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPgError(err)
	}
	return out, nil
}

func scanParticipant(row pgx.Row) (*domain.MeetingParticipant, error) {
	var (
		p      domain.MeetingParticipant
		reason *string
	)
	err := row.Scan(
		&p.ID,
		&p.SessionID,
		&p.ParticipantID,
		&p.DisplayName,
		&p.JoinedAt,
		&p.LeftAt,
		&p.DurationSeconds,
		&reason,
	)
	if err != nil {
		return nil, err
	}
	if reason != nil {
		r := domain.LeaveReason(*reason)
		p.LeftReason = &r
	}
	return &p, nil
}
