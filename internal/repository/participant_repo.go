package repository

import (
	"context"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
)

type ParticipantRepository interface {
	// ErrAlreadyExists, если у участника уже есть открытая запись в сессии
	Create(ctx context.Context, p *domain.MeetingParticipant) error
	FindOpen(ctx context.Context, sessionID, participantID string) (*domain.MeetingParticipant, error)
	// Закрывает только открытую запись; ErrConflict, если она уже закрыта
	Close(ctx context.Context, p *domain.MeetingParticipant) error
	ListBySession(ctx context.Context, sessionID string) ([]*domain.MeetingParticipant, error)
}
