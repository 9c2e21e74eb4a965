package repository

import (
	"context"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
)

type SessionRepository interface {
	// Создает сессию; пустой ID заполняется uuid
	Create(ctx context.Context, s *domain.MeetingSession) error
	GetByID(ctx context.Context, id string) (*domain.MeetingSession, error)
	// Самая новая активная сессия комнаты с heartbeat не раньше since
	FindFresh(ctx context.Context, roomName string, since time.Time) (*domain.MeetingSession, error)
	// Обновляет last_heartbeat только у активной сессии
	TouchHeartbeat(ctx context.Context, id string, at time.Time) error
	// Поднимает max_participants, если новое значение больше; false: не изменилось
	RaiseMaxParticipants(ctx context.Context, id string, max int) (bool, error)
	// Переводит active -> ended; ErrConflict, если сессия уже закрыта
	End(ctx context.Context, s *domain.MeetingSession) error
}
