package events

import (
	"context"
	"time"
)

type Type string

const (
	SessionCreated    Type = "session.created"
	SessionAdopted    Type = "session.adopted"
	SessionEnded      Type = "session.ended"
	ParticipantJoined Type = "participant.joined"
	ParticipantLeft   Type = "participant.left"
)

// Event: событие жизненного цикла встречи для внешних потребителей.
type Event struct {
	Type          Type      `json:"type"`
	RoomName      string    `json:"room_name"`
	SessionID     string    `json:"session_id"`
	ParticipantID string    `json:"participant_id,omitempty"`
	Reason        string    `json:"reason,omitempty"`
	Count         int       `json:"active_count,omitempty"`
	OccurredAt    time.Time `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

type Noop struct{}

func (Noop) Publish(context.Context, Event) error { return nil }
func (Noop) Close() error                         { return nil }
