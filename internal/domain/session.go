package domain

import "time"

type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// MeetingSession: одна встреча в комнате, от первого входа до явного выхода.
type MeetingSession struct {
	ID                   string        `db:"id"`
	OwnerID              string        `db:"mtb_id"`
	RoomName             string        `db:"room_name"`
	StartedAt            time.Time     `db:"started_at"`
	EndedAt              *time.Time    `db:"ended_at"`
	TotalDurationSeconds *int64        `db:"total_duration_seconds"`
	MaxParticipants      int           `db:"max_participants"`
	Status               SessionStatus `db:"status"`
	LastHeartbeat        time.Time     `db:"last_heartbeat"`
}

func NewMeetingSession(ownerID, roomName string, now time.Time) *MeetingSession {
	return &MeetingSession{
		OwnerID:         ownerID,
		RoomName:        roomName,
		StartedAt:       now,
		LastHeartbeat:   now,
		Status:          SessionActive,
		MaxParticipants: 1,
	}
}

// IsFresh reports whether the session may be adopted by a joining client.
// Freshness is derived from the heartbeat age only and is never persisted.
func (s *MeetingSession) IsFresh(now time.Time, staleAfter time.Duration) bool {
	return s.Status == SessionActive && !s.LastHeartbeat.Before(now.Add(-staleAfter))
}

// End moves the session to ended. The transition is one-way.
func (s *MeetingSession) End(now time.Time) error {
	if s.Status == SessionEnded {
		return ErrSessionEnded
	}
	d := Seconds(s.StartedAt, now)
	s.EndedAt = &now
	s.TotalDurationSeconds = &d
	s.Status = SessionEnded
	return nil
}

// Seconds returns the whole seconds between from and to, never negative.
func Seconds(from, to time.Time) int64 {
	d := int64(to.Sub(from) / time.Second)
	if d < 0 {
		return 0
	}
	return d
}
