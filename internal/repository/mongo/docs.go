package mongo

import (
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
)

const (
	sessionsCollection     = "meeting_sessions"
	participantsCollection = "meeting_participants"
)

type sessionDoc struct {
	ID                   string     `bson:"_id"`
	OwnerID              string     `bson:"mtb_id"`
	RoomName             string     `bson:"room_name"`
	StartedAt            time.Time  `bson:"started_at"`
	EndedAt              *time.Time `bson:"ended_at,omitempty"`
	TotalDurationSeconds *int64     `bson:"total_duration_seconds,omitempty"`
	MaxParticipants      int        `bson:"max_participants"`
	Status               string     `bson:"status"`
	LastHeartbeat        time.Time  `bson:"last_heartbeat"`
}

// open дублирует left_at == null для частичного уникального индекса.
type participantDoc struct {
	ID              string     `bson:"_id"`
	SessionID       string     `bson:"meeting_session_id"`
	ParticipantID   string     `bson:"participant_id"`
	DisplayName     *string    `bson:"display_name,omitempty"`
	JoinedAt        time.Time  `bson:"joined_at"`
	LeftAt          *time.Time `bson:"left_at,omitempty"`
	DurationSeconds *int64     `bson:"duration_seconds,omitempty"`
	LeftReason      *string    `bson:"left_reason,omitempty"`
	Open            bool       `bson:"open"`
}

func toSessionDoc(s *domain.MeetingSession) sessionDoc {
	return sessionDoc{
		ID:                   s.ID,
		OwnerID:              s.OwnerID,
		RoomName:             s.RoomName,
		StartedAt:            s.StartedAt.UTC(),
		EndedAt:              s.EndedAt,
		TotalDurationSeconds: s.TotalDurationSeconds,
		MaxParticipants:      s.MaxParticipants,
		Status:               string(s.Status),
		LastHeartbeat:        s.LastHeartbeat.UTC(),
	}
}

func (d sessionDoc) toDomain() *domain.MeetingSession {
	return &domain.MeetingSession{
		ID:                   d.ID,
		OwnerID:              d.OwnerID,
		RoomName:             d.RoomName,
		StartedAt:            d.StartedAt,
		EndedAt:              d.EndedAt,
		TotalDurationSeconds: d.TotalDurationSeconds,
		MaxParticipants:      d.MaxParticipants,
		Status:               domain.SessionStatus(d.Status),
		LastHeartbeat:        d.LastHeartbeat,
	}
}

func toParticipantDoc(p *domain.MeetingParticipant) participantDoc {
	d := participantDoc{
		ID:              p.ID,
		SessionID:       p.SessionID,
		ParticipantID:   p.ParticipantID,
		DisplayName:     p.DisplayName,
		JoinedAt:        p.JoinedAt.UTC(),
		LeftAt:          p.LeftAt,
		DurationSeconds: p.DurationSeconds,
		Open:            p.IsOpen(),
	}
	if p.LeftReason != nil {
		r := string(*p.LeftReason)
		d.LeftReason = &r
	}
	return d
}

func (d participantDoc) toDomain() *domain.MeetingParticipant {
	p := &domain.MeetingParticipant{
		ID:              d.ID,
		SessionID:       d.SessionID,
		ParticipantID:   d.ParticipantID,
		DisplayName:     d.DisplayName,
		JoinedAt:        d.JoinedAt,
		LeftAt:          d.LeftAt,
		DurationSeconds: d.DurationSeconds,
	}
	if d.LeftReason != nil {
		r := domain.LeaveReason(*d.LeftReason)
		p.LeftReason = &r
	}
	return p
}
