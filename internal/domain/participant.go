package domain

import (
	"strings"
	"time"
)

type LeaveReason string

const (
	LeaveNormal       LeaveReason = "normal"
	LeaveTabClosed    LeaveReason = "tab_closed"
	LeaveDisconnected LeaveReason = "disconnected"
	LeaveUnknown      LeaveReason = "unknown"
)

func ParseLeaveReason(s string) LeaveReason {
	switch r := LeaveReason(strings.ToLower(strings.TrimSpace(s))); r {
	case LeaveNormal, LeaveTabClosed, LeaveDisconnected:
		return r
	case "":
		return LeaveNormal
	default:
		return LeaveUnknown
	}
}

type MeetingParticipant struct {
	ID              string       `db:"id"`
	SessionID       string       `db:"meeting_session_id"`
	ParticipantID   string       `db:"participant_id"`
	DisplayName     *string      `db:"display_name"`
	JoinedAt        time.Time    `db:"joined_at"`
	LeftAt          *time.Time   `db:"left_at"`
	DurationSeconds *int64       `db:"duration_seconds"`
	LeftReason      *LeaveReason `db:"left_reason"`
}

func NewMeetingParticipant(sessionID, participantID, displayName string, now time.Time) *MeetingParticipant {
	p := &MeetingParticipant{
		SessionID:     sessionID,
		ParticipantID: participantID,
		JoinedAt:      now,
	}
	if name := strings.TrimSpace(displayName); name != "" {
		p.DisplayName = &name
	}
	return p
}

func (p *MeetingParticipant) IsOpen() bool {
	return p.LeftAt == nil
}

// Leave closes the record; duration is counted from the join time.
func (p *MeetingParticipant) Leave(now time.Time, reason LeaveReason) error {
	if !p.IsOpen() {
		return ErrParticipantLeft
	}
	d := Seconds(p.JoinedAt, now)
	p.LeftAt = &now
	p.DurationSeconds = &d
	p.LeftReason = &reason
	return nil
}
