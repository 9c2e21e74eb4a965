package http

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/repository"
	"github.com/cwrk-planet/meet-bridge/pkg/httputil"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/go-chi/chi/v5"
)

var errAnalyticsDisabled = errors.New("analytics store is not configured")

type Handlers struct {
	Store      repository.Store
	Presence   RoomPresence
	StaleAfter time.Duration
	Now        func() time.Time
}

type sessionDTO struct {
	ID                   string     `json:"id"`
	OwnerID              string     `json:"mtb_id"`
	RoomName             string     `json:"room_name"`
	StartedAt            time.Time  `json:"started_at"`
	EndedAt              *time.Time `json:"ended_at"`
	TotalDurationSeconds *int64     `json:"total_duration_seconds"`
	MaxParticipants      int        `json:"max_participants"`
	Status               string     `json:"status"`
	LastHeartbeat        time.Time  `json:"last_heartbeat"`
}

type participantDTO struct {
	ID              string     `json:"id"`
	SessionID       string     `json:"meeting_session_id"`
	ParticipantID   string     `json:"participant_id"`
	DisplayName     *string    `json:"display_name"`
	JoinedAt        time.Time  `json:"joined_at"`
	LeftAt          *time.Time `json:"left_at"`
	DurationSeconds *int64     `json:"duration_seconds"`
	LeftReason      *string    `json:"left_reason"`
}

type roomDTO struct {
	RoomName string      `json:"room_name"`
	Session  *sessionDTO `json:"session"`
	Tabs     int         `json:"connected_tabs"`
}

func toSessionDTO(s *domain.MeetingSession) *sessionDTO {
	return &sessionDTO{
		ID:                   s.ID,
		OwnerID:              s.OwnerID,
		RoomName:             s.RoomName,
		StartedAt:            s.StartedAt,
		EndedAt:              s.EndedAt,
		TotalDurationSeconds: s.TotalDurationSeconds,
		MaxParticipants:      s.MaxParticipants,
		Status:               string(s.Status),
		LastHeartbeat:        s.LastHeartbeat,
	}
}

func toParticipantDTO(p *domain.MeetingParticipant) participantDTO {
	out := participantDTO{
		ID:              p.ID,
		SessionID:       p.SessionID,
		ParticipantID:   p.ParticipantID,
		DisplayName:     p.DisplayName,
		JoinedAt:        p.JoinedAt,
		LeftAt:          p.LeftAt,
		DurationSeconds: p.DurationSeconds,
	}
	if p.LeftReason != nil {
		r := string(*p.LeftReason)
		out.LeftReason = &r
	}
	return out
}

// GET /readyz
func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		httputil.OK(w, r, map[string]string{"status": "ok", "analytics": "disabled"})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()
	if err := h.Store.Ping(ctx); err != nil {
		logger.FromContext(r.Context()).Warn("store ping failed", logger.Err(err))
		httputil.Error(w, r, http.StatusServiceUnavailable, "store_unavailable", "analytics store is unreachable")
		return
	}
	httputil.OK(w, r, map[string]string{"status": "ok", "analytics": "ok"})
}

// GET /api/v1/sessions/{id}
func (h *Handlers) GetSession(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		h.writeErr(w, r, errAnalyticsDisabled)
		return
	}
	s, err := h.Store.Sessions().GetByID(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	httputil.OK(w, r, toSessionDTO(s))
}

// GET /api/v1/sessions/{id}/participants
func (h *Handlers) ListParticipants(w http.ResponseWriter, r *http.Request) {
	if h.Store == nil {
		h.writeErr(w, r, errAnalyticsDisabled)
		return
	}
	id := chi.URLParam(r, "id")
	if _, err := h.Store.Sessions().GetByID(r.Context(), id); err != nil {
		h.writeErr(w, r, err)
		return
	}
	parts, err := h.Store.Participants().ListBySession(r.Context(), id)
	if err != nil {
		h.writeErr(w, r, err)
		return
	}
	out := make([]participantDTO, 0, len(parts))
	for _, p := range parts {
		out = append(out, toParticipantDTO(p))
	}
	httputil.OK(w, r, out)
}

// GET /api/v1/rooms/{room}: свежая сессия комнаты и число вкладок.
func (h *Handlers) GetRoom(w http.ResponseWriter, r *http.Request) {
	room := domain.SanitizeRoomName(chi.URLParam(r, "room"))
	if room == "" {
		httputil.Error(w, r, http.StatusBadRequest, "invalid_room", "room name is required")
		return
	}
	out := roomDTO{RoomName: room}
	if h.Presence != nil {
		out.Tabs = h.Presence.Count(room)
	}
	if h.Store != nil {
		s, err := h.Store.Sessions().FindFresh(r.Context(), room, h.now().Add(-h.staleAfter()))
		switch {
		case err == nil:
			out.Session = toSessionDTO(s)
		case !errors.Is(err, repository.ErrNotFound):
			h.writeErr(w, r, err)
			return
		}
	}
	httputil.OK(w, r, out)
}

func (h *Handlers) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *Handlers) staleAfter() time.Duration {
	if h.StaleAfter > 0 {
		return h.StaleAfter
	}
	return 2 * time.Minute
}

func (h *Handlers) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	status, code := toHTTP(err)
	if status >= http.StatusInternalServerError {
		logger.FromContext(r.Context()).Error("api request failed", logger.Err(err))
	}
	httputil.Error(w, r, status, code, http.StatusText(status))
}

func toHTTP(err error) (int, string) {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, repository.ErrInvalidInput):
		return http.StatusBadRequest, "invalid_input"
	case errors.Is(err, repository.ErrConflict), errors.Is(err, repository.ErrAlreadyExists):
		return http.StatusConflict, "conflict"
	case errors.Is(err, errAnalyticsDisabled):
		return http.StatusServiceUnavailable, "analytics_disabled"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "timeout"
	default:
		return http.StatusInternalServerError, "internal"
	}
}
