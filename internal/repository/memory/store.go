package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/repository"

	"github.com/google/uuid"
)

// Store держит сессии и участников в памяти процесса.
// Условные обновления выполняются под одним мьютексом.
type Store struct {
	mu           sync.Mutex
	sessions     map[string]domain.MeetingSession
	participants map[string]domain.MeetingParticipant
}

var _ repository.Store = (*Store)(nil)

func NewStore() *Store {
	return &Store{
		sessions:     make(map[string]domain.MeetingSession),
		participants: make(map[string]domain.MeetingParticipant),
	}
}

func (s *Store) Sessions() repository.SessionRepository         { return sessionRepo{s} }
func (s *Store) Participants() repository.ParticipantRepository { return participantRepo{s} }

func (s *Store) Migrate(context.Context) error { return nil }
func (s *Store) Ping(context.Context) error    { return nil }
func (s *Store) Close(context.Context) error   { return nil }

type sessionRepo struct{ s *Store }

func (r sessionRepo) Create(_ context.Context, m *domain.MeetingSession) error {
	if m.RoomName == "" || m.OwnerID == "" {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if _, ok := r.s.sessions[m.ID]; ok {
		return repository.ErrAlreadyExists
	}
	r.s.sessions[m.ID] = *m
	return nil
}

func (r sessionRepo) GetByID(_ context.Context, id string) (*domain.MeetingSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.sessions[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &m, nil
}

func (r sessionRepo) FindFresh(_ context.Context, roomName string, since time.Time) (*domain.MeetingSession, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var best *domain.MeetingSession
	for _, m := range r.s.sessions {
		if m.RoomName != roomName || m.Status != domain.SessionActive || m.LastHeartbeat.Before(since) {
			continue
		}
		if best == nil || m.StartedAt.After(best.StartedAt) {
			m := m
			best = &m
		}
	}
	if best == nil {
		return nil, repository.ErrNotFound
	}
	return best, nil
}

func (r sessionRepo) TouchHeartbeat(_ context.Context, id string, at time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.sessions[id]
	if !ok || m.Status != domain.SessionActive {
		return repository.ErrNotFound
	}
	m.LastHeartbeat = at
	r.s.sessions[id] = m
	return nil
}

func (r sessionRepo) RaiseMaxParticipants(_ context.Context, id string, max int) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.sessions[id]
	if !ok || m.MaxParticipants >= max {
		return false, nil
	}
	m.MaxParticipants = max
	r.s.sessions[id] = m
	return true, nil
}

func (r sessionRepo) End(_ context.Context, e *domain.MeetingSession) error {
	if e.EndedAt == nil || e.TotalDurationSeconds == nil {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	m, ok := r.s.sessions[e.ID]
	if !ok || m.Status != domain.SessionActive {
		return repository.ErrConflict
	}
	endedAt, total := *e.EndedAt, *e.TotalDurationSeconds
	m.Status = domain.SessionEnded
	m.EndedAt = &endedAt
	m.TotalDurationSeconds = &total
	r.s.sessions[e.ID] = m
	return nil
}

type participantRepo struct{ s *Store }

func (r participantRepo) Create(_ context.Context, p *domain.MeetingParticipant) error {
	if p.SessionID == "" || p.ParticipantID == "" {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.sessions[p.SessionID]; !ok {
		return repository.ErrInvalidInput
	}
	if r.s.findOpenLocked(p.SessionID, p.ParticipantID) != nil {
		return repository.ErrAlreadyExists
	}
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	r.s.participants[p.ID] = *p
	return nil
}

func (r participantRepo) FindOpen(_ context.Context, sessionID, participantID string) (*domain.MeetingParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p := r.s.findOpenLocked(sessionID, participantID)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	return p, nil
}

func (r participantRepo) Close(_ context.Context, c *domain.MeetingParticipant) error {
	if c.LeftAt == nil || c.DurationSeconds == nil || c.LeftReason == nil {
		return repository.ErrInvalidInput
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	p, ok := r.s.participants[c.ID]
	if !ok || !p.IsOpen() {
		return repository.ErrConflict
	}
	leftAt, d, reason := *c.LeftAt, *c.DurationSeconds, *c.LeftReason
	p.LeftAt = &leftAt
	p.DurationSeconds = &d
	p.LeftReason = &reason
	r.s.participants[c.ID] = p
	return nil
}

func (r participantRepo) ListBySession(_ context.Context, sessionID string) ([]*domain.MeetingParticipant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	out := make([]*domain.MeetingParticipant, 0, 8)
	for _, p := range r.s.participants {
		if p.SessionID == sessionID {
			p := p
			out = append(out, &p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].JoinedAt.Before(out[j].JoinedAt) })
	return out, nil
}

func (s *Store) findOpenLocked(sessionID, participantID string) *domain.MeetingParticipant {
	var best *domain.MeetingParticipant
	for _, p := range s.participants {
		if p.SessionID != sessionID || p.ParticipantID != participantID || !p.IsOpen() {
			continue
		}
		if best == nil || p.JoinedAt.After(best.JoinedAt) {
			p := p
			best = &p
		}
	}
	return best
}
