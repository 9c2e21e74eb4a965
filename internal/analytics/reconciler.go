package analytics

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/events"
	"github.com/cwrk-planet/meet-bridge/internal/metrics"
	"github.com/cwrk-planet/meet-bridge/internal/repository"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"
)

// Reconciler переводит события виджета в записи хранилища аналитики.
// Все записи одной вкладки идут последовательно под mu; ошибки хранилища
// логируются и считаются, но наружу не возвращаются.
type Reconciler struct {
	store   repository.Store
	pub     events.Publisher
	cfg     Config
	room    string
	ownerID string
	now     func() time.Time
	log     *slog.Logger
	metrics *metrics.Metrics

	mu       sync.Mutex
	state    State
	session  *domain.MeetingSession
	localID  string
	local    *domain.MeetingParticipant
	remotes  map[string]struct{}
	active   int
	maxSeen  int
	hbCancel context.CancelFunc
	wg       sync.WaitGroup
}

type Option func(*Reconciler)

func WithClock(now func() time.Time) Option {
	return func(r *Reconciler) { r.now = now }
}

func WithPublisher(p events.Publisher) Option {
	return func(r *Reconciler) { r.pub = p }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(r *Reconciler) { r.metrics = m }
}

func WithLogger(l *slog.Logger) Option {
	return func(r *Reconciler) { r.log = l }
}

func New(store repository.Store, params domain.LaunchParams, cfg Config, opts ...Option) *Reconciler {
	r := &Reconciler{
		store:   store,
		pub:     events.Noop{},
		cfg:     cfg.withDefaults(),
		room:    params.RoomName,
		ownerID: params.OwnerID,
		now:     time.Now,
		remotes: make(map[string]struct{}),
	}
	for _, o := range opts {
		o(r)
	}
	if r.log == nil {
		r.log = logger.Component("analytics")
	}
	r.log = r.log.With(slog.String(logger.KeyRoom, r.room))
	if r.metrics == nil {
		r.metrics = metrics.Discard()
	}
	return r
}

func (r *Reconciler) State() State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.state
}

func (r *Reconciler) SessionID() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.session == nil {
		return ""
	}
	return r.session.ID
}

func (r *Reconciler) ActiveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Reconciler) MaxParticipants() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.maxSeen
}

// OnLocalJoin подхватывает свежую сессию комнаты или создаёт новую.
func (r *Reconciler) OnLocalJoin(ctx context.Context, participantID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateAbsent {
		r.log.Debug("local join ignored", slog.String("state", r.state.String()))
		return
	}
	now := r.now()

	s, adopted := r.findOrCreateSession(ctx, now)
	if s == nil {
		return
	}
	r.session = s
	r.maxSeen = s.MaxParticipants
	r.localID = participantID
	r.log = r.log.With(slog.String(logger.KeySessionID, s.ID))

	r.local = r.openParticipant(ctx, participantID, displayName, now)
	r.active = 1
	r.state = StateTracking

	outcome, typ := "created", events.SessionCreated
	if adopted {
		outcome, typ = "adopted", events.SessionAdopted
	}
	r.metrics.Sessions.WithLabelValues(outcome).Inc()
	r.log.Info("meeting session "+outcome,
		slog.String(logger.KeyParticipant, participantID),
		slog.Int("max_participants", r.maxSeen))
	r.publish(ctx, events.Event{Type: typ, ParticipantID: participantID, Count: r.active})

	r.startHeartbeat(ctx)
}

func (r *Reconciler) findOrCreateSession(ctx context.Context, now time.Time) (*domain.MeetingSession, bool) {
	wctx, cancel := r.writeCtx(ctx)
	defer cancel()

	found, err := r.store.Sessions().FindFresh(wctx, r.room, now.Add(-r.cfg.StaleAfter))
	switch {
	case err == nil:
		return found, true
	case !errors.Is(err, repository.ErrNotFound):
		r.fail("find_session", err)
	}

	s := domain.NewMeetingSession(r.ownerID, r.room, now)
	r.metrics.AnalyticsWrites.WithLabelValues("create_session").Inc()
	if err := r.store.Sessions().Create(wctx, s); err != nil {
		r.fail("create_session", err)
		return nil, false
	}
	return s, false
}

// openParticipant вставляет запись участника или переиспользует открытую.
func (r *Reconciler) openParticipant(ctx context.Context, participantID, displayName string, now time.Time) *domain.MeetingParticipant {
	wctx, cancel := r.writeCtx(ctx)
	defer cancel()

	parts := r.store.Participants()
	if p, err := parts.FindOpen(wctx, r.session.ID, participantID); err == nil {
		return p
	}

	p := domain.NewMeetingParticipant(r.session.ID, participantID, displayName, now)
	r.metrics.AnalyticsWrites.WithLabelValues("create_participant").Inc()
	err := parts.Create(wctx, p)
	switch {
	case err == nil:
		return p
	case errors.Is(err, repository.ErrAlreadyExists):
		if existing, ferr := parts.FindOpen(wctx, r.session.ID, participantID); ferr == nil {
			return existing
		}
	}
	r.fail("create_participant", err, slog.String(logger.KeyParticipant, participantID))
	return nil
}

func (r *Reconciler) OnRemoteJoin(ctx context.Context, participantID, displayName string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateTracking || participantID == "" || participantID == r.localID {
		return
	}
	if _, ok := r.remotes[participantID]; ok {
		r.log.Debug("duplicate remote join", slog.String(logger.KeyParticipant, participantID))
		return
	}
	r.remotes[participantID] = struct{}{}

	r.openParticipant(ctx, participantID, displayName, r.now())
	r.active++
	r.publish(ctx, events.Event{Type: events.ParticipantJoined, ParticipantID: participantID, Count: r.active})

	if r.active > r.maxSeen {
		r.maxSeen = r.active
		r.raiseMax(ctx)
	}
}

func (r *Reconciler) raiseMax(ctx context.Context) {
	wctx, cancel := r.writeCtx(ctx)
	defer cancel()

	r.metrics.AnalyticsWrites.WithLabelValues("raise_max").Inc()
	if _, err := r.store.Sessions().RaiseMaxParticipants(wctx, r.session.ID, r.maxSeen); err != nil {
		r.fail("raise_max", err)
	}
}

func (r *Reconciler) OnRemoteLeave(ctx context.Context, participantID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateTracking || participantID == "" || participantID == r.localID {
		return
	}
	// повторный уход или id, которого не видели: счётчик не трогаем
	if _, ok := r.remotes[participantID]; !ok {
		r.log.Debug("leave of untracked participant", slog.String(logger.KeyParticipant, participantID))
		return
	}
	delete(r.remotes, participantID)

	r.closeParticipant(ctx, nil, participantID, domain.LeaveNormal)
	if r.active > 0 {
		r.active--
	}
	r.publish(ctx, events.Event{Type: events.ParticipantLeft, ParticipantID: participantID, Reason: string(domain.LeaveNormal), Count: r.active})
}

// closeParticipant закрывает p или, если p == nil, открытую запись participantID.
func (r *Reconciler) closeParticipant(ctx context.Context, p *domain.MeetingParticipant, participantID string, reason domain.LeaveReason) {
	wctx, cancel := r.writeCtx(ctx)
	defer cancel()

	if p == nil {
		found, err := r.store.Participants().FindOpen(wctx, r.session.ID, participantID)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				r.fail("find_participant", err, slog.String(logger.KeyParticipant, participantID))
			}
			return
		}
		p = found
	}
	if err := p.Leave(r.now(), reason); err != nil {
		return
	}
	r.metrics.AnalyticsWrites.WithLabelValues("close_participant").Inc()
	if err := r.store.Participants().Close(wctx, p); err != nil && !errors.Is(err, repository.ErrConflict) {
		r.fail("close_participant", err, slog.String(logger.KeyParticipant, p.ParticipantID))
	}
}

// OnLocalLeave закрывает запись участника и завершает сессию. Повторные вызовы ничего не делают.
func (r *Reconciler) OnLocalLeave(ctx context.Context, reason domain.LeaveReason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateTracking {
		r.log.Debug("local leave ignored", slog.String("state", r.state.String()))
		return
	}
	r.state = StateEnded
	r.stopHeartbeatLocked()

	if r.local != nil {
		r.closeParticipant(ctx, r.local, r.localID, reason)
	}
	r.endSession(ctx)
	r.publish(ctx, events.Event{Type: events.SessionEnded, ParticipantID: r.localID, Reason: string(reason)})
}

func (r *Reconciler) endSession(ctx context.Context) {
	wctx, cancel := r.writeCtx(ctx)
	defer cancel()

	// started_at берётся из хранилища: сессию мог создать другой клиент
	s := r.session
	if fresh, err := r.store.Sessions().GetByID(wctx, s.ID); err == nil {
		s = fresh
	}
	if err := s.End(r.now()); err != nil {
		r.log.Info("session already ended")
		return
	}

	r.metrics.AnalyticsWrites.WithLabelValues("end_session").Inc()
	switch err := r.store.Sessions().End(wctx, s); {
	case err == nil:
		r.session = s
		r.metrics.Sessions.WithLabelValues("ended").Inc()
		r.log.Info("meeting session ended",
			slog.Int64("total_duration_seconds", *s.TotalDurationSeconds),
			slog.Int("max_participants", r.maxSeen))
	case errors.Is(err, repository.ErrConflict):
		r.log.Info("session already ended by another client")
	default:
		r.fail("end_session", err)
	}
}

// Abandon закрывает запись локального участника, оставляя сессию активной:
// без heartbeat она устареет сама.
func (r *Reconciler) Abandon(ctx context.Context, reason domain.LeaveReason) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.state != StateTracking {
		return
	}
	r.state = StateEnded
	r.stopHeartbeatLocked()

	if r.local != nil {
		r.closeParticipant(ctx, r.local, r.localID, reason)
	}
	r.log.Info("local participant abandoned session", slog.String("reason", string(reason)))
	r.publish(ctx, events.Event{Type: events.ParticipantLeft, ParticipantID: r.localID, Reason: string(reason)})
}

// Heartbeat sends an extra beat, e.g. when the tab becomes hidden.
func (r *Reconciler) Heartbeat(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beatLocked(ctx)
}

func (r *Reconciler) beatLocked(ctx context.Context) {
	if r.state != StateTracking {
		return
	}
	wctx, cancel := r.writeCtx(ctx)
	defer cancel()

	r.metrics.AnalyticsWrites.WithLabelValues("heartbeat").Inc()
	if err := r.store.Sessions().TouchHeartbeat(wctx, r.session.ID, r.now()); err != nil {
		r.fail("heartbeat", err)
	}
}

func (r *Reconciler) startHeartbeat(ctx context.Context) {
	hbCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	r.hbCancel = cancel

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.heartbeatLoop(hbCtx)
	}()
}

func (r *Reconciler) heartbeatLoop(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		r.mu.Lock()
		if ctx.Err() != nil {
			r.mu.Unlock()
			return
		}
		r.beatLocked(ctx)
		r.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// stopHeartbeatLocked не ждёт горутину: она сама может ждать mu.
func (r *Reconciler) stopHeartbeatLocked() {
	if r.hbCancel != nil {
		r.hbCancel()
		r.hbCancel = nil
	}
}

// Close stops the heartbeat and waits for it to exit. It does not end the session.
func (r *Reconciler) Close() {
	r.mu.Lock()
	r.stopHeartbeatLocked()
	r.mu.Unlock()
	r.wg.Wait()
}

func (r *Reconciler) writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), r.cfg.WriteTimeout)
}

func (r *Reconciler) publish(ctx context.Context, e events.Event) {
	e.RoomName = r.room
	if r.session != nil {
		e.SessionID = r.session.ID
	}
	e.OccurredAt = r.now()

	wctx, cancel := r.writeCtx(ctx)
	defer cancel()
	if err := r.pub.Publish(wctx, e); err != nil {
		r.metrics.EventsPublished.WithLabelValues("error").Inc()
		r.log.Warn("publish lifecycle event failed", slog.String("type", string(e.Type)), logger.Err(err))
		return
	}
	r.metrics.EventsPublished.WithLabelValues("ok").Inc()
}

func (r *Reconciler) fail(op string, err error, attrs ...any) {
	r.metrics.AnalyticsWriteFailure.WithLabelValues(op).Inc()
	args := append([]any{slog.String("op", op), logger.Err(err)}, attrs...)
	r.log.Error("analytics write failed", args...)
}
