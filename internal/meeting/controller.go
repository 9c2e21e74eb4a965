package meeting

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/conference"
	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/metrics"
	"github.com/cwrk-planet/meet-bridge/internal/readiness"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"
)

// Poller: то, что контроллеру нужно от readiness.Poller.
type Poller interface {
	Start(ctx context.Context) error
	Stop()
}

// Analytics: контракт analytics.Reconciler.
type Analytics interface {
	OnLocalJoin(ctx context.Context, participantID, displayName string)
	OnRemoteJoin(ctx context.Context, participantID, displayName string)
	OnRemoteLeave(ctx context.Context, participantID string)
	OnLocalLeave(ctx context.Context, reason domain.LeaveReason)
	Abandon(ctx context.Context, reason domain.LeaveReason)
	Heartbeat(ctx context.Context)
	SessionID() string
	Close()
}

type Deps struct {
	Params domain.LaunchParams
	// NewPoller creates a fresh single-use poller for every load attempt.
	NewPoller func(progress func(readiness.Progress)) Poller
	Widgets   conference.Factory
	// Analytics may be nil: the meeting then runs without recording.
	Analytics        Analytics
	Sink             StateSink
	MountTimeout     time.Duration
	DefaultReturnURL string
	Logger           *slog.Logger
	Metrics          *metrics.Metrics
}

// Controller ведёт одну вкладку: ожидание бэкенда, виджет, аналитика, состояние.
type Controller struct {
	params       domain.LaunchParams
	newPoller    func(func(readiness.Progress)) Poller
	widgets      conference.Factory
	analytics    Analytics
	sink         StateSink
	mountTimeout time.Duration
	returnURL    string
	log          *slog.Logger
	metrics      *metrics.Metrics

	mu        sync.Mutex
	state     State
	errMsg    string
	mounted   bool
	unmounted bool
	ended     bool
	poller    Poller
	widget    conference.Widget
	runCtx    context.Context
	cancel    context.CancelFunc
}

func New(d Deps) *Controller {
	c := &Controller{
		params:       d.Params.Normalize(),
		newPoller:    d.NewPoller,
		widgets:      d.Widgets,
		analytics:    d.Analytics,
		sink:         d.Sink,
		mountTimeout: d.MountTimeout,
		log:          d.Logger,
		metrics:      d.Metrics,
		state:        StateLoading,
	}
	c.returnURL = c.params.ReturnURL
	if c.returnURL == "" {
		c.returnURL = d.DefaultReturnURL
	}
	if c.mountTimeout <= 0 {
		c.mountTimeout = 30 * time.Second
	}
	if c.log == nil {
		c.log = logger.Component("meeting")
	}
	c.log = c.log.With(slog.String(logger.KeyRoom, c.params.RoomName))
	if c.metrics == nil {
		c.metrics = metrics.Discard()
	}
	return c
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Mount blocks until the widget is ready or the load fails. A second call
// returns ErrAlreadyMounted.
func (c *Controller) Mount(ctx context.Context) error {
	c.mu.Lock()
	if c.mounted {
		c.mu.Unlock()
		return ErrAlreadyMounted
	}
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	c.mounted = true
	c.runCtx, c.cancel = context.WithCancel(ctx)
	c.setStateLocked(StateLoading, "")
	c.mu.Unlock()

	return c.load(c.runCtx)
}

// Retry restarts loading from ERROR with a new poller.
func (c *Controller) Retry() error {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	if !c.mounted || c.state != StateError {
		c.mu.Unlock()
		return ErrNotRetryable
	}
	c.setStateLocked(StateLoading, "")
	ctx := c.runCtx
	c.mu.Unlock()

	c.log.Info("retrying meeting load")
	return c.load(ctx)
}

func (c *Controller) load(ctx context.Context) error {
	if err := c.params.Validate(); err != nil {
		return c.fail(err)
	}

	p := c.newPoller(c.progress)
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return ErrUnmounted
	}
	c.poller = p
	c.mu.Unlock()

	if err := p.Start(ctx); err != nil {
		if c.isUnmounted() {
			return ErrUnmounted
		}
		return c.fail(err)
	}

	openCtx, cancel := context.WithTimeout(ctx, c.mountTimeout)
	w, err := c.widgets.Open(openCtx, c.params)
	cancel()
	if err != nil {
		if c.isUnmounted() {
			return ErrUnmounted
		}
		return c.fail(fmt.Errorf("%w: %w", conference.ErrWidgetInit, err))
	}

	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		c.dispose(w)
		return ErrUnmounted
	}
	c.widget = w
	c.setStateLocked(StateReady, "")
	c.mu.Unlock()

	w.OnEvent(c.handle)
	c.log.Info("meeting ready")
	return nil
}

func (c *Controller) progress(p readiness.Progress) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sink != nil && !c.unmounted {
		c.sink.OnProgress(p)
	}
}

func (c *Controller) fail(err error) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.log.Warn("meeting load failed", logger.Err(err))
	c.setStateLocked(StateError, userMessage(err))
	return err
}

func (c *Controller) handle(ev conference.Event) {
	ctx := c.ctx()
	a := c.analytics

	switch ev.Kind {
	case conference.VideoConferenceJoined:
		if a != nil {
			name := ev.DisplayName
			if name == "" {
				name = c.params.DisplayName
			}
			a.OnLocalJoin(ctx, ev.ParticipantID, name)
			c.refreshSession()
		}
	case conference.ParticipantJoined:
		if a != nil {
			a.OnRemoteJoin(ctx, ev.ParticipantID, ev.DisplayName)
		}
	case conference.ParticipantLeft:
		if a != nil {
			a.OnRemoteLeave(ctx, ev.ParticipantID)
		}
	case conference.VideoConferenceLeft:
		if a != nil {
			a.OnLocalLeave(ctx, domain.ParseLeaveReason(ev.Reason))
		}
		c.end()
	case conference.ReadyToClose:
		c.end()
	case conference.TabHidden:
		if a != nil {
			a.Heartbeat(ctx)
		}
	default:
		c.log.Debug("ignored widget event", slog.String("kind", string(ev.Kind)))
	}
}

// end срабатывает один раз: сначала освобождает виджет, затем показывает ENDED.
func (c *Controller) end() {
	c.mu.Lock()
	if c.ended || c.unmounted {
		c.mu.Unlock()
		return
	}
	c.ended = true
	w := c.widget
	c.widget = nil
	c.mu.Unlock()

	// readyToClose без videoConferenceLeft: сессия остаётся, запись участника закрывается
	if c.analytics != nil {
		c.analytics.Abandon(c.ctx(), domain.LeaveNormal)
	}
	c.dispose(w)

	c.mu.Lock()
	c.setStateLocked(StateEnded, "")
	c.mu.Unlock()
	c.log.Info("meeting ended")
}

// Unmount tears the tab down: poller, analytics and widget. Idempotent.
func (c *Controller) Unmount(reason domain.LeaveReason) {
	c.mu.Lock()
	if c.unmounted {
		c.mu.Unlock()
		return
	}
	c.unmounted = true
	p := c.poller
	w := c.widget
	c.widget = nil
	ctx := c.runCtx
	if c.cancel != nil {
		c.cancel()
	}
	c.mu.Unlock()

	if p != nil {
		p.Stop()
	}
	if c.analytics != nil {
		if ctx == nil {
			ctx = context.Background()
		}
		c.analytics.Abandon(ctx, reason)
		c.analytics.Close()
	}
	c.dispose(w)
	c.log.Info("meeting unmounted", slog.String("reason", string(reason)))
}

func (c *Controller) dispose(w conference.Widget) {
	if w == nil {
		return
	}
	if err := w.Dispose(); err != nil {
		c.log.Warn("dispose widget", logger.Err(err))
	}
}

func (c *Controller) refreshSession() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state == StateReady {
		c.emitLocked()
	}
}

func (c *Controller) isUnmounted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unmounted
}

func (c *Controller) ctx() context.Context {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.runCtx == nil {
		return context.Background()
	}
	return c.runCtx
}

func (c *Controller) setStateLocked(s State, msg string) {
	if c.state != s {
		c.log.Debug("page state", slog.String("from", string(c.state)), slog.String("to", string(s)))
	}
	c.state = s
	c.errMsg = msg
	c.metrics.PageStates.WithLabelValues(string(s)).Inc()
	c.emitLocked()
}

func (c *Controller) emitLocked() {
	if c.sink != nil && !c.unmounted {
		c.sink.OnState(c.snapshotLocked())
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	s := Snapshot{State: c.state, Error: c.errMsg}
	if c.state == StateError || c.state == StateEnded {
		s.ReturnURL = c.returnURL
	}
	if c.analytics != nil {
		s.SessionID = c.analytics.SessionID()
	}
	return s
}
