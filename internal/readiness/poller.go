package readiness

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/metrics"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"
)

// Poller опрашивает Checker до готовности, ошибки или остановки.
// Один экземпляр запускается один раз.
type Poller struct {
	checker  Checker
	cfg      Config
	log      *slog.Logger
	metrics  *metrics.Metrics
	progress func(Progress)

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

type Option func(*Poller)

func WithProgress(fn func(Progress)) Option {
	return func(p *Poller) { p.progress = fn }
}

func WithLogger(l *slog.Logger) Option {
	return func(p *Poller) { p.log = l }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Poller) { p.metrics = m }
}

func New(checker Checker, cfg Config, opts ...Option) *Poller {
	p := &Poller{
		checker: checker,
		cfg:     cfg.withDefaults(),
		log:     logger.Component("readiness"),
		state:   StateIdle,
	}
	for _, o := range opts {
		o(p)
	}
	if p.metrics == nil {
		p.metrics = metrics.Discard()
	}
	return p
}

func (p *Poller) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// transition: единственное место смены состояния; вызывается под p.mu.
func (p *Poller) transition(to State) bool {
	if !canTransition(p.state, to) {
		return false
	}
	p.log.Debug("poller state", slog.String("from", p.state.String()), slog.String("to", to.String()))
	p.state = to
	return true
}

// Start blocks until the backend reports ready, the poller fails or it is stopped.
func (p *Poller) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.state == StateStopped {
		p.mu.Unlock()
		return ErrStopped
	}
	if !p.transition(StatePolling) {
		p.mu.Unlock()
		return ErrAlreadyStarted
	}
	runCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.mu.Unlock()
	defer cancel()

	started := time.Now()
	err := p.run(runCtx, started)
	p.metrics.ReadinessWait.WithLabelValues(outcome(err)).Observe(time.Since(started).Seconds())
	return err
}

func (p *Poller) run(ctx context.Context, started time.Time) error {
	var (
		attempt     int
		consecutive int
		lastErr     error
	)
	for {
		attempt++
		status, err := p.checkOnce(ctx)

		if ctx.Err() != nil {
			return p.finishStopped(ctx)
		}

		if err != nil {
			consecutive++
			lastErr = err
			p.metrics.ReadinessChecks.WithLabelValues("error").Inc()
			p.log.Warn("readiness check failed",
				slog.Int("attempt", attempt),
				slog.Int("consecutive_errors", consecutive),
				logger.Err(err))
			if consecutive >= p.cfg.MaxConsecutiveErrors {
				return p.finish(StateFailed, fmt.Errorf("%w: %d consecutive errors: %w", ErrUnreachable, consecutive, err))
			}
		} else {
			consecutive = 0
			lastErr = nil
			switch status {
			case StatusAlreadyRunning:
				p.metrics.ReadinessChecks.WithLabelValues("ready").Inc()
				p.report(attempt, started, status, nil)
				p.log.Info("conferencing backend ready", slog.Int("attempt", attempt))
				return p.finish(StateDone, nil)
			case StatusStarting:
				p.metrics.ReadinessChecks.WithLabelValues("starting").Inc()
			default:
				p.metrics.ReadinessChecks.WithLabelValues("unknown").Inc()
				p.log.Warn("unknown readiness status", slog.String("status", string(status)))
			}
		}

		p.report(attempt, started, status, lastErr)

		if attempt >= p.cfg.MaxAttempts || time.Since(started) >= p.cfg.Deadline {
			return p.finish(StateFailed, fmt.Errorf("%w after %d attempts", ErrTimeout, attempt))
		}

		if err := p.wait(ctx, started); err != nil {
			return err
		}
	}
}

func (p *Poller) checkOnce(ctx context.Context) (Status, error) {
	callCtx, cancel := context.WithTimeout(ctx, p.cfg.RequestTimeout)
	defer cancel()
	return p.checker.Check(callCtx)
}

// wait спит Interval; общий дедлайн прерывает ожидание.
func (p *Poller) wait(ctx context.Context, started time.Time) error {
	remaining := p.cfg.Deadline - time.Since(started)

	timer := time.NewTimer(p.cfg.Interval)
	defer timer.Stop()
	deadline := time.NewTimer(remaining)
	defer deadline.Stop()

	select {
	case <-timer.C:
		return nil
	case <-deadline.C:
		return p.finish(StateFailed, fmt.Errorf("%w: deadline %s exceeded", ErrTimeout, p.cfg.Deadline))
	case <-ctx.Done():
		return p.finishStopped(ctx)
	}
}

func (p *Poller) report(attempt int, started time.Time, status Status, err error) {
	if p.progress == nil {
		return
	}
	p.progress(Progress{
		Attempt:     attempt,
		MaxAttempts: p.cfg.MaxAttempts,
		Elapsed:     time.Since(started),
		LastStatus:  status,
		LastErr:     err,
	})
}

// finish фиксирует терминальное состояние; если Stop уже сработал, побеждает он.
func (p *Poller) finish(to State, err error) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.transition(to) {
		return ErrStopped
	}
	return err
}

func (p *Poller) finishStopped(ctx context.Context) error {
	p.mu.Lock()
	p.transition(StateStopped)
	p.mu.Unlock()
	if cause := context.Cause(ctx); cause != nil && cause != context.Canceled {
		return fmt.Errorf("%w: %w", ErrStopped, cause)
	}
	return ErrStopped
}

// Stop aborts the in-flight call and halts scheduling. Safe to call repeatedly.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state.Terminal() {
		return
	}
	p.transition(StateStopped)
	if p.cancel != nil {
		p.cancel()
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ready"
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrUnreachable):
		return "unreachable"
	default:
		return "stopped"
	}
}
