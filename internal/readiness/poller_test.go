package readiness

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type step struct {
	status Status
	err    error
}

// scripted возвращает шаги по порядку, последний повторяется.
type scripted struct {
	mu    sync.Mutex
	steps []step
	calls int
}

func (s *scripted) Check(context.Context) (Status, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	if i >= len(s.steps) {
		i = len(s.steps) - 1
	}
	s.calls++
	return s.steps[i].status, s.steps[i].err
}

func (s *scripted) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func fastConfig() Config {
	return Config{
		Interval:             time.Millisecond,
		RequestTimeout:       time.Second,
		MaxAttempts:          60,
		MaxConsecutiveErrors: 10,
		Deadline:             5 * time.Second,
	}
}

func TestPoller_ResolvesOnAlreadyRunning(t *testing.T) {
	c := &scripted{steps: []step{
		{status: StatusStarting},
		{status: StatusStarting},
		{status: StatusAlreadyRunning},
	}}
	p := New(c, fastConfig())

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 3, c.Calls())
	assert.Equal(t, StateDone, p.State())

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 3, c.Calls(), "no calls after success")
}

func TestPoller_ConsecutiveErrorsBound(t *testing.T) {
	boom := errors.New("connection refused")
	c := &scripted{steps: []step{{err: boom}}}
	cfg := fastConfig()
	cfg.MaxConsecutiveErrors = 4
	p := New(c, cfg)

	err := p.Start(context.Background())
	require.ErrorIs(t, err, ErrUnreachable)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 4, c.Calls())
	assert.Equal(t, StateFailed, p.State())
}

func TestPoller_ErrorsBelowBoundKeepPolling(t *testing.T) {
	boom := errors.New("502")
	c := &scripted{steps: []step{
		{err: boom}, {err: boom}, {err: boom},
		{status: StatusStarting},
		{err: boom}, {err: boom}, {err: boom},
		{status: StatusAlreadyRunning},
	}}
	cfg := fastConfig()
	cfg.MaxConsecutiveErrors = 4
	p := New(c, cfg)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 8, c.Calls())
}

func TestPoller_TimeoutAfterLastAttempt(t *testing.T) {
	c := &scripted{steps: []step{{status: StatusStarting}}}
	cfg := fastConfig()
	cfg.MaxAttempts = 3
	cfg.Interval = time.Hour // таймаут не должен ждать ещё один интервал

	var reports []Progress
	p := New(c, cfg, WithProgress(func(pr Progress) { reports = append(reports, pr) }))

	done := make(chan error, 1)
	go func() { done <- p.Start(context.Background()) }()

	select {
	case err := <-done:
		t.Fatalf("should wait between attempts, got %v", err)
	case <-time.After(20 * time.Millisecond):
	}
	p.Stop()
	assert.ErrorIs(t, <-done, ErrStopped)

	cfg.Interval = time.Millisecond
	p = New(c, cfg, WithProgress(func(pr Progress) { reports = append(reports, pr) }))
	reports = nil
	c.calls = 0

	err := p.Start(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Equal(t, 3, c.Calls())
	require.Len(t, reports, 3)
	assert.Equal(t, 3, reports[2].Attempt)
	assert.Equal(t, 3, reports[2].MaxAttempts)
	assert.Equal(t, StatusStarting, reports[2].LastStatus)
}

func TestPoller_UnknownStatusKeepsPolling(t *testing.T) {
	c := &scripted{steps: []step{
		{status: "warming"},
		{status: StatusAlreadyRunning},
	}}
	p := New(c, fastConfig())
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 2, c.Calls())
}

func TestPoller_DeadlineBoundsWait(t *testing.T) {
	c := &scripted{steps: []step{{status: StatusStarting}}}
	cfg := fastConfig()
	cfg.Interval = time.Hour
	cfg.Deadline = 30 * time.Millisecond
	p := New(c, cfg)

	start := time.Now()
	err := p.Start(context.Background())
	require.ErrorIs(t, err, ErrTimeout)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 1, c.Calls())
}

func TestPoller_StopAbortsInFlight(t *testing.T) {
	var aborted atomic.Bool
	entered := make(chan struct{})
	c := CheckerFunc(func(ctx context.Context) (Status, error) {
		close(entered)
		<-ctx.Done()
		aborted.Store(true)
		return "", ctx.Err()
	})
	p := New(c, fastConfig())

	done := make(chan error, 1)
	go func() { done <- p.Start(context.Background()) }()
	<-entered

	p.Stop()
	p.Stop()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrStopped)
	case <-time.After(time.Second):
		t.Fatal("Start did not return after Stop")
	}
	assert.True(t, aborted.Load())
	assert.Equal(t, StateStopped, p.State())
}

func TestPoller_SingleUse(t *testing.T) {
	c := &scripted{steps: []step{{status: StatusAlreadyRunning}}}
	p := New(c, fastConfig())
	require.NoError(t, p.Start(context.Background()))
	assert.ErrorIs(t, p.Start(context.Background()), ErrAlreadyStarted)

	p2 := New(c, fastConfig())
	p2.Stop()
	assert.ErrorIs(t, p2.Start(context.Background()), ErrStopped)
}

func TestPoller_PerCallTimeout(t *testing.T) {
	var calls atomic.Int32
	c := CheckerFunc(func(ctx context.Context) (Status, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return "", ctx.Err()
		}
		return StatusAlreadyRunning, nil
	})
	cfg := fastConfig()
	cfg.RequestTimeout = 10 * time.Millisecond
	p := New(c, cfg)

	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, int32(2), calls.Load())
}

func TestCanTransition(t *testing.T) {
	assert.True(t, canTransition(StateIdle, StatePolling))
	assert.True(t, canTransition(StatePolling, StateStopped))
	assert.False(t, canTransition(StateDone, StatePolling))
	assert.False(t, canTransition(StateStopped, StateDone))
	assert.False(t, canTransition(StateIdle, StateDone))
}
