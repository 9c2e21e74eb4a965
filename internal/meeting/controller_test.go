package meeting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/conference"
	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/readiness"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePoller struct {
	err      error
	block    bool
	stopped  chan struct{}
	stopOnce sync.Once
	progress func(readiness.Progress)
}

func (p *fakePoller) Start(ctx context.Context) error {
	if p.progress != nil {
		p.progress(readiness.Progress{Attempt: 1, MaxAttempts: 60})
	}
	if p.block {
		select {
		case <-p.stopped:
			return readiness.ErrStopped
		case <-ctx.Done():
			return readiness.ErrStopped
		}
	}
	return p.err
}

func (p *fakePoller) Stop() {
	p.stopOnce.Do(func() { close(p.stopped) })
}

type fakeWidget struct {
	conference.Emitter
	mu        sync.Mutex
	disposed  int
	onDispose func()
}

func (w *fakeWidget) Dispose() error {
	w.mu.Lock()
	w.disposed++
	hook := w.onDispose
	w.mu.Unlock()
	if hook != nil {
		hook()
	}
	w.Close()
	return nil
}

func (w *fakeWidget) Disposed() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.disposed
}

type fakeAnalytics struct {
	mu    sync.Mutex
	calls []string
}

func (a *fakeAnalytics) rec(s string) {
	a.mu.Lock()
	a.calls = append(a.calls, s)
	a.mu.Unlock()
}

func (a *fakeAnalytics) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func (a *fakeAnalytics) OnLocalJoin(_ context.Context, id, name string) {
	a.rec("join:" + id + ":" + name)
}
func (a *fakeAnalytics) OnRemoteJoin(_ context.Context, id, _ string) { a.rec("remote_join:" + id) }
func (a *fakeAnalytics) OnRemoteLeave(_ context.Context, id string)   { a.rec("remote_leave:" + id) }
func (a *fakeAnalytics) OnLocalLeave(_ context.Context, r domain.LeaveReason) {
	a.rec("leave:" + string(r))
}
func (a *fakeAnalytics) Abandon(_ context.Context, r domain.LeaveReason) {
	a.rec("abandon:" + string(r))
}
func (a *fakeAnalytics) Heartbeat(context.Context) { a.rec("heartbeat") }
func (a *fakeAnalytics) SessionID() string         { return "s-1" }
func (a *fakeAnalytics) Close()                    { a.rec("close") }

type recordingSink struct {
	mu       sync.Mutex
	states   []Snapshot
	progress []readiness.Progress
}

func (s *recordingSink) OnState(snap Snapshot) {
	s.mu.Lock()
	s.states = append(s.states, snap)
	s.mu.Unlock()
}

func (s *recordingSink) OnProgress(p readiness.Progress) {
	s.mu.Lock()
	s.progress = append(s.progress, p)
	s.mu.Unlock()
}

func (s *recordingSink) States() []State {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]State, 0, len(s.states))
	for _, snap := range s.states {
		out = append(out, snap.State)
	}
	return out
}

func (s *recordingSink) Last() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.states[len(s.states)-1]
}

type harness struct {
	ctrl      *Controller
	sink      *recordingSink
	analytics *fakeAnalytics
	widget    *fakeWidget
	pollers   []*fakePoller
	pollErrs  []error
	openErr   error
}

func newHarness(t *testing.T, params domain.LaunchParams) *harness {
	t.Helper()
	h := &harness{
		sink:      &recordingSink{},
		analytics: &fakeAnalytics{},
		widget:    &fakeWidget{},
	}
	h.ctrl = New(Deps{
		Params: params,
		NewPoller: func(progress func(readiness.Progress)) Poller {
			p := &fakePoller{stopped: make(chan struct{}), progress: progress}
			if n := len(h.pollers); n < len(h.pollErrs) {
				p.err = h.pollErrs[n]
			}
			h.pollers = append(h.pollers, p)
			return p
		},
		Widgets: conference.FactoryFunc(func(context.Context, domain.LaunchParams) (conference.Widget, error) {
			if h.openErr != nil {
				return nil, h.openErr
			}
			return h.widget, nil
		}),
		Analytics:        h.analytics,
		Sink:             h.sink,
		DefaultReturnURL: "https://vmtb.in",
	})
	return h
}

var params = domain.LaunchParams{RoomName: "Demo", OwnerID: "mtb-1", DisplayName: "Ann"}

func TestController_HappyPath(t *testing.T) {
	h := newHarness(t, params)

	require.NoError(t, h.ctrl.Mount(context.Background()))
	assert.Equal(t, StateReady, h.ctrl.State())
	assert.Len(t, h.sink.progress, 1)

	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceJoined, ParticipantID: "self"})
	h.widget.Emit(conference.Event{Kind: conference.ParticipantJoined, ParticipantID: "bob"})
	h.widget.Emit(conference.Event{Kind: conference.TabHidden})
	h.widget.Emit(conference.Event{Kind: conference.ParticipantLeft, ParticipantID: "bob"})
	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceLeft})
	h.widget.Emit(conference.Event{Kind: conference.ReadyToClose})

	assert.Equal(t, StateEnded, h.ctrl.State())
	assert.Equal(t, 1, h.widget.Disposed())
	assert.Equal(t, []string{
		"join:self:Ann",
		"remote_join:bob",
		"heartbeat",
		"remote_leave:bob",
		"leave:normal",
		"abandon:normal",
	}, h.analytics.Calls())

	last := h.sink.Last()
	assert.Equal(t, StateEnded, last.State)
	assert.Equal(t, "https://vmtb.in", last.ReturnURL)
	assert.Equal(t, "s-1", last.SessionID)
}

func TestController_DuplicateMount(t *testing.T) {
	h := newHarness(t, params)
	require.NoError(t, h.ctrl.Mount(context.Background()))
	assert.ErrorIs(t, h.ctrl.Mount(context.Background()), ErrAlreadyMounted)
	assert.Len(t, h.pollers, 1)
}

func TestController_PollerFailureThenRetry(t *testing.T) {
	h := newHarness(t, domain.LaunchParams{RoomName: "demo", ReturnURL: "https://app.example/back"})
	h.pollErrs = []error{readiness.ErrUnreachable}

	err := h.ctrl.Mount(context.Background())
	require.ErrorIs(t, err, readiness.ErrUnreachable)
	assert.Equal(t, StateError, h.ctrl.State())
	snap := h.ctrl.Snapshot()
	assert.Equal(t, "Unable to connect to server", snap.Error)
	assert.Equal(t, "https://app.example/back", snap.ReturnURL)

	require.NoError(t, h.ctrl.Retry())
	assert.Equal(t, StateReady, h.ctrl.State())
	assert.Len(t, h.pollers, 2, "retry uses a fresh poller")
	assert.ErrorIs(t, h.ctrl.Retry(), ErrNotRetryable)

	assert.Equal(t, []State{StateLoading, StateError, StateLoading, StateReady}, h.sink.States())
}

func TestController_TimeoutMessage(t *testing.T) {
	h := newHarness(t, params)
	h.pollErrs = []error{readiness.ErrTimeout}

	require.ErrorIs(t, h.ctrl.Mount(context.Background()), readiness.ErrTimeout)
	assert.Equal(t, "Server startup timeout", h.ctrl.Snapshot().Error)
}

func TestController_MissingRoom(t *testing.T) {
	h := newHarness(t, domain.LaunchParams{RoomName: "!!!"})
	require.ErrorIs(t, h.ctrl.Mount(context.Background()), domain.ErrMissingRoom)
	assert.Equal(t, "No room name provided", h.ctrl.Snapshot().Error)
	assert.Empty(t, h.pollers)
}

func TestController_WidgetInitFailure(t *testing.T) {
	h := newHarness(t, params)
	h.openErr = errors.New("script load failed")

	err := h.ctrl.Mount(context.Background())
	require.ErrorIs(t, err, conference.ErrWidgetInit)
	assert.Equal(t, StateError, h.ctrl.State())
	assert.Equal(t, "Failed to load conference", h.ctrl.Snapshot().Error)
}

func TestController_UnmountWhilePolling(t *testing.T) {
	h := newHarness(t, params)
	h.ctrl.newPoller = func(progress func(readiness.Progress)) Poller {
		p := &fakePoller{stopped: make(chan struct{}), block: true}
		h.pollers = append(h.pollers, p)
		return p
	}

	done := make(chan error, 1)
	go func() { done <- h.ctrl.Mount(context.Background()) }()
	require.Eventually(t, func() bool {
		h.ctrl.mu.Lock()
		defer h.ctrl.mu.Unlock()
		return h.ctrl.poller != nil
	}, time.Second, time.Millisecond)

	h.ctrl.Unmount(domain.LeaveTabClosed)
	h.ctrl.Unmount(domain.LeaveTabClosed)

	select {
	case err := <-done:
		assert.ErrorIs(t, err, ErrUnmounted)
	case <-time.After(time.Second):
		t.Fatal("Mount did not return after Unmount")
	}
	assert.NotEqual(t, StateError, h.ctrl.State())
	assert.Equal(t, []string{"abandon:tab_closed", "close"}, h.analytics.Calls())
}

func TestController_UnmountDisposesWidget(t *testing.T) {
	h := newHarness(t, params)
	require.NoError(t, h.ctrl.Mount(context.Background()))
	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceJoined, ParticipantID: "self"})

	h.ctrl.Unmount(domain.LeaveDisconnected)
	assert.Equal(t, 1, h.widget.Disposed())
	assert.Equal(t, []string{"join:self:Ann", "abandon:disconnected", "close"}, h.analytics.Calls())
	assert.ErrorIs(t, h.ctrl.Retry(), ErrUnmounted)
}

func TestController_WithoutAnalytics(t *testing.T) {
	h := newHarness(t, params)
	h.ctrl.analytics = nil

	require.NoError(t, h.ctrl.Mount(context.Background()))
	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceJoined, ParticipantID: "self"})
	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceLeft, Reason: "tab_closed"})

	assert.Equal(t, StateEnded, h.ctrl.State())
	assert.Empty(t, h.sink.Last().SessionID)
}

func TestController_DisposesBeforeEnded(t *testing.T) {
	h := newHarness(t, params)
	var statesAtDispose []State
	h.widget.onDispose = func() { statesAtDispose = h.sink.States() }

	require.NoError(t, h.ctrl.Mount(context.Background()))
	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceJoined, ParticipantID: "self"})
	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceLeft})

	require.NotEmpty(t, statesAtDispose)
	assert.NotContains(t, statesAtDispose, StateEnded)
	assert.Equal(t, StateEnded, h.sink.Last().State)
	assert.Equal(t, 1, h.widget.Disposed())
}

func TestController_EventsBeforeSubscriptionAreKept(t *testing.T) {
	h := newHarness(t, params)
	// виджет успел прислать событие до того, как контроллер подписался
	h.widget.Emit(conference.Event{Kind: conference.VideoConferenceJoined, ParticipantID: "self"})

	require.NoError(t, h.ctrl.Mount(context.Background()))
	assert.Equal(t, []string{"join:self:Ann"}, h.analytics.Calls())
	assert.Equal(t, StateReady, h.ctrl.State())
}
