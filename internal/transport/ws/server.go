package ws

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/cwrk-planet/meet-bridge/internal/analytics"
	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/events"
	"github.com/cwrk-planet/meet-bridge/internal/meeting"
	"github.com/cwrk-planet/meet-bridge/internal/metrics"
	"github.com/cwrk-planet/meet-bridge/internal/readiness"
	"github.com/cwrk-planet/meet-bridge/internal/repository"
	"github.com/cwrk-planet/meet-bridge/pkg/logger"

	"github.com/gorilla/websocket"
)

type Options struct {
	Checker   readiness.Checker
	Readiness readiness.Config
	// Store == nil отключает аналитику
	Store            repository.Store
	Publisher        events.Publisher
	Analytics        analytics.Config
	JitsiDomain      string
	MountTimeout     time.Duration
	DefaultReturnURL string
	AllowedOrigins   []string
	PingEvery        time.Duration
	Metrics          *metrics.Metrics
	Logger           *slog.Logger
}

type Server struct {
	upgrader websocket.Upgrader
	hub      *Hub
	opts     Options
	log      *slog.Logger
	metrics  *metrics.Metrics
}

func NewServer(hub *Hub, opts Options) *Server {
	if opts.PingEvery <= 0 {
		opts.PingEvery = 15 * time.Second
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Noop{}
	}
	s := &Server{
		hub:     hub,
		opts:    opts,
		log:     opts.Logger,
		metrics: opts.Metrics,
	}
	if s.log == nil {
		s.log = logger.Component("ws")
	}
	if s.metrics == nil {
		s.metrics = metrics.Discard()
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	return s
}

func (s *Server) checkOrigin(r *http.Request) bool {
	if len(s.opts.AllowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	return origin == "" || slices.Contains(s.opts.AllowedOrigins, origin)
}

func (s *Server) Handler() http.Handler {
	return http.HandlerFunc(s.HandleWS)
}

// LaunchParamsFromQuery reads ?room=&mtb_id=&mtb_name=&returnUrl=.
func LaunchParamsFromQuery(r *http.Request) domain.LaunchParams {
	q := r.URL.Query()
	return domain.LaunchParams{
		RoomName:    q.Get("room"),
		OwnerID:     q.Get("mtb_id"),
		DisplayName: q.Get("mtb_name"),
		ReturnURL:   q.Get("returnUrl"),
	}.Normalize()
}

// WS endpoint: GET /ws/meetings?room=...&mtb_id=...&mtb_name=...&returnUrl=...
func (s *Server) HandleWS(w http.ResponseWriter, r *http.Request) {
	params := LaunchParamsFromQuery(r)
	log := logger.FromContext(r.Context()).With(slog.String(logger.KeyRoom, params.RoomName))

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("ws upgrade failed", logger.Err(err))
		return
	}

	c := newWsConn(conn, params.RoomName)
	s.hub.Add(c)
	s.metrics.WSConnections.Inc()
	s.broadcastPresence(params.RoomName)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	b := newBridge(c, s.opts.JitsiDomain)
	ctrl := meeting.New(meeting.Deps{
		Params:           params,
		NewPoller:        s.newPoller,
		Widgets:          b,
		Analytics:        s.analyticsFor(params, log),
		Sink:             &connSink{c: c},
		MountTimeout:     s.opts.MountTimeout,
		DefaultReturnURL: s.opts.DefaultReturnURL,
		Logger:           log.With(slog.String(logger.KeyComponent, "meeting")),
		Metrics:          s.metrics,
	})

	go func() {
		if err := ctrl.Mount(ctx); err != nil {
			log.Debug("mount finished with error", logger.Err(err))
		}
	}()
	go s.writeLoop(ctx, c)

	reason := s.readLoop(ctx, c, b, ctrl, log)
	ctrl.Unmount(reason)

	s.hub.Remove(c)
	s.metrics.WSConnections.Dec()
	s.broadcastPresence(params.RoomName)

	if err := c.Close(); err != nil {
		log.Debug("ws close failed", logger.Err(err))
	}
}

// analyticsFor возвращает nil-интерфейс, если запись для вкладки выключена.
func (s *Server) analyticsFor(p domain.LaunchParams, log *slog.Logger) meeting.Analytics {
	if s.opts.Store == nil {
		return nil
	}
	if !p.AnalyticsEnabled() {
		log.Info("analytics disabled for tab: owner id missing")
		return nil
	}
	return analytics.New(s.opts.Store, p, s.opts.Analytics,
		analytics.WithPublisher(s.opts.Publisher),
		analytics.WithMetrics(s.metrics),
		analytics.WithLogger(log.With(slog.String(logger.KeyComponent, "analytics"))),
	)
}

func (s *Server) newPoller(progress func(readiness.Progress)) meeting.Poller {
	return readiness.New(s.opts.Checker, s.opts.Readiness,
		readiness.WithProgress(progress),
		readiness.WithMetrics(s.metrics),
		readiness.WithLogger(s.log.With(slog.String(logger.KeyComponent, "readiness"))),
	)
}

func (s *Server) broadcastPresence(room string) {
	if room == "" {
		return
	}
	s.hub.Broadcast(room, Message{
		Type:    TypePresence,
		Payload: PresencePayload{RoomName: room, Tabs: s.hub.Count(room)},
	})
}

// readLoop возвращает причину ухода локального участника.
func (s *Server) readLoop(ctx context.Context, c *wsConn, b *bridge, ctrl *meeting.Controller, log *slog.Logger) domain.LeaveReason {
	defer func() { _ = c.Close() }()

	c.conn.SetReadLimit(1 << 20)
	c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * s.opts.PingEvery))
		return nil
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return leaveReason(err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			log.Debug("ws bad frame", logger.Err(err))
			continue
		}

		switch msg.Type {
		case TypeWidgetReady:
			b.resolve(nil)
		case TypeWidgetError:
			var p WidgetErrorPayload
			_ = decode(msg.Payload, &p)
			b.resolve(widgetError(p.Message))
		case TypeEvent:
			var ev EventPayload
			if err := decode(msg.Payload, &ev); err != nil || !ev.Kind.Valid() {
				log.Debug("ws unknown widget event", slog.String("kind", string(ev.Kind)))
				continue
			}
			b.Emit(ev)
		case TypeRetry:
			go func() {
				if err := ctrl.Retry(); err != nil && !errors.Is(err, meeting.ErrUnmounted) {
					log.Debug("retry finished with error", logger.Err(err))
				}
			}()
		default:
			// ignore
		}
		if ctx.Err() != nil {
			return domain.LeaveDisconnected
		}
	}
}

func leaveReason(err error) domain.LeaveReason {
	switch {
	case websocket.IsCloseError(err, websocket.CloseGoingAway):
		return domain.LeaveTabClosed
	case websocket.IsCloseError(err, websocket.CloseNormalClosure):
		return domain.LeaveNormal
	default:
		return domain.LeaveDisconnected
	}
}

func (s *Server) writeLoop(ctx context.Context, c *wsConn) {
	ticker := time.NewTicker(s.opts.PingEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			_ = c.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
		case <-ctx.Done():
			return
		case <-c.closed:
			return
		}
	}
}

// connSink пересылает состояние контроллера в соединение.
type connSink struct {
	c *wsConn
}

func (s *connSink) OnState(snap meeting.Snapshot) {
	_ = s.c.Send(Message{Type: TypeState, Payload: StatePayload(snap)})
}

func (s *connSink) OnProgress(p readiness.Progress) {
	_ = s.c.Send(Message{Type: TypeProgress, Payload: ProgressPayload{
		Attempt:        p.Attempt,
		MaxAttempts:    p.MaxAttempts,
		ElapsedSeconds: int(p.Elapsed / time.Second),
		Status:         string(p.LastStatus),
	}})
}

type wsConn struct {
	conn     *websocket.Conn
	roomName string
	sendMu   chan struct{}
	closed   chan struct{}
}

func newWsConn(c *websocket.Conn, roomName string) *wsConn {
	return &wsConn{
		conn:     c,
		roomName: roomName,
		sendMu:   make(chan struct{}, 1),
		closed:   make(chan struct{}),
	}
}

func (c *wsConn) Send(msg Message) error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))

	return c.conn.WriteJSON(msg)
}

func (c *wsConn) Close() error {
	c.sendMu <- struct{}{}
	defer func() { <-c.sendMu }()
	select {
	case <-c.closed:
		return nil
	default:
		close(c.closed)
	}

	return c.conn.Close()
}

func (c *wsConn) RoomName() string { return strings.TrimSpace(c.roomName) }
