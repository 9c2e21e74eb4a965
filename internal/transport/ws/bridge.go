package ws

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/cwrk-planet/meet-bridge/internal/conference"
	"github.com/cwrk-planet/meet-bridge/internal/domain"
)

// bridge: виджет, живущий в браузере по ту сторону соединения.
// Open отправляет mount и ждёт widget_ready / widget_error.
type bridge struct {
	conference.Emitter

	conn   Conn
	domain string

	mu       sync.Mutex
	pending  chan error
	disposed bool
}

var (
	_ conference.Factory = (*bridge)(nil)
	_ conference.Widget  = (*bridge)(nil)
)

func newBridge(c Conn, domain string) *bridge {
	return &bridge{conn: c, domain: domain}
}

func (b *bridge) Open(ctx context.Context, p domain.LaunchParams) (conference.Widget, error) {
	ready := make(chan error, 1)
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil, conference.ErrDisposed
	}
	b.pending = ready
	b.mu.Unlock()

	err := b.conn.Send(Message{Type: TypeMount, Payload: MountPayload{
		Domain:      b.domain,
		RoomName:    p.RoomName,
		DisplayName: p.DisplayName,
		Config: map[string]any{
			"prejoinPageEnabled": false,
			"enableWelcomePage":  false,
			"startAudioMuted":    false,
			"startVideoMuted":    false,
		},
		Interface: map[string]any{
			"SHOW_JITSI_WATERMARK":    false,
			"SHOW_BRAND_WATERMARK":    false,
			"SHOW_POWERED_BY":         false,
			"HIDE_INVITE_MORE_HEADER": true,
		},
	}})
	if err != nil {
		b.clearPending(ready)
		return nil, fmt.Errorf("send mount: %w", err)
	}

	select {
	case err := <-ready:
		if err != nil {
			return nil, err
		}
		return b, nil
	case <-ctx.Done():
		b.clearPending(ready)
		return nil, ctx.Err()
	}
}

func (b *bridge) clearPending(ch chan error) {
	b.mu.Lock()
	if b.pending == ch {
		b.pending = nil
	}
	b.mu.Unlock()
}

// resolve завершает ожидающий Open; без ожидания сообщение игнорируется.
func (b *bridge) resolve(err error) bool {
	b.mu.Lock()
	ch := b.pending
	b.pending = nil
	b.mu.Unlock()
	if ch == nil {
		return false
	}
	ch <- err
	return true
}

func (b *bridge) Dispose() error {
	b.mu.Lock()
	if b.disposed {
		b.mu.Unlock()
		return nil
	}
	b.disposed = true
	b.mu.Unlock()

	b.Close()
	return b.conn.Send(Message{Type: TypeDispose})
}

func widgetError(msg string) error {
	if msg == "" {
		msg = "unknown widget error"
	}
	return errors.New(msg)
}
