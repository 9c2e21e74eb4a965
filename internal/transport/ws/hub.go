package ws

import (
	"sync"
)

type Conn interface {
	Send(msg Message) error
	Close() error
	RoomName() string
}

// Hub: открытые вкладки по комнатам.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[Conn]struct{} // room name -> set of connections
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[string]map[Conn]struct{})}
}

func (h *Hub) Add(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rs, ok := h.rooms[c.RoomName()]
	if !ok {
		rs = make(map[Conn]struct{})
		h.rooms[c.RoomName()] = rs
	}
	rs[c] = struct{}{}
}

func (h *Hub) Remove(c Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if rs, ok := h.rooms[c.RoomName()]; ok {
		delete(rs, c)
		if len(rs) == 0 {
			delete(h.rooms, c.RoomName())
		}
	}
}

// Count returns the number of open tabs for the room.
func (h *Hub) Count(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) Total() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, rs := range h.rooms {
		n += len(rs)
	}
	return n
}

func (h *Hub) Broadcast(room string, msg Message) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if rs, ok := h.rooms[room]; ok {
		for c := range rs {
			_ = c.Send(msg) // best-effort
		}
	}
}

// CloseAll closes every connection; read loops then unmount their controllers.
func (h *Hub) CloseAll() {
	h.mu.RLock()
	conns := make([]Conn, 0, len(h.rooms))
	for _, rs := range h.rooms {
		for c := range rs {
			conns = append(conns, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range conns {
		_ = c.Close()
	}
}
