package conference

import "sync"

// maxQueued ограничивает очередь событий, пришедших до первого подписчика.
const maxQueued = 64

// Emitter раздаёт события подписчикам; используется реализациями Widget.
// События, пришедшие до первого OnEvent, копятся и отдаются первому подписчику.
type Emitter struct {
	// deliver упорядочивает доставку: replay и Emit не перемешиваются
	deliver sync.Mutex

	mu       sync.Mutex
	handlers []Handler
	queued   []Event
	closed   bool
}

func (e *Emitter) OnEvent(h Handler) {
	if h == nil {
		return
	}
	e.deliver.Lock()
	defer e.deliver.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.handlers = append(e.handlers, h)
	var replay []Event
	if len(e.handlers) == 1 {
		replay, e.queued = e.queued, nil
	}
	e.mu.Unlock()

	for _, ev := range replay {
		h(ev)
	}
}

// Emit calls handlers in registration order. Without handlers the event is
// queued for the first subscriber. After Close it does nothing.
func (e *Emitter) Emit(ev Event) {
	e.deliver.Lock()
	defer e.deliver.Unlock()

	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	if len(e.handlers) == 0 {
		if len(e.queued) < maxQueued {
			e.queued = append(e.queued, ev)
		}
		e.mu.Unlock()
		return
	}
	hs := make([]Handler, len(e.handlers))
	copy(hs, e.handlers)
	e.mu.Unlock()

	for _, h := range hs {
		h(ev)
	}
}

// Close drops handlers and queued events; reports whether this call closed the emitter.
func (e *Emitter) Close() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return false
	}
	e.closed = true
	e.handlers = nil
	e.queued = nil
	return true
}
