package conference

import (
	"context"
	"errors"

	"github.com/cwrk-planet/meet-bridge/internal/domain"
)

type EventKind string

const (
	VideoConferenceJoined EventKind = "videoConferenceJoined"
	ParticipantJoined     EventKind = "participantJoined"
	ParticipantLeft       EventKind = "participantLeft"
	VideoConferenceLeft   EventKind = "videoConferenceLeft"
	ReadyToClose          EventKind = "readyToClose"
	TabHidden             EventKind = "tabHidden"
)

func (k EventKind) Valid() bool {
	switch k {
	case VideoConferenceJoined, ParticipantJoined, ParticipantLeft,
		VideoConferenceLeft, ReadyToClose, TabHidden:
		return true
	}
	return false
}

// Event: событие жизненного цикла виджета.
type Event struct {
	Kind          EventKind `json:"kind"`
	ParticipantID string    `json:"id,omitempty"`
	DisplayName   string    `json:"displayName,omitempty"`
	Reason        string    `json:"reason,omitempty"`
}

type Handler func(Event)

// Widget: непрозрачный встроенный виджет конференции.
type Widget interface {
	OnEvent(h Handler)
	Dispose() error
}

// Factory opens a widget for the launch parameters. It blocks until the
// widget reports it is mounted or fails.
type Factory interface {
	Open(ctx context.Context, params domain.LaunchParams) (Widget, error)
}

type FactoryFunc func(ctx context.Context, params domain.LaunchParams) (Widget, error)

func (f FactoryFunc) Open(ctx context.Context, params domain.LaunchParams) (Widget, error) {
	return f(ctx, params)
}

var (
	ErrWidgetInit = errors.New("conference: widget failed to initialize")
	ErrDisposed   = errors.New("conference: widget disposed")
)
