package meeting

import (
	"errors"

	"github.com/cwrk-planet/meet-bridge/internal/conference"
	"github.com/cwrk-planet/meet-bridge/internal/domain"
	"github.com/cwrk-planet/meet-bridge/internal/readiness"
)

type State string

const (
	StateLoading State = "LOADING"
	StateReady   State = "READY"
	StateError   State = "ERROR"
	StateEnded   State = "ENDED"
)

var (
	ErrAlreadyMounted = errors.New("meeting: already mounted")
	ErrUnmounted      = errors.New("meeting: unmounted")
	ErrNotRetryable   = errors.New("meeting: retry is only possible from ERROR")
)

// Snapshot: то, что видит пользователь вкладки.
type Snapshot struct {
	State     State  `json:"state"`
	Error     string `json:"error,omitempty"`
	ReturnURL string `json:"returnUrl,omitempty"`
	SessionID string `json:"sessionId,omitempty"`
}

// StateSink receives controller updates. Calls are serialized and must not
// call back into the controller.
type StateSink interface {
	OnState(s Snapshot)
	OnProgress(p readiness.Progress)
}

// userMessage maps failures to the text shown on the error page.
func userMessage(err error) string {
	switch {
	case errors.Is(err, domain.ErrMissingRoom):
		return "No room name provided"
	case errors.Is(err, readiness.ErrTimeout):
		return "Server startup timeout"
	case errors.Is(err, readiness.ErrUnreachable):
		return "Unable to connect to server"
	case errors.Is(err, conference.ErrWidgetInit):
		return "Failed to load conference"
	default:
		return "Unknown error"
	}
}
