package logger

import (
	"log/slog"
	"os"
	"time"

	"github.com/google/uuid"
)

// Attribute keys shared by every component writing meeting logs.
const (
	KeyComponent   = "component"
	KeyRoom        = "room"
	KeySessionID   = "session_id"
	KeyParticipant = "participant_id"
	KeyRequestID   = "req_id"
	KeyErr         = "err"
)

func ensureInstanceID(v string) string {
	if v != "" {
		return v
	}

	hn, _ := os.Hostname()
	uid := uuid.New().String()[:8]
	return hn + "-" + uid
}

func commonAttr(cfg Config) []slog.Attr {
	return []slog.Attr{
		slog.String("service", cfg.Service),
		slog.String("env", string(cfg.Env)),
		slog.String("version", cfg.Version),
		slog.String("instance_id", cfg.InstanceID),
		slog.Time("started_at", time.Now()),
	}
}

// Err is a shorthand for the error attribute.
func Err(err error) slog.Attr {
	return slog.Any(KeyErr, err)
}
