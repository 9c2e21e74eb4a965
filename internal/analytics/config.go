package analytics

import "time"

type Config struct {
	HeartbeatInterval time.Duration
	StaleAfter        time.Duration // возраст heartbeat, после которого сессия не подхватывается
	WriteTimeout      time.Duration
}

func DefaultConfig() Config {
	return Config{
		HeartbeatInterval: 30 * time.Second,
		StaleAfter:        2 * time.Minute,
		WriteTimeout:      10 * time.Second,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = d.HeartbeatInterval
	}
	if c.StaleAfter <= 0 {
		c.StaleAfter = d.StaleAfter
	}
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = d.WriteTimeout
	}
	return c
}

type State int

const (
	StateAbsent State = iota
	StateTracking
	StateEnded
)

func (s State) String() string {
	switch s {
	case StateAbsent:
		return "absent"
	case StateTracking:
		return "tracking"
	case StateEnded:
		return "ended"
	default:
		return "unknown"
	}
}
