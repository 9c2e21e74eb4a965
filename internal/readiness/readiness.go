package readiness

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusStarting       Status = "starting"
	StatusAlreadyRunning Status = "already_running"
)

func (s Status) Ready() bool { return s == StatusAlreadyRunning }

// Checker выполняет одну проверку готовности бэкенда конференций.
type Checker interface {
	Check(ctx context.Context) (Status, error)
}

type CheckerFunc func(ctx context.Context) (Status, error)

func (f CheckerFunc) Check(ctx context.Context) (Status, error) { return f(ctx) }

var (
	ErrTimeout        = errors.New("readiness: backend did not become ready in time")
	ErrUnreachable    = errors.New("readiness: unable to connect to conferencing backend")
	ErrStopped        = errors.New("readiness: poller stopped")
	ErrAlreadyStarted = errors.New("readiness: poller already started")
)

type Config struct {
	Interval             time.Duration // пауза после каждого ответа
	RequestTimeout       time.Duration // таймаут одного вызова
	MaxAttempts          int
	MaxConsecutiveErrors int
	Deadline             time.Duration // общий предел ожидания
}

func DefaultConfig() Config {
	return Config{
		Interval:             5 * time.Second,
		RequestTimeout:       30 * time.Second,
		MaxAttempts:          60,
		MaxConsecutiveErrors: 10,
		Deadline:             5 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Interval <= 0 {
		c.Interval = d.Interval
	}
	if c.RequestTimeout <= 0 {
		c.RequestTimeout = d.RequestTimeout
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = d.MaxAttempts
	}
	if c.MaxConsecutiveErrors <= 0 {
		c.MaxConsecutiveErrors = d.MaxConsecutiveErrors
	}
	if c.Deadline <= 0 {
		c.Deadline = d.Deadline
	}
	return c
}

// Progress is reported after every attempt.
type Progress struct {
	Attempt     int
	MaxAttempts int
	Elapsed     time.Duration
	LastStatus  Status
	LastErr     error
}
