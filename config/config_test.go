package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

const minimal = `
http:
  addr: ":8080"
readiness:
  backendUrl: "http://jitsi-backend:8000"
conference:
  domain: "meet.example"
`

func TestLoadConfig_Defaults(t *testing.T) {
	t.Setenv("CONFIG_PATH", writeConfig(t, minimal))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, DriverNone, cfg.Analytics.Driver)
	assert.Equal(t, 5*time.Second, cfg.Readiness.Interval)
	assert.Equal(t, 30*time.Second, cfg.Readiness.RequestTimeout)
	assert.Equal(t, 60, cfg.Readiness.MaxAttempts)
	assert.Equal(t, 10, cfg.Readiness.MaxConsecutiveErrors)
	assert.Equal(t, 5*time.Minute, cfg.Readiness.Deadline)
	assert.Equal(t, 30*time.Second, cfg.Analytics.HeartbeatInterval)
	assert.Equal(t, 2*time.Minute, cfg.Analytics.StaleAfter)
	assert.Equal(t, "meet-bridge", cfg.Logging.Service)
	assert.Equal(t, "std", cfg.Logging.Backend)
	assert.Equal(t, "meeting.events", cfg.RabbitMQ.Exchange)
}

func TestLoadConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, minimal+`
analytics:
  driver: postgres
postgres:
  dsn: "postgres://file"
`)
	t.Setenv("POSTGRES_DSN", "postgres://env")
	t.Setenv("JITSI_BACKEND_URL", "http://override:9000")
	t.Setenv("READINESS_DEADLINE", "90s")

	cfg, err := LoadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "postgres://env", cfg.Postgres.DSN)
	assert.Equal(t, "http://override:9000", cfg.Readiness.BackendURL)
	assert.Equal(t, 90*time.Second, cfg.Readiness.Deadline)
}

func TestLoadConfig_Validation(t *testing.T) {
	cases := map[string]string{
		"missing http":    "readiness:\n  backendUrl: x\nconference:\n  domain: d\n",
		"missing backend": "http:\n  addr: ':1'\nconference:\n  domain: d\n",
		"postgres no dsn": minimal + "analytics:\n  driver: postgres\n",
		"mongo no uri":    minimal + "analytics:\n  driver: mongo\n",
		"unknown driver":  minimal + "analytics:\n  driver: sqlite\n",
		"stale too short": minimal + "analytics:\n  heartbeatInterval: 3m\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := LoadFile(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfig_ShippedExample(t *testing.T) {
	cfg, err := LoadFile("config.yaml")
	require.NoError(t, err)
	assert.Equal(t, DriverPostgres, cfg.Analytics.Driver)
	assert.Equal(t, time.Hour, cfg.Postgres.MaxConnLifetime)
	assert.Equal(t, "meet.vmtb.in", cfg.Conference.Domain)
}

func TestParseDurationOr(t *testing.T) {
	assert.Equal(t, time.Second, parseDurationOr(time.Second, "nope"))
	assert.Equal(t, time.Second, parseDurationOr(time.Second, "-5s"))
	assert.Equal(t, 2*time.Minute, parseDurationOr(time.Second, " 2m "))
}
