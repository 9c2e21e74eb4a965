package main

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/cwrk-planet/meet-bridge/config"
	"github.com/cwrk-planet/meet-bridge/internal/events"
	"github.com/cwrk-planet/meet-bridge/internal/repository/memory"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, backendURL, driver string) string {
	t.Helper()
	body := "http:\n  addr: \":0\"\n" +
		"readiness:\n  backendUrl: \"" + backendURL + "\"\n  interval: 10ms\n  maxAttempts: 5\n" +
		"analytics:\n  driver: " + driver + "\n" +
		"conference:\n  domain: meet.example\n"
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() { configPath = "" })
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestWaitReady(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) < 3 {
			_, _ = w.Write([]byte(`{"status":"starting"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"already_running"}`))
	}))
	defer srv.Close()

	out, err := execute(t, "wait-ready", "--config", writeConfig(t, srv.URL, "none"))
	require.NoError(t, err)
	assert.Contains(t, out, "backend ready")
	assert.Equal(t, int32(3), calls.Load())
}

func TestWaitReady_ExhaustsAttempts(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"status":"starting"}`))
	}))
	defer srv.Close()

	_, err := execute(t, "wait-ready", "--config", writeConfig(t, srv.URL, "none"))
	require.Error(t, err)
}

func TestMigrate_NoDriver(t *testing.T) {
	_, err := execute(t, "migrate", "--config", writeConfig(t, "http://127.0.0.1:1", "none"))
	require.Error(t, err)
}

func TestMigrate_Memory(t *testing.T) {
	out, err := execute(t, "migrate", "--config", writeConfig(t, "http://127.0.0.1:1", "memory"))
	require.NoError(t, err)
	assert.Contains(t, out, "migrated memory store")
}

func TestOpenStore_Drivers(t *testing.T) {
	ctx := context.Background()

	s, err := openStore(ctx, &config.Config{Analytics: config.Analytics{Driver: config.DriverNone}})
	require.NoError(t, err)
	assert.Nil(t, s)

	s, err = openStore(ctx, &config.Config{Analytics: config.Analytics{Driver: config.DriverMemory}})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, s)

	_, err = openStore(ctx, &config.Config{Analytics: config.Analytics{Driver: "sqlite"}})
	assert.Error(t, err)
}

func TestNewPublisher_NoURL(t *testing.T) {
	p, err := newPublisher(&config.Config{})
	require.NoError(t, err)
	assert.IsType(t, events.Noop{}, p)
}
