package readiness

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPChecker(t *testing.T) {
	var gotMethod, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "already_running"})
	}))
	defer srv.Close()

	c := NewHTTPChecker(srv.URL+"/", srv.Client())
	st, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyRunning, st)
	assert.Equal(t, http.MethodPost, gotMethod)
	assert.Equal(t, "/start-jitsi", gotPath)
}

func TestHTTPChecker_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	}))
	defer srv.Close()

	_, err := NewHTTPChecker(srv.URL, nil).Check(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "502")
}

func TestHTTPChecker_FeedsPoller(t *testing.T) {
	n := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n++
		status := "starting"
		if n == 3 {
			status = "already_running"
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"status": status})
	}))
	defer srv.Close()

	p := New(NewHTTPChecker(srv.URL, srv.Client()), fastConfig())
	require.NoError(t, p.Start(context.Background()))
	assert.Equal(t, 3, n)
}

type fakeCache struct {
	vals   map[string]string
	getErr error
	setErr error
	ttl    time.Duration
}

func (f *fakeCache) Get(ctx context.Context, key string) *redis.StringCmd {
	if f.getErr != nil {
		return redis.NewStringResult("", f.getErr)
	}
	v, ok := f.vals[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	f.vals[key] = value.(string)
	f.ttl = ttl
	return redis.NewStatusResult("OK", nil)
}

func TestCachedChecker_StoresReadyAndServesIt(t *testing.T) {
	inner := &scripted{steps: []step{{status: StatusAlreadyRunning}}}
	fc := &fakeCache{vals: map[string]string{}}
	c := NewCachedChecker(inner, fc, "", time.Minute)

	st, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyRunning, st)
	assert.Equal(t, "already_running", fc.vals[DefaultCacheKey])
	assert.Equal(t, time.Minute, fc.ttl)

	st, err = c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyRunning, st)
	assert.Equal(t, 1, inner.Calls())
}

func TestCachedChecker_DoesNotCacheStarting(t *testing.T) {
	inner := &scripted{steps: []step{{status: StatusStarting}}}
	fc := &fakeCache{vals: map[string]string{}}
	c := NewCachedChecker(inner, fc, "k", time.Minute)

	st, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusStarting, st)
	assert.Empty(t, fc.vals)
}

func TestCachedChecker_RedisDownFallsThrough(t *testing.T) {
	inner := &scripted{steps: []step{{status: StatusAlreadyRunning}}}
	fc := &fakeCache{vals: map[string]string{}, getErr: errors.New("dial tcp: refused"), setErr: errors.New("dial tcp: refused")}
	c := NewCachedChecker(inner, fc, "k", time.Minute)

	st, err := c.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, StatusAlreadyRunning, st)
	assert.Equal(t, 1, inner.Calls())
}
