package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_IndependentRegistries(t *testing.T) {
	a := Discard()
	b := Discard()

	a.AnalyticsWriteFailure.WithLabelValues("end_session").Inc()
	assert.Equal(t, 1.0, testutil.ToFloat64(a.AnalyticsWriteFailure.WithLabelValues("end_session")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.AnalyticsWriteFailure.WithLabelValues("end_session")))
}

func TestHandler_ExposesCollectors(t *testing.T) {
	m := NewWithRuntime()
	m.Sessions.WithLabelValues("created").Inc()
	m.WSConnections.Set(2)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)
	assert.True(t, strings.Contains(out, `meetbridge_sessions_total{outcome="created"} 1`))
	assert.True(t, strings.Contains(out, "meetbridge_ws_connections 2"))
	assert.True(t, strings.Contains(out, "go_goroutines"))
}
