package monitor

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStream struct {
	connected atomic.Bool
}

func newFakeStream(connected bool) *fakeStream {
	s := &fakeStream{}
	s.connected.Store(connected)
	return s
}

func (s *fakeStream) IsConnected() bool { return s.connected.Load() }

func (s *fakeStream) GetStats() map[string]any {
	return map[string]any{"state": "open"}
}

type fakePublisher struct{}

func (fakePublisher) IsConnected() bool { return true }

func TestHealthServer_Endpoints(t *testing.T) {
	InitMetrics()

	stream := newFakeStream(true)
	h := NewHealthServer(":0", stream, fakePublisher{})
	h.AddStatusSource("prices", func() any { return map[string]string{"AAPL": "190.1"} })

	srv := httptest.NewServer(h.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	var status HealthStatus
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&status))
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, status.Healthy)
	assert.True(t, status.WebSocket.Connected)
	assert.True(t, status.NATS.Enabled)

	resp, err = http.Get(srv.URL + "/status")
	require.NoError(t, err)
	var full map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&full))
	resp.Body.Close()
	assert.Contains(t, full, "health")
	assert.Equal(t, map[string]any{"AAPL": "190.1"}, full["prices"])

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// 断开后 ready 和 health 都不可用
	stream.connected.Store(false)

	resp, err = http.Get(srv.URL + "/health/ready")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/health/live")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestHealthServer_NoPublisher(t *testing.T) {
	h := NewHealthServer(":0", newFakeStream(true), nil)
	status := h.getHealthStatus()
	assert.False(t, status.NATS.Enabled)
	assert.False(t, status.NATS.Connected)
}
