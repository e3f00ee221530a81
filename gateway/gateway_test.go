package gateway

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentwire/agentwire-go/bridge"
	"github.com/agentwire/agentwire-go/health"
)

type stubBridge struct {
	forwardText string
	forwardErr  error
	notifyErr   error

	lastForwarded string
	lastNotified  string
}

func (b *stubBridge) Forward(ctx context.Context, text string, timeout time.Duration) (string, error) {
	b.lastForwarded = text
	return b.forwardText, b.forwardErr
}

func (b *stubBridge) Notify(ctx context.Context, text string) error {
	b.lastNotified = text
	return b.notifyErr
}

func newTestServer(t *testing.T, b Bridge, opts ...ServerOption) *httptest.Server {
	t.Helper()
	server, err := NewServer(b, "agent1qgateway", opts...)
	require.NoError(t, err)
	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func decodeResponse(t *testing.T, resp *http.Response) Response {
	t.Helper()
	defer resp.Body.Close()
	var body Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	return body
}

func TestNewServer(t *testing.T) {
	t.Run("requires a bridge", func(t *testing.T) {
		_, err := NewServer(nil, "agent1qgateway")
		assert.Error(t, err)
	})

	t.Run("requires an address", func(t *testing.T) {
		_, err := NewServer(&stubBridge{}, "")
		assert.Error(t, err)
	})
}

func TestChatEndpoint(t *testing.T) {
	t.Run("returns the agent reply", func(t *testing.T) {
		b := &stubBridge{forwardText: "BTC is at $64,250.00"}
		ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{"text":"price of BTC"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeResponse(t, resp)
		assert.Equal(t, "BTC is at $64,250.00", body.Text)
		assert.Equal(t, "agent1qgateway", body.AgentAddress)
		assert.InDelta(t, time.Now().Unix(), body.Timestamp, 5)
		assert.Equal(t, "price of BTC", b.lastForwarded)
	})

	t.Run("timeout answers 200 with timeout text", func(t *testing.T) {
		b := &stubBridge{forwardErr: &bridge.TimeoutError{CorrelationID: "x", Timeout: 60 * time.Second}}
		ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{"text":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeResponse(t, resp)
		assert.Contains(t, body.Text, "Timeout: No response received from agent within 1m0s")
	})

	t.Run("transport failure answers 200 with error text", func(t *testing.T) {
		b := &stubBridge{forwardErr: &bridge.TransportError{Err: errors.New("broker unreachable")}}
		ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{"text":"hello"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeResponse(t, resp)
		assert.Contains(t, body.Text, "Error:")
		assert.Contains(t, body.Text, "broker unreachable")
	})

	t.Run("missing text answers 400", func(t *testing.T) {
		ts := newTestServer(t, &stubBridge{})

		resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{}`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})

	t.Run("malformed body answers 400", func(t *testing.T) {
		ts := newTestServer(t, &stubBridge{})

		resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{"text"`))
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	})
}

func TestPingEndpoint(t *testing.T) {
	t.Run("sends a one-way message", func(t *testing.T) {
		b := &stubBridge{}
		ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/ping", "application/json", strings.NewReader(`{"text":"are you there"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeResponse(t, resp)
		assert.Equal(t, "Ping message sent to agent: are you there", body.Text)
		assert.Equal(t, "Ping from bridge agent: are you there", b.lastNotified)
	})

	t.Run("send failure answers 200 with error text", func(t *testing.T) {
		b := &stubBridge{notifyErr: &bridge.TransportError{Err: errors.New("down")}}
		ts := newTestServer(t, b)

		resp, err := http.Post(ts.URL+"/ping", "application/json", strings.NewReader(`{"text":"x"}`))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		body := decodeResponse(t, resp)
		assert.Contains(t, body.Text, "Failed to ping agent")
	})
}

type stubChecker struct {
	name   string
	status health.Status
}

func (c stubChecker) Name() string { return c.name }
func (c stubChecker) Check(ctx context.Context) health.CheckResult {
	return health.CheckResult{Name: c.name, Status: c.status}
}

func TestHealthEndpoint(t *testing.T) {
	t.Run("healthy answers 200", func(t *testing.T) {
		registry := health.NewRegistry()
		registry.Register(stubChecker{name: "transport", status: health.StatusHealthy})
		ts := newTestServer(t, &stubBridge{}, WithHealthRegistry(registry))

		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)

		var body struct {
			Response
			Status health.Status `json:"status"`
		}
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		assert.Equal(t, health.StatusHealthy, body.Status)
		assert.Equal(t, "agent1qgateway", body.AgentAddress)
		assert.Contains(t, body.Text, "healthy")
	})

	t.Run("unhealthy answers 503", func(t *testing.T) {
		registry := health.NewRegistry()
		registry.Register(stubChecker{name: "transport", status: health.StatusUnhealthy})
		ts := newTestServer(t, &stubBridge{}, WithHealthRegistry(registry))

		resp, err := http.Get(ts.URL + "/health")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	t.Run("serves the Prometheus registry", func(t *testing.T) {
		ts := newTestServer(t, &stubBridge{})

		resp, err := http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	})

	t.Run("counts handled requests by path and code", func(t *testing.T) {
		ts := newTestServer(t, &stubBridge{forwardText: "ok"})

		resp, err := http.Post(ts.URL+"/chat", "application/json", strings.NewReader(`{"text":"hello"}`))
		require.NoError(t, err)
		resp.Body.Close()

		resp, err = http.Get(ts.URL + "/metrics")
		require.NoError(t, err)
		defer resp.Body.Close()

		raw, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `agentwire_gateway_requests_total{code="200",path="/chat"}`)
	})
}
