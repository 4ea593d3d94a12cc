package server

import (
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/cwbudde/native-reverb/bridge"
	"github.com/cwbudde/native-reverb/engine"
	"github.com/cwbudde/native-reverb/internal/metrics"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fixture struct {
	srv    *Server
	http   *httptest.Server
	module *bridge.Module
	reg    *prometheus.Registry
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	reg := prometheus.NewRegistry()
	m, err := metrics.NewEngineMetrics(reg)
	require.NoError(t, err)

	b := bridge.New(bridge.WithRecorder(m))
	mod, err := bridge.NewModule(b, bridge.WithEngineOptions(engine.WithObserver(m)))
	require.NoError(t, err)

	s := New(b, append([]Option{WithGatherer(reg)}, opts...)...)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		s.Close()
		ts.Close()
		mod.Release(context.Background())
	})
	return &fixture{srv: s, http: ts, module: mod, reg: reg}
}

func (f *fixture) post(t *testing.T, path, body string) (int, string) {
	t.Helper()
	resp, err := f.http.Client().Post(f.http.URL+path, "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func (f *fixture) get(t *testing.T, path string) (int, string) {
	t.Helper()
	resp, err := f.http.Client().Get(f.http.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, string(data)
}

func TestInvokeOverHTTP(t *testing.T) {
	f := newFixture(t)

	code, body := f.post(t, "/bridge/NativeReverb/initialize", `[{"sampleRate": 48000}]`)
	require.Equal(t, http.StatusOK, code, body)
	assert.JSONEq(t, "null", body)

	code, body = f.post(t, "/bridge/NativeReverb/getState", "")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `"ready"`, body)

	code, body = f.post(t, "/bridge/NativeReverb/processBlock", `[[0.5, 0.5, 0, 0]]`)
	require.Equal(t, http.StatusOK, code)
	var out []float64
	require.NoError(t, json.Unmarshal([]byte(body), &out))
	assert.Len(t, out, 4)
}

func TestInvokeErrorsMapToStatus(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		path, body string
		status     int
		code       bridge.Code
	}{
		{"/bridge/NativeReverb/getParameters", "", http.StatusConflict, bridge.CodeNotInitialized},
		{"/bridge/NativeReverb/setParameters", `[{"roomSize": "x"}]`, http.StatusBadRequest, bridge.CodeInvalidArgument},
		{"/bridge/NativeReverb/fly", "", http.StatusNotFound, bridge.CodeUnknownMethod},
		{"/bridge/Other/getState", "", http.StatusNotFound, bridge.CodeUnknownMethod},
		{"/bridge/NativeReverb/initialize", `[{"output": true}]`, http.StatusServiceUnavailable, bridge.CodeDeviceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			status, body := f.post(t, tt.path, tt.body)
			assert.Equal(t, tt.status, status, body)

			var resp struct {
				Error bridge.Error `json:"error"`
			}
			require.NoError(t, json.Unmarshal([]byte(body), &resp))
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.NotEmpty(t, resp.Error.Message)
		})
	}
}

func TestBodyLimit(t *testing.T) {
	f := newFixture(t, WithBodyLimit(16))
	status, _ := f.post(t, "/bridge/NativeReverb/processBlock", `[[0,0,0,0,0,0,0,0,0,0]]`)
	assert.Equal(t, http.StatusRequestEntityTooLarge, status)
}

func TestHealthAndModules(t *testing.T) {
	f := newFixture(t)

	status, body := f.get(t, "/healthz")
	assert.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"status":"ok","modules":["NativeReverb"]}`, body)

	status, body = f.get(t, "/bridge")
	assert.Equal(t, http.StatusOK, status)
	var mods map[string][]string
	require.NoError(t, json.Unmarshal([]byte(body), &mods))
	assert.Contains(t, mods[bridge.ModuleName], "processBlock")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.post(t, "/bridge/NativeReverb/initialize", "")
	f.post(t, "/bridge/NativeReverb/processBlock", `[[0, 0]]`)

	status, body := f.get(t, "/metrics")
	assert.Equal(t, http.StatusOK, status)
	assert.Contains(t, body, "reverb_blocks_processed_total 1")
	assert.Contains(t, body, `reverb_bridge_calls_total{code="OK",method="processBlock",module="NativeReverb"} 1`)
}

func TestEventStream(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(f.http.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	// The subscription is registered after the handshake; retry until an
	// event arrives.
	var ev bridge.Event
	require.Eventually(t, func() bool {
		f.post(t, "/bridge/NativeReverb/initialize", "")
		rctx, rcancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer rcancel()
		_, data, err := conn.Read(rctx)
		if err != nil {
			return false
		}
		return json.Unmarshal(data, &ev) == nil
	}, 3*time.Second, 10*time.Millisecond)

	assert.Equal(t, bridge.ModuleName, ev.Module)
	assert.Equal(t, bridge.EventStateChanged, ev.Event)
	assert.Equal(t, f.module.InstanceID(), ev.InstanceID)
	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
}

func TestCloseEndsEventStreams(t *testing.T) {
	f := newFixture(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(f.http.URL, "http")+"/events", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	f.srv.Close()
	_, _, err = conn.Read(ctx)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))

	status, _ := f.get(t, "/events")
	assert.Equal(t, http.StatusServiceUnavailable, status)
}

func TestServeShutsDownOnCancel(t *testing.T) {
	b := bridge.New()
	s := New(b)
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ctx, l) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + l.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	http.DefaultClient.CloseIdleConnections()
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(bridge.CodeOK))
	assert.Equal(t, http.StatusConflict, StatusFor(bridge.CodeBusy))
	assert.Equal(t, http.StatusInternalServerError, StatusFor(bridge.CodeInternal))
}
