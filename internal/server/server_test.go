package server

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/quantdash/internal/feed"
	"github.com/rickgao/quantdash/internal/history"
	"github.com/rickgao/quantdash/internal/hub"
	"github.com/rickgao/quantdash/internal/metrics"
	"github.com/rickgao/quantdash/internal/model"
)

type stubFeed struct{ state feed.ConnState }

func (s stubFeed) State() feed.ConnState { return s.state }

type stubBroadcaster struct{}

func (stubBroadcaster) State() hub.BroadcasterState { return hub.BroadcasterDraining }

type stubHub struct{ stats hub.Stats }

func (s stubHub) Stats() hub.Stats { return s.stats }

type stubSymbols []string

func (s stubSymbols) Symbols() []string { return s }

type stubDB struct{ err error }

func (s stubDB) Ping(ctx context.Context) error { return s.err }

type stubHistory struct{}

func (stubHistory) History(ctx context.Context, symbol, resolution string, from, to int64) ([]model.Bar, error) {
	return []model.Bar{{Symbol: symbol, Resolution: resolution, Timestamp: from, Close: 1}}, nil
}

func components(state feed.ConnState, db Pinger) Components {
	return Components{
		Feed:        stubFeed{state: state},
		Broadcaster: stubBroadcaster{},
		Hub:         stubHub{stats: hub.Stats{Clients: 2, RegistryStats: hub.RegistryStats{Symbols: 3, Clients: 2, Pairs: 4}}},
		Symbols:     stubSymbols{"AAPL", "MSFT", "TSLA"},
		DB:          db,
	}
}

func getHealth(t *testing.T, h http.Handler) (int, HealthResponse) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return rec.Code, resp
}

func TestHealth(t *testing.T) {
	tests := []struct {
		name       string
		state      feed.ConnState
		db         Pinger
		wantCode   int
		wantStatus string
	}{
		{name: "streaming", state: feed.StateStreaming, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "reconnecting", state: feed.StateReconnectBackoff, wantCode: http.StatusOK, wantStatus: "degraded"},
		{name: "database ok", state: feed.StateStreaming, db: stubDB{}, wantCode: http.StatusOK, wantStatus: "healthy"},
		{name: "database down", state: feed.StateStreaming, db: stubDB{err: errors.New("refused")}, wantCode: http.StatusServiceUnavailable, wantStatus: "unhealthy"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewOpsHandler(components(tt.state, tt.db), nil, "/metrics", nil)
			code, resp := getHealth(t, h)
			assert.Equal(t, tt.wantCode, code)
			assert.Equal(t, tt.wantStatus, resp.Status)
			assert.Equal(t, tt.state.String(), resp.Components["feed"])
			assert.Equal(t, "draining", resp.Components["broadcaster"])
			assert.NotEmpty(t, resp.Version.Version)
		})
	}
}

func TestDebugSymbols(t *testing.T) {
	h := NewOpsHandler(components(feed.StateStreaming, nil), nil, "/metrics", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/symbols", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"count":3,"showing":3,"symbols":["AAPL","MSFT","TSLA"]}`, rec.Body.String())
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	m.ConnectedClients.Set(7)

	h := NewOpsHandler(components(feed.StateStreaming, nil), reg, "/metrics", nil)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "quantdash_hub_connected_clients 7")
}

func TestRouter(t *testing.T) {
	upgraded := make(chan struct{}, 1)
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := (&websocket.Upgrader{}).Upgrade(w, r, nil)
		if err != nil {
			return
		}
		upgraded <- struct{}{}
		conn.Close()
	})

	hist := history.NewHandler(history.NewService(stubHistory{}, nil, nil, nil), nil, nil)
	srv := httptest.NewServer(NewRouter(ws, "/ws", hist, nil))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	conn.Close()
	select {
	case <-upgraded:
	case <-time.After(2 * time.Second):
		t.Fatal("ws route not reached")
	}

	resp, err := http.Get(srv.URL + "/api/v1/history/AAPL?from=10&to=20")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var body history.HistoryResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "AAPL", body.Symbol)
	require.Len(t, body.Bars, 1)
	assert.Equal(t, int64(10), body.Bars[0].T)

	missing, err := http.Get(srv.URL + "/nope")
	require.NoError(t, err)
	missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestServer_ServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	s := New("test", ln.Addr().String(), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}), time.Second, nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String())
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusTeapot
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Serve did not return after cancel")
	}
}
