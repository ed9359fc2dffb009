package server_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xhad/narrator/internal/models"
	"github.com/xhad/narrator/pkg/metrics"
	"github.com/xhad/narrator/server"
)

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	var hello server.Message
	require.NoError(t, conn.ReadJSON(&hello))
	require.Equal(t, server.TypeStatus, hello.Type)
	require.Equal(t, "connected", hello.Content)
	return conn
}

// readUntil reads messages until one matches or the deadline passes.
func readUntil(t *testing.T, conn *websocket.Conn, match func(server.Message) bool) server.Message {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	for {
		var msg server.Message
		require.NoError(t, conn.ReadJSON(&msg))
		if match(msg) {
			return msg
		}
	}
}

func TestWSServer_RunBroadcastsEvents(t *testing.T) {
	var s *server.WSServer
	release := make(chan struct{})
	s = server.NewWSServer(server.Config{
		Passes: map[string]server.Pass{
			"news": func(ctx context.Context) error {
				s.Publish(models.Event{RunID: "r1", Kind: models.EventPassStarted, Item: "news"})
				<-release
				return nil
			},
		},
	}, nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	runner := dial(t, srv)
	watcher := dial(t, srv)

	require.NoError(t, runner.WriteJSON(server.Message{Type: server.TypeRun, Content: "news"}))

	evt := readUntil(t, watcher, func(m server.Message) bool { return m.Type == server.TypeEvent })
	assert.Equal(t, string(models.EventPassStarted), evt.Content)
	data, ok := evt.Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "r1", data["run_id"])

	require.NoError(t, runner.WriteJSON(server.Message{Type: server.TypeRun, Content: "news"}))
	busy := readUntil(t, runner, func(m server.Message) bool { return m.Type == server.TypeError })
	assert.Contains(t, busy.Content, "already running")

	close(release)
	done := readUntil(t, watcher, func(m server.Message) bool { return m.Content == "finished news" })
	assert.Equal(t, server.TypeStatus, done.Type)
}

func TestWSServer_BadMessages(t *testing.T) {
	s := server.NewWSServer(server.Config{}, nil, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	conn := dial(t, srv)

	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{name: "invalid json", payload: "{", want: "invalid message"},
		{name: "unknown type", payload: `{"type":"chat","content":"hi"}`, want: "unknown message type"},
		{name: "unknown pass", payload: `{"type":"run","content":"podcasts"}`, want: "unknown pass"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(tt.payload)))
			msg := readUntil(t, conn, func(m server.Message) bool { return m.Type == server.TypeError })
			assert.Contains(t, msg.Content, tt.want)
		})
	}
}

func TestWSServer_HealthAndMetrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	m.Item("file", metrics.OutcomeSuccess)
	s := server.NewWSServer(server.Config{}, m, nil)
	srv := httptest.NewServer(s.Handler())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "narrator_items_processed_total")
}

func TestWSServer_ListenAndServeStops(t *testing.T) {
	s := server.NewWSServer(server.Config{Addr: "127.0.0.1:0"}, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())

	errc := make(chan error, 1)
	go func() { errc <- s.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}
