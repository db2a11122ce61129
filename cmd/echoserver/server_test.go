package main

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rickgao/wsstress/internal/engine"
	"github.com/rickgao/wsstress/internal/stats"
)

func wsURL(httpURL string) string {
	return "ws" + strings.TrimPrefix(httpURL, "http")
}

func TestServer_EchoAndAcks(t *testing.T) {
	s := newServer(0, 1, nil)
	srv := httptest.NewServer(s)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer ws.Close()

	report, err := stats.EncodeReport([]stats.Ack{{Digest: stats.Digest([]byte("a")), Count: 3}})
	require.NoError(t, err)
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, report))
	require.NoError(t, ws.WriteMessage(websocket.TextMessage, []byte("hello")))

	// The report is consumed; only the plain message comes back.
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	mt, data, err := ws.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "hello", string(data))

	assert.Equal(t, uint64(1), s.reports.Load())
	assert.Equal(t, uint64(3), s.acked.Load())
}

func TestServer_Emits(t *testing.T) {
	s := newServer(5*time.Millisecond, 2, nil)
	srv := httptest.NewServer(s)
	defer srv.Close()

	ws, _, err := websocket.DefaultDialer.Dial(wsURL(srv.URL), nil)
	require.NoError(t, err)
	defer ws.Close()

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	seen := map[string]bool{}
	for i := 0; i < 4; i++ {
		_, data, err := ws.ReadMessage()
		require.NoError(t, err)
		seen[string(data)] = true
	}
	assert.Equal(t, map[string]bool{"message 0": true, "message 1": true}, seen)
}

// A stress client connection against the echo server reports back every
// message it received.
func TestServer_StressClientRoundTrip(t *testing.T) {
	s := newServer(5*time.Millisecond, 3, nil)
	srv := httptest.NewServer(s)
	defer srv.Close()

	eng := engine.NewEndpoint(engine.DefaultConfig(), nil)
	runErr := make(chan error, 1)
	go func() { runErr <- eng.Run() }()

	for i := 0; i < 3; i++ {
		_, err := eng.Connect(wsURL(srv.URL), stats.NewAggregator(20*time.Millisecond, nil, nil))
		require.NoError(t, err)
	}

	require.Eventually(t, func() bool {
		return s.reports.Load() >= 3 && s.acked.Load() >= 9
	}, 5*time.Second, 10*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, eng.Stop(ctx))
	require.NoError(t, <-runErr)
	assert.Equal(t, 0, eng.Len())
}
