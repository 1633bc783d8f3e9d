package sockets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newEchoServer(t *testing.T, handle func(ws *websocket.Conn)) string {
	t.Helper()
	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		handle(ws)
	}))
	t.Cleanup(srv.Close)
	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func echo(ws *websocket.Conn) {
	for {
		mt, msg, err := ws.ReadMessage()
		if err != nil {
			return
		}
		if err := ws.WriteMessage(mt, msg); err != nil {
			return
		}
	}
}

func TestConn_SendReceivesInOrder(t *testing.T) {
	url := newEchoServer(t, echo)

	var mu sync.Mutex
	var got []string
	received := make(chan struct{}, 10)
	conn := New(
		OnMessage(func(msg []byte, _ Connection) {
			mu.Lock()
			got = append(got, string(msg))
			mu.Unlock()
			received <- struct{}{}
		}),
		WithPingInterval(10*time.Millisecond),
	)
	require.NoError(t, conn.Dial(context.Background(), url, nil))
	defer conn.Close()

	for _, m := range []string{"one", "two", "three"} {
		require.NoError(t, conn.Send(Msg{Body: []byte(m)}))
	}
	for range 3 {
		select {
		case <-received:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for echo")
		}
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"one", "two", "three"}, got)
}

func TestConn_OnConnected(t *testing.T) {
	url := newEchoServer(t, echo)
	connected := false
	conn := New(OnConnected(func(Connection) { connected = true }))
	require.NoError(t, conn.Dial(context.Background(), url, nil))
	defer conn.Close()
	assert.True(t, connected)
}

func TestConn_ServerCloseReportsError(t *testing.T) {
	url := newEchoServer(t, func(ws *websocket.Conn) {})

	errs := make(chan error, 1)
	conn := New(OnError(func(err error) { errs <- err }))
	require.NoError(t, conn.Dial(context.Background(), url, nil))

	select {
	case err := <-errs:
		assert.Error(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("expected error callback")
	}
	assert.ErrorIs(t, conn.Send(Msg{Body: []byte("late")}), ErrClosed)
}

func TestConn_CloseIsQuiet(t *testing.T) {
	url := newEchoServer(t, echo)

	errs := make(chan error, 1)
	conn := New(OnError(func(err error) { errs <- err }))
	require.NoError(t, conn.Dial(context.Background(), url, nil))
	require.NoError(t, conn.Close())
	require.NoError(t, conn.Close())

	select {
	case err := <-errs:
		t.Fatalf("unexpected error callback: %v", err)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestConn_DialFailure(t *testing.T) {
	conn := New()
	err := conn.Dial(context.Background(), "ws://127.0.0.1:1/nothing", nil)
	assert.Error(t, err)
	assert.ErrorIs(t, conn.Send(Msg{Body: []byte("x")}), ErrClosed)
}
