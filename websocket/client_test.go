// Package websocket_test verifies the channel multiplexer against a real
// WebSocket server.
package websocket_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	json "github.com/bytedance/sonic"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cryptolytica/goclient/logger"
	"github.com/cryptolytica/goclient/websocket"
)

// --------------------------------------------------------------------------------
// Constants

const (
	waitFor = 2 * time.Second
	tick    = 10 * time.Millisecond
)

// --------------------------------------------------------------------------------
// Test Server

// testServer accepts one WebSocket connection, records every inbound
// control message, and can push frames back to the client.
type testServer struct {
	srv     *httptest.Server
	mu      sync.Mutex
	conn    *gws.Conn
	control chan map[string]any
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	s := &testServer{control: make(chan map[string]any, 16)}
	upgrader := gws.Upgrader{}

	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		s.mu.Lock()
		s.conn = conn
		s.mu.Unlock()

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg map[string]any
			if json.Unmarshal(data, &msg) == nil {
				s.control <- msg
			}
		}
	}))

	t.Cleanup(s.srv.Close)

	return s
}

// url returns the ws:// address of the server.
func (s *testServer) url() string {
	return "ws" + strings.TrimPrefix(s.srv.URL, "http")
}

// waitConn blocks until the server side of the connection exists.
func (s *testServer) waitConn(t *testing.T) *gws.Conn {
	t.Helper()

	deadline := time.Now().Add(waitFor)
	for time.Now().Before(deadline) {
		s.mu.Lock()
		conn := s.conn
		s.mu.Unlock()

		if conn != nil {
			return conn
		}

		time.Sleep(tick)
	}

	t.Fatal("server connection never established")

	return nil
}

// push sends one raw frame to the client.
func (s *testServer) push(t *testing.T, payload string) {
	t.Helper()

	conn := s.waitConn(t)
	require.NoError(t, conn.WriteMessage(gws.TextMessage, []byte(payload)))
}

// expectControl waits for the next control message and checks its type.
func (s *testServer) expectControl(t *testing.T, typ string) map[string]any {
	t.Helper()

	select {
	case msg := <-s.control:
		require.Equal(t, typ, msg["type"])
		return msg
	case <-time.After(waitFor):
		t.Fatalf("timed out waiting for %q control message", typ)
		return nil
	}
}

// connect builds and connects a client against the server.
func connect(t *testing.T, s *testServer, opts ...websocket.Option) *websocket.Client {
	t.Helper()

	opts = append([]websocket.Option{websocket.WithLogger(logger.Nop())}, opts...)

	c, err := websocket.New(s.url(), opts...)
	require.NoError(t, err)
	require.NoError(t, c.Connect(t.Context()))
	t.Cleanup(func() { _ = c.Disconnect() })

	return c
}

// --------------------------------------------------------------------------------
// Tests

// TestConnectNoEndpoint verifies that Connect fails fast without a URL and
// performs no network activity.
func TestConnectNoEndpoint(t *testing.T) {
	t.Parallel()

	c, err := websocket.New("", websocket.WithLogger(logger.Nop()))
	require.NoError(t, err)

	require.ErrorIs(t, c.Connect(context.Background()), websocket.ErrNoEndpoint)
	assert.Equal(t, websocket.Disconnected, c.State())
}

// TestConnectSendsAuth verifies the automatic auth message and the state
// transition to Connected.
func TestConnectSendsAuth(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s, websocket.WithAPIKey("secret"))

	msg := s.expectControl(t, "auth")
	assert.Equal(t, "secret", msg["api_key"])
	assert.Equal(t, websocket.Connected, c.State())
}

// TestConnectTwice verifies the single-connection invariant.
func TestConnectTwice(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	require.ErrorIs(t, c.Connect(t.Context()), websocket.ErrAlreadyConnected)
}

// TestSubscribeDispatchOrder verifies that two handlers on one channel are
// each invoked exactly once per message, in registration order.
func TestSubscribeDispatchOrder(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	var (
		mu    sync.Mutex
		calls []string
	)

	record := func(name string) websocket.Handler {
		return func(msg map[string]any) {
			mu.Lock()
			calls = append(calls, name)
			mu.Unlock()
		}
	}

	require.NoError(t, c.Subscribe("trades", record("first")))
	require.NoError(t, c.Subscribe("trades", record("second")))

	sub := s.expectControl(t, "subscribe")
	assert.Equal(t, "trades", sub["channel"])
	s.expectControl(t, "subscribe")

	s.push(t, `{"channel":"trades","price":42.5}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(calls) == 2
	}, waitFor, tick)

	mu.Lock()
	assert.Equal(t, []string{"first", "second"}, calls)
	mu.Unlock()
}

// TestUnsubscribeKeepsGlobal verifies that unsubscribing silences the
// channel handlers while the global handler still sees every message.
func TestUnsubscribeKeepsGlobal(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)

	var (
		mu      sync.Mutex
		global  int
		channel int
	)

	c := connect(t, s, websocket.OnMessage(func(msg map[string]any) {
		mu.Lock()
		global++
		mu.Unlock()
	}))

	require.NoError(t, c.Subscribe("events", func(msg map[string]any) {
		mu.Lock()
		channel++
		mu.Unlock()
	}))
	s.expectControl(t, "subscribe")

	require.NoError(t, c.Unsubscribe("events"))
	unsub := s.expectControl(t, "unsubscribe")
	assert.Equal(t, "events", unsub["channel"])
	assert.Empty(t, c.Channels())

	s.push(t, `{"channel":"events","kind":"alert"}`)

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return global == 1
	}, waitFor, tick)

	mu.Lock()
	assert.Zero(t, channel, "unsubscribed channel handler must not run")
	mu.Unlock()
}

// TestBadFrameDropped verifies that an unparseable frame neither reaches
// handlers nor kills the receive loop.
func TestBadFrameDropped(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	got := make(chan map[string]any, 2)
	require.NoError(t, c.Subscribe("ticks", func(msg map[string]any) { got <- msg }))
	s.expectControl(t, "subscribe")

	s.push(t, `{not json`)
	s.push(t, `{"channel":"ticks","seq":1}`)

	select {
	case msg := <-got:
		assert.Equal(t, float64(1), msg["seq"])
	case <-time.After(waitFor):
		t.Fatal("receive loop did not survive the bad frame")
	}

	assert.Empty(t, got, "bad frame must not invoke handlers")
}

// TestHandlerPanicContained verifies that a panicking subscriber does not
// terminate the receive loop.
func TestHandlerPanicContained(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	got := make(chan map[string]any, 1)
	require.NoError(t, c.Subscribe("risky", func(msg map[string]any) { panic("boom") }))
	require.NoError(t, c.Subscribe("risky", func(msg map[string]any) { got <- msg }))
	s.expectControl(t, "subscribe")
	s.expectControl(t, "subscribe")

	s.push(t, `{"channel":"risky"}`)

	select {
	case <-got:
	case <-time.After(waitFor):
		t.Fatal("dispatch did not continue past the panicking handler")
	}

	assert.Equal(t, websocket.Connected, c.State())
}

// TestDefaultChannel verifies that messages without a channel field are
// routed to the default channel.
func TestDefaultChannel(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	got := make(chan map[string]any, 1)
	require.NoError(t, c.Subscribe(websocket.DefaultChannel, func(msg map[string]any) { got <- msg }))
	s.expectControl(t, "subscribe")

	s.push(t, `{"note":"no channel field"}`)

	select {
	case msg := <-got:
		assert.Equal(t, "no channel field", msg["note"])
	case <-time.After(waitFor):
		t.Fatal("default channel handler not invoked")
	}
}

// TestSubscribeNotConnected verifies that subscriptions are refused, not
// queued, without a connection.
func TestSubscribeNotConnected(t *testing.T) {
	t.Parallel()

	c, err := websocket.New("ws://localhost:0", websocket.WithLogger(logger.Nop()))
	require.NoError(t, err)

	handler := func(msg map[string]any) {}
	require.ErrorIs(t, c.Subscribe("trades", handler), websocket.ErrNotConnected)
	require.ErrorIs(t, c.Unsubscribe("trades"), websocket.ErrNotConnected)
	assert.Empty(t, c.Channels(), "refused subscribe must not register handlers")
}

// TestSubscribeValidation covers empty channel names and nil handlers.
func TestSubscribeValidation(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	require.ErrorIs(t, c.Subscribe("", func(msg map[string]any) {}), websocket.ErrEmptyChannel)
	require.ErrorIs(t, c.Subscribe("trades", nil), websocket.ErrNilHandler)
}

// TestDisconnect verifies the transition to Disconnected and that handler
// registrations survive for an explicit reconnect.
func TestDisconnect(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	require.NoError(t, c.Subscribe("trades", func(msg map[string]any) {}))
	s.expectControl(t, "subscribe")

	require.NoError(t, c.Disconnect())
	assert.Equal(t, websocket.Disconnected, c.State())
	assert.Equal(t, []string{"trades"}, c.Channels())

	require.ErrorIs(t, c.Disconnect(), websocket.ErrNotConnected)
}

// TestServerAbruptClose verifies that a socket error is terminal: the
// client transitions to Failed and never auto-reconnects.
func TestServerAbruptClose(t *testing.T) {
	t.Parallel()

	s := newTestServer(t)
	c := connect(t, s)

	_ = s.waitConn(t).Close()

	require.Eventually(t, func() bool {
		return c.State() == websocket.Failed
	}, waitFor, tick)
}

// TestStateString covers the state names.
func TestStateString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "disconnected", websocket.Disconnected.String())
	assert.Equal(t, "connecting", websocket.Connecting.String())
	assert.Equal(t, "connected", websocket.Connected.String())
	assert.Equal(t, "failed", websocket.Failed.String())
}
