// Package websocket implements the CryptoLytica real-time channel
// multiplexer.
//
// A Client owns at most one physical WebSocket connection and fans inbound
// messages out to per-channel handler lists. Control messages (auth,
// subscribe, unsubscribe) are JSON objects sent over the same connection.
// It leverages the gorilla/websocket library for the underlying transport
// and is designed for concurrent safety.
package websocket

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sort"
	"sync"
	"time"

	json "github.com/bytedance/sonic"
	"github.com/gorilla/websocket"

	"github.com/cryptolytica/goclient/logger"
)

// --------------------------------------------------------------------------------
// Constants

const (
	// DefaultTimeout bounds the handshake and each write operation.
	DefaultTimeout = 10 * time.Second
	// DefaultPingInterval is the interval between keep-alive pings.
	DefaultPingInterval = 30 * time.Second
	// DefaultChannel receives inbound messages that carry no channel field.
	DefaultChannel = "default"
)

// --------------------------------------------------------------------------------
// Errors

var (
	// ErrNoEndpoint indicates that no WebSocket URL is configured. Connect
	// fails fast with it before any network activity.
	ErrNoEndpoint = errors.New("websocket: no endpoint configured")
	// ErrNotConnected indicates an operation that requires an established
	// connection.
	ErrNotConnected = errors.New("websocket: not connected")
	// ErrAlreadyConnected indicates a second Connect on a live client; at
	// most one physical connection exists per client.
	ErrAlreadyConnected = errors.New("websocket: already connected")
	// ErrEmptyChannel indicates an empty channel name.
	ErrEmptyChannel = errors.New("websocket: channel name cannot be empty")
	// ErrNilHandler indicates a nil subscription handler.
	ErrNilHandler = errors.New("websocket: handler cannot be nil")
)

// --------------------------------------------------------------------------------
// Types

// ConnState is the connection lifecycle state. Transitions are driven only
// by socket lifecycle events, never by subscription calls.
type ConnState int

const (
	// Disconnected means no connection exists or it was closed cleanly.
	Disconnected ConnState = iota
	// Connecting means the handshake is in progress.
	Connecting
	// Connected means the receive loop is running.
	Connected
	// Failed means the connection died on a socket error. The client never
	// auto-recovers; reconnection is an explicit caller action.
	Failed
)

// String returns the state name.
func (s ConnState) String() string {
	switch s {
	case Connecting:
		return "connecting"
	case Connected:
		return "connected"
	case Failed:
		return "failed"
	default:
		return "disconnected"
	}
}

// Handler consumes one decoded inbound message.
type Handler func(msg map[string]any)

// Option defines a function that configures a Client.
type Option func(*Client) error

// controlMessage is the outbound control frame shape.
type controlMessage struct {
	Type    string `json:"type"`
	Channel string `json:"channel,omitempty"`
	APIKey  string `json:"api_key,omitempty"`
}

// Client multiplexes logical channel subscriptions over one WebSocket
// connection.
//
// The connection handle and the handler registry are private and mutated
// only by the client's own methods and its receive loop.
type Client struct {
	endpoint     string
	apiKey       string
	header       http.Header
	timeout      time.Duration
	keepAlive    bool
	pingInterval time.Duration
	logger       logger.Interface

	connMu sync.Mutex // guards conn, state, done
	conn   *websocket.Conn
	state  ConnState
	done   chan struct{}

	sendMu sync.Mutex // serializes writes to the socket

	regMu     sync.Mutex // guards handlers
	handlers  map[string][]Handler
	onMessage Handler // global handler, sees every inbound message

	wg sync.WaitGroup
}

// --------------------------------------------------------------------------------
// Constructors

// New creates a client for the given endpoint and applies the provided
// options. The client is not connected until Connect is called; the
// endpoint may be empty, in which case Connect fails with ErrNoEndpoint.
func New(endpoint string, opts ...Option) (*Client, error) {
	l, err := logger.New("info", os.Stderr)
	if err != nil {
		return nil, err
	}

	c := &Client{
		endpoint:     endpoint,
		header:       make(http.Header),
		timeout:      DefaultTimeout,
		pingInterval: DefaultPingInterval,
		logger:       l,
		handlers:     make(map[string][]Handler),
	}

	return c.With(opts...)
}

// With applies a list of options to the Client and returns the modified
// instance along with any error.
func (c *Client) With(opts ...Option) (*Client, error) {
	for i, opt := range opts {
		if opt == nil {
			continue
		}

		if err := opt(c); err != nil {
			return c, fmt.Errorf("failed to apply option at index %d: %w", i, err)
		}
	}

	return c, nil
}

// --------------------------------------------------------------------------------
// Connection Management

// Connect establishes the WebSocket connection and starts the receive loop.
//
// It fails fast with ErrNoEndpoint when no URL is configured, and with
// ErrAlreadyConnected when a connection already exists. On success an auth
// control message is sent automatically if an API key is configured. The
// handshake is bounded by the configured timeout, so the caller blocks at
// most briefly.
func (c *Client) Connect(ctx context.Context) error {
	if c.endpoint == "" {
		c.logger.Error("connect refused: no endpoint configured")

		return ErrNoEndpoint
	}

	c.connMu.Lock()
	if c.state == Connecting || c.state == Connected {
		c.connMu.Unlock()

		return ErrAlreadyConnected
	}

	c.state = Connecting
	c.connMu.Unlock()

	dialer := &websocket.Dialer{HandshakeTimeout: c.timeout}

	conn, resp, err := dialer.DialContext(ctx, c.endpoint, c.header)
	if err != nil {
		if resp != nil {
			c.logger.Error("handshake rejected: %d %s", resp.StatusCode, resp.Status)
		}

		c.setState(Failed)

		return fmt.Errorf("websocket: dial %s: %w", c.endpoint, err)
	}

	done := make(chan struct{})

	c.connMu.Lock()
	c.conn = conn
	c.state = Connected
	c.done = done
	c.connMu.Unlock()

	c.logger.Info("connected to %s", c.endpoint)

	if c.apiKey != "" {
		if err := c.sendControl(controlMessage{Type: "auth", APIKey: c.apiKey}); err != nil {
			c.logger.Error("auth message failed: %v", err)
		}
	}

	c.wg.Add(1)

	go c.readLoop(conn, done)

	if c.keepAlive {
		c.wg.Add(1)

		go c.pingLoop(conn, done)
	}

	return nil
}

// Disconnect closes the connection and transitions to Disconnected.
//
// Registered channel handlers remain in memory; they are not re-sent to the
// server on a later Connect.
func (c *Client) Disconnect() error {
	c.connMu.Lock()

	if c.conn == nil {
		c.connMu.Unlock()

		return ErrNotConnected
	}

	close(c.done)

	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	_ = c.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	_ = c.conn.Close()

	c.conn = nil
	c.state = Disconnected
	c.connMu.Unlock()

	c.wg.Wait()
	c.logger.Info("disconnected from %s", c.endpoint)

	return nil
}

// State returns the current connection state.
func (c *Client) State() ConnState {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	return c.state
}

// Connected reports whether the client currently holds a live connection.
func (c *Client) Connected() bool {
	return c.State() == Connected
}

// --------------------------------------------------------------------------------
// Subscriptions

// Subscribe registers handler for the channel and sends a subscribe control
// message. Multiple handlers may be registered on one channel; every
// inbound message for the channel invokes all of them in registration
// order.
//
// It returns ErrNotConnected when no connection exists; subscriptions are
// never silently queued.
func (c *Client) Subscribe(channel string, handler Handler) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	if handler == nil {
		return ErrNilHandler
	}

	if !c.Connected() {
		return ErrNotConnected
	}

	c.regMu.Lock()
	c.handlers[channel] = append(c.handlers[channel], handler)
	c.regMu.Unlock()

	if err := c.sendControl(controlMessage{Type: "subscribe", Channel: channel}); err != nil {
		c.regMu.Lock()
		if hs := c.handlers[channel]; len(hs) > 0 {
			c.handlers[channel] = hs[:len(hs)-1]
		}
		c.regMu.Unlock()

		return err
	}

	c.logger.Info("subscribed to channel %q", channel)

	return nil
}

// Unsubscribe removes the channel's handler list and sends an unsubscribe
// control message. Removing a channel with no registered handlers is a
// no-op on the registry but the control message is still sent.
func (c *Client) Unsubscribe(channel string) error {
	if channel == "" {
		return ErrEmptyChannel
	}

	if !c.Connected() {
		return ErrNotConnected
	}

	c.regMu.Lock()
	delete(c.handlers, channel)
	c.regMu.Unlock()

	if err := c.sendControl(controlMessage{Type: "unsubscribe", Channel: channel}); err != nil {
		return err
	}

	c.logger.Info("unsubscribed from channel %q", channel)

	return nil
}

// Channels returns the sorted names of channels with registered handlers.
func (c *Client) Channels() []string {
	c.regMu.Lock()
	defer c.regMu.Unlock()

	names := make([]string, 0, len(c.handlers))
	for name := range c.handlers {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// --------------------------------------------------------------------------------
// Lifecycle (Private)

// readLoop drives the connection: it reads frames until the socket fails or
// closes, dispatching each frame to the registered handlers. Dispatch
// errors never terminate the loop.
func (c *Client) readLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			select {
			case <-done:
				// Deliberate Disconnect; state already updated.
				return
			default:
			}

			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				c.logger.Info("connection closed by server: %v", err)
				c.teardown(conn, done, Disconnected)
			} else {
				c.logger.Error("read failed: %v", err)
				c.teardown(conn, done, Failed)
			}

			return
		}

		c.dispatch(data)
	}
}

// pingLoop sends periodic pings to keep the connection alive.
func (c *Client) pingLoop(conn *websocket.Conn, done chan struct{}) {
	defer c.wg.Done()

	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			c.sendMu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(c.timeout))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.sendMu.Unlock()

			if err != nil {
				c.logger.Warn("keep-alive ping failed: %v", err)

				return
			}
		}
	}
}

// teardown closes the failed connection and records the terminal state for
// it. A Disconnect that raced the socket error wins.
func (c *Client) teardown(conn *websocket.Conn, done chan struct{}, next ConnState) {
	_ = conn.Close()

	c.connMu.Lock()
	defer c.connMu.Unlock()

	select {
	case <-done:
		return
	default:
	}

	close(done)
	c.conn = nil
	c.state = next
}

// setState records a new connection state.
func (c *Client) setState(s ConnState) {
	c.connMu.Lock()
	defer c.connMu.Unlock()

	c.state = s
}

// --------------------------------------------------------------------------------
// Dispatch (Private)

// dispatch decodes one inbound frame and routes it. The channel field
// selects the handler list, defaulting to DefaultChannel when absent; the
// global handler sees every message first. Undecodable frames are logged
// and dropped.
func (c *Client) dispatch(data []byte) {
	var msg map[string]any
	if err := json.Unmarshal(data, &msg); err != nil {
		c.logger.Warn("dropping unparseable frame: %v", err)

		return
	}

	channel := DefaultChannel
	if v, ok := msg["channel"].(string); ok && v != "" {
		channel = v
	}

	c.regMu.Lock()
	handlers := append([]Handler(nil), c.handlers[channel]...)
	global := c.onMessage
	c.regMu.Unlock()

	if global != nil {
		c.invoke(global, msg)
	}

	for _, h := range handlers {
		c.invoke(h, msg)
	}
}

// invoke runs one handler, containing panics so a misbehaving subscriber
// cannot kill the receive loop.
func (c *Client) invoke(h Handler, msg map[string]any) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("handler panic recovered: %v", r)
		}
	}()

	h(msg)
}

// sendControl marshals and writes one control frame. Writes are serialized
// and bounded by the configured timeout.
func (c *Client) sendControl(msg controlMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("websocket: marshal control message: %w", err)
	}

	c.connMu.Lock()
	conn := c.conn
	c.connMu.Unlock()

	if conn == nil {
		return ErrNotConnected
	}

	c.sendMu.Lock()
	defer c.sendMu.Unlock()

	if err := conn.SetWriteDeadline(time.Now().Add(c.timeout)); err != nil {
		return fmt.Errorf("websocket: set write deadline: %w", err)
	}

	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return fmt.Errorf("websocket: write failed: %w", err)
	}

	return nil
}
