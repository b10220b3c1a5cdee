// Package transport maintains the websocket event channel to the chat
// server: a dispatch table of event handlers, outgoing event emission,
// keepalive pings and automatic reconnection with capped backoff.
//
// Inbound events are delivered synchronously from a single goroutine, so
// handlers run one at a time in arrival order.
package transport

import (
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gochat/protocol"
)

const (
	writeWait        = 10 * time.Second
	defaultPongWait  = 60 * time.Second
	defaultPingEvery = 25 * time.Second

	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

var ErrNotConnected = errors.New("transport: not connected")

// Handler consumes one inbound event.
type Handler func(protocol.Envelope)

// Options tunes the keepalive intervals. Zero values use the defaults.
type Options struct {
	PingInterval time.Duration
	PongWait     time.Duration
}

// Client is a websocket event client.
type Client struct {
	url  string
	opts Options

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	closed    bool
	done      chan struct{}

	writeMu sync.Mutex

	handlersMu     sync.RWMutex
	handlers       map[string][]Handler
	onConnect      []func()
	onDisconnect   []func()
	onConnectError []func(error)
}

// NewClient creates a client for the given websocket URL. No connection
// is attempted until Connect.
func NewClient(wsURL string, opts Options) *Client {
	if opts.PingInterval <= 0 {
		opts.PingInterval = defaultPingEvery
	}
	if opts.PongWait <= 0 {
		opts.PongWait = defaultPongWait
	}
	return &Client{
		url:      wsURL,
		opts:     opts,
		handlers: make(map[string][]Handler),
		done:     make(chan struct{}),
	}
}

// WebsocketURL derives the websocket endpoint from the server's HTTP base
// URL ("http://host:port" -> "ws://host:port/ws").
func WebsocketURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("transport: parse server url: %w", err)
	}
	switch u.Scheme {
	case "http", "ws":
		u.Scheme = "ws"
	case "https", "wss":
		u.Scheme = "wss"
	default:
		return "", fmt.Errorf("transport: unsupported scheme %q", u.Scheme)
	}
	u.Path = "/ws"
	return u.String(), nil
}

// On registers a handler for an inbound event type.
func (c *Client) On(event string, h Handler) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.handlers[event] = append(c.handlers[event], h)
}

// OnConnect registers a callback fired after every successful connect,
// including reconnects.
func (c *Client) OnConnect(f func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onConnect = append(c.onConnect, f)
}

// OnDisconnect registers a callback fired when the connection drops.
func (c *Client) OnDisconnect(f func()) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onDisconnect = append(c.onDisconnect, f)
}

// OnConnectError registers a callback fired for every failed connection
// attempt.
func (c *Client) OnConnectError(f func(error)) {
	c.handlersMu.Lock()
	defer c.handlersMu.Unlock()
	c.onConnectError = append(c.onConnectError, f)
}

// Connect dials the server. On failure the error is reported to the
// OnConnectError callbacks and the reconnect loop takes over, so the
// caller does not need to retry.
func (c *Client) Connect() error {
	if err := c.dial(); err != nil {
		c.fireConnectError(err)
		go c.reconnectLoop()
		return err
	}
	return nil
}

// IsConnected reports whether the channel is currently up.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

// Emit sends an event to the server.
func (c *Client) Emit(event string, payload any) error {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	conn := c.conn
	connected := c.connected
	c.mu.Unlock()
	if !connected || conn == nil {
		return ErrNotConnected
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(env); err != nil {
		return fmt.Errorf("transport: emit %s: %w", event, err)
	}
	return nil
}

// Close shuts the client down. No reconnection is attempted afterwards.
func (c *Client) Close() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	close(c.done)
	conn := c.conn
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	if conn != nil {
		c.writeMu.Lock()
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		c.writeMu.Unlock()
		return conn.Close()
	}
	return nil
}

func (c *Client) dial() error {
	conn, _, err := websocket.DefaultDialer.Dial(c.url, nil)
	if err != nil {
		return fmt.Errorf("transport: dial %s: %w", c.url, err)
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		conn.Close()
		return errors.New("transport: client closed")
	}
	c.conn = conn
	c.connected = true
	c.mu.Unlock()

	conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(c.opts.PongWait))
	})

	go c.readLoop(conn)
	go c.pingLoop(conn)

	c.fireConnect()
	return nil
}

func (c *Client) readLoop(conn *websocket.Conn) {
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			c.handleDrop(conn)
			return
		}
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			log.Debug().Err(err).Msg("drop unparseable frame")
			continue
		}
		c.dispatch(env)
	}
}

func (c *Client) pingLoop(conn *websocket.Conn) {
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.writeMu.Lock()
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			err := conn.WriteMessage(websocket.PingMessage, nil)
			c.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// handleDrop reacts to a broken read: if the client was not closed on
// purpose, report the disconnect and start reconnecting.
func (c *Client) handleDrop(conn *websocket.Conn) {
	c.mu.Lock()
	if c.closed || c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.connected = false
	c.mu.Unlock()

	conn.Close()
	c.fireDisconnect()
	go c.reconnectLoop()
}

func (c *Client) reconnectLoop() {
	backoff := initialBackoff
	for {
		select {
		case <-c.done:
			return
		case <-time.After(backoff):
		}

		err := c.dial()
		if err == nil {
			return
		}
		c.mu.Lock()
		closed := c.closed
		c.mu.Unlock()
		if closed {
			return
		}
		c.fireConnectError(err)
		backoff = nextBackoff(backoff)
	}
}

// nextBackoff doubles the delay up to the cap.
func nextBackoff(d time.Duration) time.Duration {
	d *= 2
	if d > maxBackoff {
		return maxBackoff
	}
	return d
}

func (c *Client) dispatch(env protocol.Envelope) {
	c.handlersMu.RLock()
	handlers := c.handlers[env.Event]
	c.handlersMu.RUnlock()
	for _, h := range handlers {
		h(env)
	}
}

func (c *Client) fireConnect() {
	c.handlersMu.RLock()
	fns := c.onConnect
	c.handlersMu.RUnlock()
	for _, f := range fns {
		f()
	}
}

func (c *Client) fireDisconnect() {
	c.handlersMu.RLock()
	fns := c.onDisconnect
	c.handlersMu.RUnlock()
	for _, f := range fns {
		f()
	}
}

func (c *Client) fireConnectError(err error) {
	c.handlersMu.RLock()
	fns := c.onConnectError
	c.handlersMu.RUnlock()
	for _, f := range fns {
		f(err)
	}
}
