package server

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gochat/protocol"
)

const (
	writeWait      = 10 * time.Second
	maxMessageSize = 1 << 16
	sendBufferSize = 64
)

// Hub fans events out to every connected websocket client.
type Hub struct {
	srv *Server

	mu      sync.Mutex
	clients map[*Client]struct{}
}

func newHub(srv *Server) *Hub {
	return &Hub{
		srv:     srv,
		clients: make(map[*Client]struct{}),
	}
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	delete(h.clients, c)
	h.mu.Unlock()
	c.close()
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(event string, payload any) {
	env, err := protocol.NewEnvelope(event, payload)
	if err != nil {
		log.Error().Err(err).Str("event", event).Msg("build broadcast envelope")
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for c := range h.clients {
		c.push(env)
	}
}

// Client is one websocket connection.
type Client struct {
	conn   *websocket.Conn
	srv    *Server
	send   chan protocol.Envelope
	done   chan struct{}
	closed atomic.Bool
}

func newClient(conn *websocket.Conn, srv *Server) *Client {
	return &Client{
		conn: conn,
		srv:  srv,
		send: make(chan protocol.Envelope, sendBufferSize),
		done: make(chan struct{}),
	}
}

func (c *Client) readLoop() {
	defer c.close()
	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.srv.opts.PingTimeout))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.srv.opts.PingTimeout))
	})
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		env, err := protocol.ParseEnvelope(data)
		if err != nil {
			log.Debug().Err(err).Msg("drop unparseable frame")
			continue
		}
		c.srv.handleEvent(env)
	}
}

func (c *Client) writeLoop() {
	ticker := time.NewTicker(c.srv.opts.PingInterval)
	defer func() {
		ticker.Stop()
		c.close()
	}()
	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, nil)
			return
		case env := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteJSON(env); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// push queues an event, dropping the oldest queued event rather than
// blocking the hub on a slow client.
func (c *Client) push(env protocol.Envelope) {
	if c.closed.Load() {
		return
	}
	select {
	case c.send <- env:
	default:
		select {
		case <-c.send:
		default:
		}
		select {
		case c.send <- env:
		default:
		}
	}
}

func (c *Client) close() {
	if c.closed.Swap(true) {
		return
	}
	close(c.done)
	c.conn.Close()
}
