// Package server implements the chat backend: the login/logout session
// endpoints and the websocket hub that fans chat events out to every
// connected client.
package server

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"gochat/protocol"
)

// Options tunes the server. Zero values use sensible defaults.
type Options struct {
	AllowedOrigins []string
	PingInterval   time.Duration
	PingTimeout    time.Duration
}

// Server tracks the active users and serves the session and websocket
// endpoints. Users stay on the roster until they log out; a dropped
// websocket alone does not remove them.
type Server struct {
	opts Options
	hub  *Hub

	mu     sync.RWMutex
	active map[string]time.Time // username -> joined at
	order  []string             // roster in join order
}

// New creates a server.
func New(opts Options) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.PingTimeout <= 0 {
		opts.PingTimeout = 60 * time.Second
	}
	s := &Server{
		opts:   opts,
		active: make(map[string]time.Time),
	}
	s.hub = newHub(s)
	return s
}

// Router builds the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	r.Post("/login", s.handleLogin)
	r.Post("/logout", s.handleLogout)
	r.Get("/ws", s.handleWebsocket)
	return r
}

type sessionRequest struct {
	Username string `json:"username"`
}

type sessionResponse struct {
	Success  bool     `json:"success"`
	Username string   `json:"username,omitempty"`
	Users    []string `json:"users,omitempty"`
	Message  string   `json:"message,omitempty"`
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sessionResponse{Message: "Invalid request body"})
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == "" {
		writeJSON(w, http.StatusBadRequest, sessionResponse{Message: "Username is required"})
		return
	}

	s.mu.Lock()
	if _, taken := s.active[username]; taken {
		s.mu.Unlock()
		writeJSON(w, http.StatusBadRequest, sessionResponse{Message: "Username already taken"})
		return
	}
	joinedAt := time.Now().UTC()
	s.active[username] = joinedAt
	s.order = append(s.order, username)
	users := append([]string(nil), s.order...)
	s.mu.Unlock()

	log.Info().Str("username", username).Int("online", len(users)).Msg("user logged in")

	s.hub.Broadcast(protocol.EventUserJoined, protocol.Presence{
		Username: username,
		JoinedAt: protocol.FormatTimestamp(joinedAt),
	})
	s.hub.Broadcast(protocol.EventUpdateUserList, protocol.UserList{Users: users})

	writeJSON(w, http.StatusOK, sessionResponse{Success: true, Username: username, Users: users})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, sessionResponse{Message: "Invalid request body"})
		return
	}
	username := strings.TrimSpace(req.Username)

	s.mu.Lock()
	if _, ok := s.active[username]; !ok {
		s.mu.Unlock()
		writeJSON(w, http.StatusNotFound, sessionResponse{Message: "User not found"})
		return
	}
	delete(s.active, username)
	for i, name := range s.order {
		if name == username {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	users := append([]string(nil), s.order...)
	s.mu.Unlock()

	log.Info().Str("username", username).Int("online", len(users)).Msg("user logged out")

	s.hub.Broadcast(protocol.EventUserLeft, protocol.Presence{Username: username})
	s.hub.Broadcast(protocol.EventUpdateUserList, protocol.UserList{Users: users})

	writeJSON(w, http.StatusOK, sessionResponse{Success: true})
}

func (s *Server) handleWebsocket(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := newClient(conn, s)
	s.hub.add(client)
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client connected")

	go client.writeLoop()
	client.readLoop()

	s.hub.remove(client)
	log.Debug().Str("remote", conn.RemoteAddr().String()).Msg("client disconnected")
}

func (s *Server) checkOrigin(r *http.Request) bool {
	origins := s.opts.AllowedOrigins
	if len(origins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	for _, allowed := range origins {
		if allowed == "*" || allowed == origin {
			return true
		}
	}
	return origin == ""
}

// handleEvent processes one inbound client event.
func (s *Server) handleEvent(env protocol.Envelope) {
	switch env.Event {
	case protocol.EventJoin, protocol.EventLeave:
		var p protocol.Presence
		if err := env.Decode(&p); err != nil {
			log.Debug().Err(err).Str("event", env.Event).Msg("drop malformed presence event")
			return
		}
		log.Debug().Str("username", p.Username).Str("event", env.Event).Msg("presence event")

	case protocol.EventSendMessage:
		var msg protocol.ChatMessage
		if err := env.Decode(&msg); err != nil {
			log.Debug().Err(err).Msg("drop malformed send_message")
			return
		}
		if msg.Username == "" || msg.Message == "" || !s.isActive(msg.Username) {
			log.Debug().Str("username", msg.Username).Msg("drop message from inactive user")
			return
		}
		s.hub.Broadcast(protocol.EventNewMessage, protocol.ChatMessage{
			Username:  msg.Username,
			Message:   msg.Message,
			Timestamp: protocol.FormatTimestamp(time.Now()),
		})

	default:
		log.Debug().Str("event", env.Event).Msg("unknown event")
	}
}

func (s *Server) isActive(username string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.active[username]
	return ok
}

// users returns the roster in join order.
func (s *Server) users() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]string(nil), s.order...)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write response")
	}
}
