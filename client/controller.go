// Package client holds the chat client's session state and drives the
// screen state machine: user input, session API responses and transport
// events come in, state mutations and view updates go out.
package client

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"gochat/client/session"
	"gochat/client/transport"
	"gochat/protocol"
)

// Screen is the visible screen state.
type Screen int

const (
	ScreenLoggedOut Screen = iota
	ScreenLoggedIn
)

func (s Screen) String() string {
	if s == ScreenLoggedIn {
		return "logged_in"
	}
	return "logged_out"
}

// Level is the severity of a user-visible notification.
type Level int

const (
	LevelInfo Level = iota
	LevelSuccess
	LevelError
)

var ErrEmptyUsername = errors.New("client: username is empty")

// Message is one chat message as kept in the session's message log.
type Message struct {
	Username  string
	Text      string
	Timestamp time.Time
	Own       bool
}

// Transport is the outbound side of the real-time channel.
type Transport interface {
	Emit(event string, payload any) error
}

// SessionAPI is the login/logout HTTP surface.
type SessionAPI interface {
	Login(ctx context.Context, username string) (*session.LoginResult, error)
	Logout(ctx context.Context, username string) error
}

// View renders state changes. Implementations own all presentation
// concerns; the controller never touches rendering directly.
type View interface {
	ShowLoginScreen()
	ShowChatScreen(username string)
	RenderRoster(users []string)
	AppendMessage(msg Message)
	SetLoading(active bool)
	Notify(level Level, text string)
}

// EventSource is the inbound side of the transport: the dispatch table
// the controller hangs its handlers on.
type EventSource interface {
	On(event string, h transport.Handler)
	OnConnect(f func())
	OnDisconnect(f func())
	OnConnectError(f func(error))
}

// Controller owns the client session: the current user, the online
// roster and the message log. All state is reset when the screen returns
// to logged out.
type Controller struct {
	transport Transport
	session   SessionAPI
	view      View

	mu          sync.Mutex
	screen      Screen
	currentUser string
	users       []string
	messages    []Message
}

// New creates a controller with its collaborators injected.
func New(t Transport, s SessionAPI, v View) *Controller {
	return &Controller{
		transport: t,
		session:   s,
		view:      v,
		screen:    ScreenLoggedOut,
	}
}

// Bind subscribes the controller's handlers to the transport's events.
func (c *Controller) Bind(src EventSource) {
	src.On(protocol.EventUserJoined, c.handleUserJoined)
	src.On(protocol.EventUserLeft, c.handleUserLeft)
	src.On(protocol.EventUpdateUserList, c.handleUserList)
	src.On(protocol.EventNewMessage, c.handleNewMessage)
	src.OnConnect(c.handleConnect)
	src.OnDisconnect(c.handleDisconnect)
	src.OnConnectError(c.handleConnectError)
}

// Screen returns the current screen state.
func (c *Controller) Screen() Screen {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.screen
}

// CurrentUser returns the logged-in username, or "" when logged out.
func (c *Controller) CurrentUser() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentUser
}

// Roster returns a copy of the online user list.
func (c *Controller) Roster() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.users...)
}

// Messages returns a copy of the session's message log.
func (c *Controller) Messages() []Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Message(nil), c.messages...)
}

// Login validates the username, asks the session API to register it and
// on success transitions to the chat screen. Validation and rejection
// leave the state untouched.
func (c *Controller) Login(ctx context.Context, username string) error {
	username = strings.TrimSpace(username)
	if username == "" {
		c.view.Notify(LevelError, "Please enter a username")
		return ErrEmptyUsername
	}

	c.view.SetLoading(true)
	defer c.view.SetLoading(false)

	result, err := c.session.Login(ctx, username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("login request failed")
		c.view.Notify(LevelError, "Failed to login. Please try again.")
		return err
	}
	if !result.Success {
		c.view.Notify(LevelError, result.Message)
		return nil
	}

	c.mu.Lock()
	c.screen = ScreenLoggedIn
	c.currentUser = username
	c.users = append([]string(nil), result.Users...)
	users := append([]string(nil), c.users...)
	c.mu.Unlock()

	c.view.ShowChatScreen(username)
	c.view.RenderRoster(users)
	if err := c.transport.Emit(protocol.EventJoin, protocol.Presence{Username: username}); err != nil {
		log.Warn().Err(err).Msg("emit join failed")
	}
	c.view.Notify(LevelSuccess, "Welcome, "+username+"!")
	return nil
}

// Logout leaves the chat. The local transition is optimistic: the leave
// event and the screen change happen regardless of the HTTP outcome, and
// a failed logout call is only reported. Calling it with no active
// session is a no-op.
func (c *Controller) Logout(ctx context.Context) error {
	c.mu.Lock()
	username := c.currentUser
	if username == "" {
		c.mu.Unlock()
		return nil
	}
	c.screen = ScreenLoggedOut
	c.currentUser = ""
	c.users = nil
	c.messages = nil
	c.mu.Unlock()

	if err := c.transport.Emit(protocol.EventLeave, protocol.Presence{Username: username}); err != nil {
		log.Warn().Err(err).Msg("emit leave failed")
	}
	c.view.ShowLoginScreen()

	if err := c.session.Logout(ctx, username); err != nil {
		log.Error().Err(err).Str("username", username).Msg("logout request failed")
		c.view.Notify(LevelError, "Failed to logout")
		return err
	}
	c.view.Notify(LevelSuccess, "Logged out successfully")
	return nil
}

// SendMessage emits the message to the server. The message log is not
// touched here: the message is appended only when the server echoes it
// back as a new_message event. Empty input or no session is a no-op.
func (c *Controller) SendMessage(text string) error {
	text = strings.TrimSpace(text)

	c.mu.Lock()
	username := c.currentUser
	c.mu.Unlock()
	if text == "" || username == "" {
		return nil
	}

	err := c.transport.Emit(protocol.EventSendMessage, protocol.ChatMessage{
		Username: username,
		Message:  text,
	})
	if err != nil {
		log.Error().Err(err).Msg("emit send_message failed")
		c.view.Notify(LevelError, "Failed to send message")
		return err
	}
	return nil
}

// handleUserJoined shows a notification for other users joining. The
// current user's own join is suppressed: the login transition already
// told them.
func (c *Controller) handleUserJoined(env protocol.Envelope) {
	var p protocol.Presence
	if err := env.Decode(&p); err != nil {
		log.Debug().Err(err).Msg("drop malformed user_joined")
		return
	}
	if !c.isCurrentUser(p.Username) {
		c.view.Notify(LevelInfo, p.Username+" joined the chat")
	}
}

func (c *Controller) handleUserLeft(env protocol.Envelope) {
	var p protocol.Presence
	if err := env.Decode(&p); err != nil {
		log.Debug().Err(err).Msg("drop malformed user_left")
		return
	}
	if !c.isCurrentUser(p.Username) {
		c.view.Notify(LevelInfo, p.Username+" left the chat")
	}
}

// handleUserList replaces the roster wholesale. The server list is the
// single source of truth; join/leave notifications never touch it.
func (c *Controller) handleUserList(env protocol.Envelope) {
	var list protocol.UserList
	if err := env.Decode(&list); err != nil {
		log.Debug().Err(err).Msg("drop malformed update_user_list")
		return
	}

	c.mu.Lock()
	c.users = append([]string(nil), list.Users...)
	users := append([]string(nil), c.users...)
	c.mu.Unlock()

	c.view.RenderRoster(users)
}

// handleNewMessage appends the message to the log in receipt order and
// forwards it to the view. Duplicate deliveries are displayed twice;
// deduplication is the transport's concern, not this one's.
func (c *Controller) handleNewMessage(env protocol.Envelope) {
	var payload protocol.ChatMessage
	if err := env.Decode(&payload); err != nil {
		log.Debug().Err(err).Msg("drop malformed new_message")
		return
	}

	c.mu.Lock()
	msg := Message{
		Username:  payload.Username,
		Text:      payload.Message,
		Timestamp: payload.Time(),
		Own:       c.currentUser != "" && payload.Username == c.currentUser,
	}
	c.messages = append(c.messages, msg)
	c.mu.Unlock()

	c.view.AppendMessage(msg)
}

func (c *Controller) handleConnect() {
	c.view.SetLoading(false)
}

func (c *Controller) handleDisconnect() {
	c.view.Notify(LevelError, "Connection lost. Trying to reconnect...")
}

func (c *Controller) handleConnectError(err error) {
	log.Warn().Err(err).Msg("transport connect error")
	c.view.SetLoading(false)
	c.view.Notify(LevelError, "Failed to connect to server")
}

func (c *Controller) isCurrentUser(username string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.currentUser != "" && username == c.currentUser
}
