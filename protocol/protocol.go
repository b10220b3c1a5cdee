// Package protocol defines the chat event names, payloads and the JSON
// envelope carried over the websocket transport. Both the client transport
// and the server hub speak this format.
package protocol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Client-to-server events.
const (
	EventJoin        = "join"
	EventLeave       = "leave"
	EventSendMessage = "send_message"
)

// Server-to-client events.
const (
	EventUserJoined     = "user_joined"
	EventUserLeft       = "user_left"
	EventUpdateUserList = "update_user_list"
	EventNewMessage     = "new_message"
)

var ErrEmptyEvent = errors.New("protocol: empty event name")

// Envelope is the wire frame: an event name plus its raw payload.
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// NewEnvelope wraps a payload value into an envelope for the given event.
func NewEnvelope(event string, payload any) (Envelope, error) {
	if event == "" {
		return Envelope{}, ErrEmptyEvent
	}
	env := Envelope{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Envelope{}, fmt.Errorf("protocol: marshal %s payload: %w", event, err)
		}
		env.Data = data
	}
	return env, nil
}

// Decode unmarshals the envelope payload into v.
func (e Envelope) Decode(v any) error {
	if len(e.Data) == 0 {
		return fmt.Errorf("protocol: %s event has no payload", e.Event)
	}
	if err := json.Unmarshal(e.Data, v); err != nil {
		return fmt.Errorf("protocol: decode %s payload: %w", e.Event, err)
	}
	return nil
}

// ParseEnvelope parses a raw websocket frame.
func ParseEnvelope(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("protocol: parse envelope: %w", err)
	}
	if env.Event == "" {
		return Envelope{}, ErrEmptyEvent
	}
	return env, nil
}

// Presence is the payload of join, leave, user_joined and user_left.
// JoinedAt is set by the server on user_joined only.
type Presence struct {
	Username string `json:"username"`
	JoinedAt string `json:"joined_at,omitempty"`
}

// UserList is the payload of update_user_list: the full roster, which
// replaces any client-side list wholesale.
type UserList struct {
	Users []string `json:"users"`
}

// ChatMessage is the payload of send_message (client, no timestamp) and
// new_message (server, timestamp in RFC 3339).
type ChatMessage struct {
	Username  string `json:"username"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp,omitempty"`
}

// Time parses the message timestamp. A missing or malformed timestamp
// falls back to the local receipt time.
func (m ChatMessage) Time() time.Time {
	if t, err := time.Parse(time.RFC3339Nano, m.Timestamp); err == nil {
		return t
	}
	return time.Now()
}

// FormatTimestamp renders a timestamp the way the server stamps messages.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
