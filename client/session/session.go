// Package session is the HTTP client for the chat server's login and
// logout endpoints.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 10 * time.Second

// LoginResult is the server's answer to a login request. On rejection
// Success is false and Message carries the server-provided reason.
type LoginResult struct {
	Success  bool     `json:"success"`
	Username string   `json:"username,omitempty"`
	Users    []string `json:"users,omitempty"`
	Message  string   `json:"message,omitempty"`
}

type credentials struct {
	Username string `json:"username"`
}

// Client talks to the session endpoints of a chat server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a session client for the given server base URL.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
}

// Login asks the server to register the username. A rejected username is
// not an error: the result carries Success=false and the reason. An error
// is returned only when the request itself fails.
func (c *Client) Login(ctx context.Context, username string) (*LoginResult, error) {
	var result LoginResult
	if err := c.post(ctx, "/login", credentials{Username: username}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Logout releases the username. The server's acknowledgement body is not
// consumed beyond draining it; only transport failures are reported.
func (c *Client) Logout(ctx context.Context, username string) error {
	return c.post(ctx, "/logout", credentials{Username: username}, nil)
}

func (c *Client) post(ctx context.Context, path string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("session: marshal %s request: %w", path, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("session: build %s request: %w", path, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("session: %s request: %w", path, err)
	}
	defer resp.Body.Close()

	if result == nil {
		return nil
	}
	// Rejections come back as 4xx with the same JSON shape, so the body is
	// decoded regardless of status code.
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("session: decode %s response: %w", path, err)
	}
	return nil
}
