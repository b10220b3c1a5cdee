// Package config loads client and server settings from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Server holds the chat server settings.
type Server struct {
	Host           string        `env:"CHAT_HOST" envDefault:"0.0.0.0"`
	Port           int           `env:"CHAT_PORT" envDefault:"5001"`
	AllowedOrigins []string      `env:"CHAT_CORS_ORIGINS" envDefault:"*" envSeparator:","`
	PingInterval   time.Duration `env:"CHAT_PING_INTERVAL" envDefault:"25s"`
	PingTimeout    time.Duration `env:"CHAT_PING_TIMEOUT" envDefault:"60s"`
	LogLevel       string        `env:"CHAT_LOG_LEVEL" envDefault:"info"`
}

// Addr returns the host:port pair the server listens on.
func (s Server) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// Client holds the chat client settings.
type Client struct {
	ServerURL   string        `env:"CHAT_SERVER_URL" envDefault:"http://localhost:5001"`
	HTTPTimeout time.Duration `env:"CHAT_HTTP_TIMEOUT" envDefault:"10s"`
	LogLevel    string        `env:"CHAT_LOG_LEVEL" envDefault:"info"`
	LogFile     string        `env:"CHAT_LOG_FILE"`
}

// LoadServer reads server settings from the environment.
func LoadServer() (Server, error) {
	var cfg Server
	if err := env.Parse(&cfg); err != nil {
		return Server{}, fmt.Errorf("config: parse server env: %w", err)
	}
	return cfg, nil
}

// LoadClient reads client settings from the environment.
func LoadClient() (Client, error) {
	var cfg Client
	if err := env.Parse(&cfg); err != nil {
		return Client{}, fmt.Errorf("config: parse client env: %w", err)
	}
	return cfg, nil
}
