package config

import (
	"net"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds process settings read from the environment.
type Config struct {
	Port           string
	BindAddr       string
	AllowedOrigins string
	ReapInterval   time.Duration
	RoomRetention  time.Duration
	SendBuffer     int
	DefaultRoom    string
	Quiet          bool

	// WebSocket connection limits
	MessageRate   int // inbound frames per second per connection, 0 disables
	MessageBurst  int
	MaxFrameBytes int
	PingInterval  time.Duration
}

// Load reads the configuration, falling back to defaults for unset or invalid values.
func Load() Config {
	return Config{
		Port:           getEnv("PORT", "8080"),
		BindAddr:       getEnv("BIND_ADDR", "0.0.0.0"),
		AllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
		ReapInterval:   getEnvDuration("REAP_INTERVAL", 10*time.Minute),
		RoomRetention:  getEnvDuration("ROOM_RETENTION", time.Hour),
		SendBuffer:     getEnvInt("SEND_BUFFER", 256),
		DefaultRoom:    getEnv("DEFAULT_ROOM", "default"),
		Quiet:          getEnvBool("QUIET", false),
		MessageRate:    getEnvNonNegativeInt("MESSAGE_RATE", 100),
		MessageBurst:   getEnvInt("MESSAGE_BURST", 200),
		MaxFrameBytes:  getEnvInt("MAX_FRAME_BYTES", 100<<20),
		PingInterval:   getEnvDuration("PING_INTERVAL", 20*time.Second),
	}
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return net.JoinHostPort(c.BindAddr, c.Port)
}

// getEnv returns the env var or a default
func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

// getEnvInt parses a positive int env var with a fallback
func getEnvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i > 0 {
			return i
		}
	}
	return def
}

func getEnvNonNegativeInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if i, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && i >= 0 {
			return i
		}
	}
	return def
}

// getEnvDuration parses a positive duration such as "90s" or "1h"
func getEnvDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func getEnvBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			return b
		}
	}
	return def
}
