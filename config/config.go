package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the runtime settings of the chat service.
type Config struct {
	// Port is the HTTP/WebSocket listen port
	Port int

	// NATSPort is the port of the embedded NATS server
	NATSPort int

	// AllowedOrigins is the comma-separated CORS allow-list
	AllowedOrigins string

	// HistoryCapacity is the number of recent messages kept per room
	HistoryCapacity int

	MaxRoomNameLength int
	MaxUsernameLength int
	MaxMessageLength  int

	// HeartbeatTimeout closes a connection that sent nothing for this long
	HeartbeatTimeout time.Duration

	// SendBufferSize bounds the outbound queue of every connection
	SendBufferSize int

	// WriteTimeout bounds a single frame write to a peer
	WriteTimeout time.Duration

	// MessageRate and MessageBurst configure the per-connection chat token bucket (0 disables)
	MessageRate  float64
	MessageBurst int

	// RoomIdleTTL retires rooms with no members after this long (0 disables)
	RoomIdleTTL time.Duration

	// ReapInterval is how often idle rooms are checked
	ReapInterval time.Duration

	ShutdownTimeout time.Duration
}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Port:              3000,
		NATSPort:          4222,
		AllowedOrigins:    "http://localhost:3000,http://localhost:8080",
		HistoryCapacity:   50,
		MaxRoomNameLength: 100,
		MaxUsernameLength: 50,
		MaxMessageLength:  5000,
		HeartbeatTimeout:  90 * time.Second,
		SendBufferSize:    64,
		WriteTimeout:      10 * time.Second,
		MessageRate:       0,
		MessageBurst:      20,
		RoomIdleTTL:       0,
		ReapInterval:      time.Minute,
		ShutdownTimeout:   30 * time.Second,
	}
}

// Option is a function that modifies Config.
type Option func(*Config)

// WithPort sets the HTTP listen port.
func WithPort(port int) Option {
	return func(c *Config) {
		c.Port = port
	}
}

// WithHistoryCapacity sets the per-room history size.
func WithHistoryCapacity(n int) Option {
	return func(c *Config) {
		c.HistoryCapacity = n
	}
}

// WithHeartbeatTimeout sets the liveness window.
func WithHeartbeatTimeout(d time.Duration) Option {
	return func(c *Config) {
		c.HeartbeatTimeout = d
	}
}

// WithSendBufferSize sets the outbound queue length per connection.
func WithSendBufferSize(n int) Option {
	return func(c *Config) {
		c.SendBufferSize = n
	}
}

// WithMessageRate sets the chat token bucket.
func WithMessageRate(perSecond float64, burst int) Option {
	return func(c *Config) {
		c.MessageRate = perSecond
		c.MessageBurst = burst
	}
}

// WithRoomIdleTTL enables the idle-room reaper.
func WithRoomIdleTTL(ttl, interval time.Duration) Option {
	return func(c *Config) {
		c.RoomIdleTTL = ttl
		c.ReapInterval = interval
	}
}

// New builds a Config from defaults and applies opts in order.
func New(opts ...Option) Config {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// FromEnv overlays environment variables on top of the defaults and validates the result.
func FromEnv() (Config, error) {
	cfg := DefaultConfig()
	var errs []error

	cfg.Port = getEnvInt("PORT", cfg.Port, &errs)
	cfg.NATSPort = getEnvInt("NATS_PORT", cfg.NATSPort, &errs)
	cfg.AllowedOrigins = getEnv("CORS_ALLOWED_ORIGINS", cfg.AllowedOrigins)
	cfg.HistoryCapacity = getEnvInt("HISTORY_CAPACITY", cfg.HistoryCapacity, &errs)
	cfg.MaxRoomNameLength = getEnvInt("MAX_ROOM_NAME_LENGTH", cfg.MaxRoomNameLength, &errs)
	cfg.MaxUsernameLength = getEnvInt("MAX_USERNAME_LENGTH", cfg.MaxUsernameLength, &errs)
	cfg.MaxMessageLength = getEnvInt("MAX_MESSAGE_LENGTH", cfg.MaxMessageLength, &errs)
	cfg.HeartbeatTimeout = getEnvDuration("HEARTBEAT_TIMEOUT", cfg.HeartbeatTimeout, &errs)
	cfg.SendBufferSize = getEnvInt("SEND_BUFFER_SIZE", cfg.SendBufferSize, &errs)
	cfg.WriteTimeout = getEnvDuration("WRITE_TIMEOUT", cfg.WriteTimeout, &errs)
	cfg.MessageRate = getEnvFloat("MESSAGE_RATE", cfg.MessageRate, &errs)
	cfg.MessageBurst = getEnvInt("MESSAGE_BURST", cfg.MessageBurst, &errs)
	cfg.RoomIdleTTL = getEnvDuration("ROOM_IDLE_TTL", cfg.RoomIdleTTL, &errs)
	cfg.ReapInterval = getEnvDuration("REAP_INTERVAL", cfg.ReapInterval, &errs)
	cfg.ShutdownTimeout = getEnvDuration("SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout, &errs)

	if err := errors.Join(errs...); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// Validate reports every invalid field at once.
func (c Config) Validate() error {
	var errs []error
	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, fmt.Errorf("port out of range: %d", c.Port))
	}
	if c.NATSPort <= 0 || c.NATSPort > 65535 {
		errs = append(errs, fmt.Errorf("nats port out of range: %d", c.NATSPort))
	}
	if c.HistoryCapacity <= 0 {
		errs = append(errs, fmt.Errorf("history capacity must be positive, got %d", c.HistoryCapacity))
	}
	if c.MaxRoomNameLength <= 0 || c.MaxUsernameLength <= 0 || c.MaxMessageLength <= 0 {
		errs = append(errs, errors.New("length limits must be positive"))
	}
	if c.HeartbeatTimeout <= 0 {
		errs = append(errs, fmt.Errorf("heartbeat timeout must be positive, got %s", c.HeartbeatTimeout))
	}
	if c.SendBufferSize <= 0 {
		errs = append(errs, fmt.Errorf("send buffer size must be positive, got %d", c.SendBufferSize))
	}
	if c.WriteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("write timeout must be positive, got %s", c.WriteTimeout))
	}
	if c.MessageRate < 0 {
		errs = append(errs, fmt.Errorf("message rate must not be negative, got %g", c.MessageRate))
	}
	if c.MessageRate > 0 && c.MessageBurst <= 0 {
		errs = append(errs, errors.New("message burst must be positive when message rate is set"))
	}
	if c.RoomIdleTTL < 0 {
		errs = append(errs, fmt.Errorf("room idle ttl must not be negative, got %s", c.RoomIdleTTL))
	}
	if c.RoomIdleTTL > 0 && c.ReapInterval <= 0 {
		errs = append(errs, errors.New("reap interval must be positive when room idle ttl is set"))
	}
	return errors.Join(errs...)
}

// Addr returns the listen address for the HTTP server.
func (c Config) Addr() string {
	return ":" + strconv.Itoa(c.Port)
}

// Origins returns AllowedOrigins split and trimmed.
func (c Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

// getEnv returns the environment variable value or a default.
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int, errs *[]error) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return n
}

func getEnvFloat(key string, defaultValue float64, errs *[]error) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	f, err := strconv.ParseFloat(value, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return f
}

func getEnvDuration(key string, defaultValue time.Duration, errs *[]error) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s: %w", key, err))
		return defaultValue
	}
	return d
}
