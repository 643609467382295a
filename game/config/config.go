package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// Storage drivers
const (
	DriverMemory   = "memory"
	DriverFile     = "file"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// ErrInvalidConfig wraps every validation failure
var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the complete server configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Storage   StorageConfig   `yaml:"storage"`
	Rooms     RoomsConfig     `yaml:"rooms"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	Log       LogConfig       `yaml:"log"`
	Ngrok     NgrokConfig     `yaml:"ngrok"`
}

// ServerConfig configures the HTTP listener
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// StorageConfig selects where rooms are persisted
type StorageConfig struct {
	// Driver is one of memory, file, sqlite or postgres
	Driver string `yaml:"driver"`
	// Dir holds one JSON file per game for the file driver
	Dir string `yaml:"dir"`
	// DSN is the database connection string for sqlite and postgres
	DSN string `yaml:"dsn"`
}

// RoomsConfig configures room lifetime
type RoomsConfig struct {
	// IdleTimeout is how long a room with no connections stays in memory
	IdleTimeout time.Duration `yaml:"idle_timeout"`
	// EvictionInterval is how often idle rooms are looked for
	EvictionInterval time.Duration `yaml:"eviction_interval"`
	// ProactiveTimeouts wakes a room at its turn deadline instead of
	// waiting for the next message
	ProactiveTimeouts bool `yaml:"proactive_timeouts"`
}

// WebSocketConfig configures player connections
type WebSocketConfig struct {
	// RateLimit is inbound messages per second per connection; 0 disables it
	RateLimit      float64 `yaml:"rate_limit"`
	Burst          int     `yaml:"burst"`
	MaxMessageSize int64   `yaml:"max_message_size"`
}

// LogConfig configures zerolog
type LogConfig struct {
	Level  string `yaml:"level"`
	Pretty bool   `yaml:"pretty"`
}

// NgrokConfig configures the optional public tunnel. The auth token is read
// from NGROK_AUTHTOKEN.
type NgrokConfig struct {
	Enabled bool   `yaml:"enabled"`
	Domain  string `yaml:"domain"`
}

// Default returns a Config with sensible defaults
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Storage: StorageConfig{
			Driver: DriverFile,
			Dir:    "games",
		},
		Rooms: RoomsConfig{
			IdleTimeout:       30 * time.Minute,
			EvictionInterval:  time.Minute,
			ProactiveTimeouts: true,
		},
		WebSocket: WebSocketConfig{
			RateLimit:      5,
			Burst:          10,
			MaxMessageSize: 4096,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// LoadFile reads a YAML file over the defaults. Keys missing from the file
// keep their default value.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return cfg, nil
}

// SaveFile writes the configuration as YAML
func (c *Config) SaveFile(path string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create config directory: %w", err)
		}
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks that the configuration is usable
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: "+format, append([]any{ErrInvalidConfig}, args...)...))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		add("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.ShutdownTimeout < 0 {
		add("server.shutdown_timeout must not be negative")
	}

	switch c.Storage.Driver {
	case DriverMemory:
	case DriverFile:
		if c.Storage.Dir == "" {
			add("storage.dir is required for the file driver")
		}
	case DriverSQLite, DriverPostgres:
		if c.Storage.DSN == "" {
			add("storage.dsn is required for the %s driver", c.Storage.Driver)
		}
	default:
		add("unknown storage.driver %q", c.Storage.Driver)
	}

	if c.Rooms.IdleTimeout < 0 {
		add("rooms.idle_timeout must not be negative")
	}
	if c.Rooms.IdleTimeout > 0 && c.Rooms.EvictionInterval <= 0 {
		add("rooms.eviction_interval must be positive when rooms.idle_timeout is set")
	}

	if c.WebSocket.RateLimit < 0 {
		add("websocket.rate_limit must not be negative")
	}
	if c.WebSocket.Burst < 0 {
		add("websocket.burst must not be negative")
	}
	if c.WebSocket.MaxMessageSize < 0 {
		add("websocket.max_message_size must not be negative")
	}

	if _, err := c.Log.ZerologLevel(); err != nil {
		add("log.level: %v", err)
	}
	return errors.Join(errs...)
}

// Addr returns the host:port the server listens on
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Server.Host, strconv.Itoa(c.Server.Port))
}

// ZerologLevel parses Level, defaulting to info when empty
func (l LogConfig) ZerologLevel() (zerolog.Level, error) {
	if l.Level == "" {
		return zerolog.InfoLevel, nil
	}
	return zerolog.ParseLevel(l.Level)
}
