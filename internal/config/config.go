package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

func init() {
	// .env is optional
	_ = godotenv.Load()
}

// Config holds all application configuration loaded from environment variables.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Log      LogConfig
	Session  SessionConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host              string        `envconfig:"SERVER_HOST" default:"0.0.0.0"`
	Port              int           `envconfig:"SERVER_PORT" default:"3000"`
	ReadHeaderTimeout time.Duration `envconfig:"SERVER_READ_HEADER_TIMEOUT" default:"5s"`
	IdleTimeout       time.Duration `envconfig:"SERVER_IDLE_TIMEOUT" default:"120s"`
	ShutdownTimeout   time.Duration `envconfig:"SERVER_SHUTDOWN_TIMEOUT" default:"5s"`
	StaticDir         string        `envconfig:"STATIC_DIR" default:"static"`
	AllowedOrigins    []string      `envconfig:"CORS_ALLOWED_ORIGINS" default:"*"`

	// Websocket upgrades allowed per client IP within ConnectWindow.
	ConnectLimit  int           `envconfig:"WS_CONNECT_LIMIT" default:"30"`
	ConnectWindow time.Duration `envconfig:"WS_CONNECT_WINDOW" default:"1m"`

	// Proxies (CIDRs or addresses) allowed to name the client in
	// CF-Connecting-IP or X-Forwarded-For. Empty trusts nobody.
	TrustedProxies []string `envconfig:"TRUSTED_PROXIES"`
}

// DatabaseConfig holds the sqlite location.
type DatabaseConfig struct {
	Path string `envconfig:"DB_PATH" default:"data/shoplist.db"`
}

type LogConfig struct {
	Level string `envconfig:"LOG_LEVEL" default:"info"`
}

// SessionConfig controls how long a dropped connection may resume without a full resync.
type SessionConfig struct {
	Backend        string        `envconfig:"SESSION_BACKEND" default:"memory"` // memory or redis
	RecoveryWindow time.Duration `envconfig:"SESSION_RECOVERY_WINDOW" default:"2m"`
	KeyPrefix      string        `envconfig:"SESSION_KEY_PREFIX" default:"shoplist:session"`

	RedisHost     string `envconfig:"REDIS_HOST" default:"localhost"`
	RedisPort     int    `envconfig:"REDIS_PORT" default:"6379"`
	RedisPassword string `envconfig:"REDIS_PASSWORD" default:""`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

// Address returns the server address in host:port format.
func (s *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// RedisAddress returns the Redis address in host:port format.
func (s *SessionConfig) RedisAddress() string {
	return fmt.Sprintf("%s:%d", s.RedisHost, s.RedisPort)
}

// UsesRedis reports whether session recovery is backed by Redis.
func (s *SessionConfig) UsesRedis() bool {
	return s.Backend == "redis"
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	switch cfg.Session.Backend {
	case "memory", "redis":
	default:
		return nil, fmt.Errorf("load config: unknown session backend %q", cfg.Session.Backend)
	}

	return &cfg, nil
}

// MustLoad loads configuration or panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}
