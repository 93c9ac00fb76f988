package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Store drivers
const (
	DriverMongo  = "mongo"
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
)

// Config is the process configuration, read from the environment at startup.
type Config struct {
	Port string `env:"PORT" envDefault:"8080"`

	StoreDriver   string `env:"STORE_DRIVER" envDefault:"mongo"`
	MongoURI      string `env:"MONGO_URI" envDefault:"mongodb://localhost:27017"`
	MongoDatabase string `env:"MONGO_DATABASE" envDefault:"voiceswap"`
	SQLitePath    string `env:"SQLITE_PATH" envDefault:"voiceswap.db"`

	// RedisURI empty disables the snapshot cache, the audit stream and cross-instance fan-out.
	RedisURI string `env:"REDIS_URI"`

	JWTSecret          string `env:"JWT_SECRET" envDefault:"super-secret-key-change-in-production"`
	JWTIssuer          string `env:"JWT_ISSUER"`
	GuestTokensEnabled bool   `env:"GUEST_TOKENS_ENABLED" envDefault:"true"`

	PersonaBudget      time.Duration `env:"PERSONA_BUDGET" envDefault:"180s"`
	SessionMaxDuration time.Duration `env:"SESSION_MAX_DURATION" envDefault:"300s"`
	SweepInterval      time.Duration `env:"SWEEP_INTERVAL" envDefault:"2s"`
	EventBuffer        int           `env:"EVENT_BUFFER" envDefault:"256"`
	SessionCacheTTL    time.Duration `env:"SESSION_CACHE_TTL" envDefault:"30s"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`

	OTelEndpoint string `env:"OTEL_ENDPOINT"`
	OTelEnabled  bool   `env:"OTEL_ENABLED" envDefault:"true"`
}

// Load reads .env (if present) and parses the environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		slog.Warn("could not load .env", "err", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot start with
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMongo, DriverSQLite, DriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}
	if c.JWTSecret == "" {
		return errors.New("JWT_SECRET must not be empty")
	}
	if c.PersonaBudget < 0 || c.SessionMaxDuration < 0 {
		return errors.New("PERSONA_BUDGET and SESSION_MAX_DURATION must not be negative")
	}
	if c.SweepInterval <= 0 {
		return errors.New("SWEEP_INTERVAL must be positive")
	}
	if c.EventBuffer <= 0 {
		return errors.New("EVENT_BUFFER must be positive")
	}
	return nil
}

// Addr is the HTTP listen address
func (c *Config) Addr() string {
	return ":" + c.Port
}
