package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	BackendREST   = "rest"
	BackendGRPC   = "grpc"
	BackendMemory = "memory"

	StoreSQLite = "sqlite"
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

var ErrInvalidConfig = errors.New("invalid config")

// Config holds runtime settings for the authsession CLI.
type Config struct {
	ServerEndpointAddr string        `env:"SERVER_ADDRESS"`
	Backend            string        `env:"BACKEND"`
	TokenStore         string        `env:"TOKEN_STORE"`
	DatabaseDSN        string        `env:"DATABASE_DSN"`
	RedisAddr          string        `env:"REDIS_ADDR"`
	TokenPassphrase    string        `env:"TOKEN_PASSPHRASE"`
	RequestTimeout     time.Duration `env:"REQUEST_TIMEOUT"`
	LogLevel           string        `env:"LOG_LEVEL"`
	LogFormat          string        `env:"LOG_FORMAT"`
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "http://127.0.0.1:8080"
	c.Backend = BackendREST
	c.TokenStore = StoreSQLite
	c.DatabaseDSN = "authsession.db"
	c.RedisAddr = "127.0.0.1:6379"
	c.RequestTimeout = 10 * time.Second
	c.LogLevel = "info"
	c.LogFormat = "text"
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendREST, BackendGRPC, BackendMemory:
	default:
		return fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, c.Backend)
	}

	switch c.TokenStore {
	case StoreSQLite:
		if c.DatabaseDSN == "" {
			return fmt.Errorf("%w: sqlite token store needs a database dsn", ErrInvalidConfig)
		}
	case StoreRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("%w: redis token store needs an address", ErrInvalidConfig)
		}
	case StoreMemory:
	default:
		return fmt.Errorf("%w: unknown token store %q", ErrInvalidConfig, c.TokenStore)
	}

	if c.Backend != BackendMemory && strings.TrimSpace(c.ServerEndpointAddr) == "" {
		return fmt.Errorf("%w: server address is required for the %s backend", ErrInvalidConfig, c.Backend)
	}
	if c.RequestTimeout < 0 {
		return fmt.Errorf("%w: negative request timeout", ErrInvalidConfig)
	}
	return nil
}

// Load builds a Config from defaults, the JSON file, the environment and
// args (without the program name), in that order, and validates it.
func Load(args []string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseJson(cfg, args); err != nil {
		return nil, err
	}
	if err := parseEnv(cfg); err != nil {
		return nil, err
	}
	if err := parseFlags(cfg, args); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadConfig is Load over os.Args.
func LoadConfig() (*Config, error) {
	return Load(os.Args[1:])
}
