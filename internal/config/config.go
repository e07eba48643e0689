package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"reliability-platform/pkg/database"
)

// Config holds all runtime configuration
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Logging  LoggingConfig
	Auth     AuthConfig
	Scoring  ScoringConfig
	Source   SourceConfig
}

// ServerConfig configures the HTTP API
type ServerConfig struct {
	Host               string
	Port               int
	ReadTimeout        time.Duration
	WriteTimeout       time.Duration
	IdleTimeout        time.Duration
	CORSAllowedOrigins []string
}

// DatabaseConfig configures the PostgreSQL store
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Postgres converts the settings for pkg/database
func (d DatabaseConfig) Postgres() *database.Config {
	return &database.Config{
		Host:            d.Host,
		Port:            d.Port,
		User:            d.User,
		Password:        d.Password,
		Database:        d.Database,
		SSLMode:         d.SSLMode,
		MaxOpenConns:    d.MaxOpenConns,
		MaxIdleConns:    d.MaxIdleConns,
		ConnMaxLifetime: d.ConnMaxLifetime,
		ConnMaxIdleTime: d.ConnMaxIdleTime,
	}
}

// Address is the host:port the API listens on
func (s ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures the structured logger
type LoggingConfig struct {
	Level string
}

// AuthConfig lists accepted API keys
type AuthConfig struct {
	APIKeys []string
}

// ScoringConfig tunes the batch run fan-out
type ScoringConfig struct {
	Workers int
	Shards  int
}

// SourceConfig locates the upstream queue database
type SourceConfig struct {
	Path string
}

// LoadConfig reads an optional .env file and then the process environment.
// Variables already set in the environment win over .env entries.
func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var errs []string
	env := &envReader{errs: &errs}

	cfg := &Config{
		Server: ServerConfig{
			Host:               env.str("SERVER_HOST", "0.0.0.0"),
			Port:               env.integer("SERVER_PORT", 8000),
			ReadTimeout:        env.duration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:       env.duration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:        env.duration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			CORSAllowedOrigins: env.list("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Database: DatabaseConfig{
			Host:            env.str("DB_HOST", "localhost"),
			Port:            env.integer("DB_PORT", 5432),
			User:            env.str("DB_USER", "postgres"),
			Password:        env.str("DB_PASSWORD", ""),
			Database:        env.str("DB_NAME", "developers"),
			SSLMode:         env.str("DB_SSLMODE", "disable"),
			MaxOpenConns:    env.integer("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    env.integer("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: env.duration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
			ConnMaxIdleTime: env.duration("DB_CONN_MAX_IDLE_TIME", time.Minute),
		},
		Logging: LoggingConfig{
			Level: strings.ToLower(env.str("LOG_LEVEL", "info")),
		},
		Auth: AuthConfig{
			APIKeys: env.list("API_KEYS", []string{"dev-key-change-me"}),
		},
		Scoring: ScoringConfig{
			Workers: env.integer("SCORING_WORKERS", 8),
			Shards:  env.integer("SCORING_SHARDS", 4),
		},
		Source: SourceConfig{
			Path: env.str("SOURCE_DB", "data/queue.db"),
		},
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid environment: %s", strings.Join(errs, "; "))
	}

	return cfg, nil
}

// Validate checks the configuration for values the services cannot run with
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server port %d out of range", c.Server.Port))
	}
	if c.Database.Host == "" {
		errs = append(errs, "database host is required")
	}
	if c.Database.Database == "" {
		errs = append(errs, "database name is required")
	}
	if c.Database.Port <= 0 || c.Database.Port > 65535 {
		errs = append(errs, fmt.Sprintf("database port %d out of range", c.Database.Port))
	}
	if c.Database.MaxOpenConns <= 0 {
		errs = append(errs, "database max open connections must be positive")
	}
	if len(c.Auth.APIKeys) == 0 {
		errs = append(errs, "at least one API key is required")
	}
	if c.Scoring.Workers <= 0 {
		errs = append(errs, "scoring workers must be positive")
	}
	if c.Scoring.Shards <= 0 {
		errs = append(errs, "scoring shards must be positive")
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Logging.Level))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

type envReader struct {
	errs *[]string
}

func (e *envReader) str(key, def string) string {
	if v, ok := os.LookupEnv(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *envReader) integer(key string, def int) int {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %q is not an integer", key, raw))
		return def
	}
	return v
}

func (e *envReader) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		*e.errs = append(*e.errs, fmt.Sprintf("%s: %q is not a duration", key, raw))
		return def
	}
	return v
}

// list splits a comma separated value, dropping blanks
func (e *envReader) list(key string, def []string) []string {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
