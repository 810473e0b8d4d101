package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	ProgressionRedis = "redis"
	ProgressionHTTP  = "http"
	ProgressionNone  = "none"
)

type AppConfig struct {
	RedisURL    string `env:"REDIS_URL"`
	DatabaseURL string `env:"DATABASE_URL"`
	SQLitePath  string `env:"SQLITE_PATH"`

	MaxRounds      int           `env:"DUEL_MAX_ROUNDS" envDefault:"10"`
	RoundTimeLimit int           `env:"DUEL_ROUND_TIME_LIMIT" envDefault:"15"`
	SessionTTL     time.Duration `env:"DUEL_SESSION_TTL" envDefault:"1h"`
	MatchSize      int           `env:"MATCH_SIZE" envDefault:"2"`

	ProgressionMode    string        `env:"PROGRESSION_MODE" envDefault:"redis"`
	ProgressionURL     string        `env:"PROGRESSION_URL"`
	ProgressionTimeout time.Duration `env:"PROGRESSION_TIMEOUT" envDefault:"2s"`
	ProgressionToken   string        `env:"PROGRESSION_TOKEN"`

	PoolFile    string `env:"POOL_FILE"`
	MessagesDir string `env:"MESSAGES_DIR"`

	CommandChannel     string `env:"COMMAND_CHANNEL" envDefault:"duel:commands"`
	EventChannelPrefix string `env:"EVENT_CHANNEL_PREFIX" envDefault:"duel:events:"`
	// NotifyDryRun logs outbound events instead of publishing them.
	NotifyDryRun bool `env:"NOTIFY_DRYRUN" envDefault:"false"`
}

func Load() (*AppConfig, error) {
	cfg := &AppConfig{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *AppConfig) normalize() {
	c.RedisURL = strings.TrimSpace(c.RedisURL)
	c.DatabaseURL = strings.TrimSpace(c.DatabaseURL)
	c.SQLitePath = strings.TrimSpace(c.SQLitePath)
	c.ProgressionMode = strings.ToLower(strings.TrimSpace(c.ProgressionMode))
	c.ProgressionURL = strings.TrimSpace(c.ProgressionURL)
	c.PoolFile = strings.TrimSpace(c.PoolFile)
	c.MessagesDir = strings.TrimSpace(c.MessagesDir)
}

func (c *AppConfig) Validate() error {
	if c.RedisURL == "" {
		return errors.New("REDIS_URL is required")
	}
	if c.DatabaseURL == "" && c.SQLitePath == "" {
		return errors.New("one of DATABASE_URL or SQLITE_PATH is required")
	}
	if c.DatabaseURL != "" && c.SQLitePath != "" {
		return errors.New("DATABASE_URL and SQLITE_PATH are mutually exclusive")
	}
	if c.MaxRounds <= 0 {
		return fmt.Errorf("DUEL_MAX_ROUNDS must be positive, got %d", c.MaxRounds)
	}
	if c.RoundTimeLimit <= 0 {
		return fmt.Errorf("DUEL_ROUND_TIME_LIMIT must be positive, got %d", c.RoundTimeLimit)
	}
	if c.MatchSize != 2 {
		return fmt.Errorf("MATCH_SIZE must be 2, got %d", c.MatchSize)
	}
	switch c.ProgressionMode {
	case ProgressionRedis, ProgressionNone:
	case ProgressionHTTP:
		if c.ProgressionURL == "" {
			return errors.New("PROGRESSION_URL is required when PROGRESSION_MODE=http")
		}
	default:
		return fmt.Errorf("unknown PROGRESSION_MODE %q", c.ProgressionMode)
	}
	if strings.TrimSpace(c.CommandChannel) == "" {
		return errors.New("COMMAND_CHANNEL must not be empty")
	}
	return nil
}
