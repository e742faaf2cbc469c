// Package config is the application configuration: the reusable core
// sections plus storage, sessions, metrics, catalog seeding and copy.
package config

import (
	"fmt"
	"strings"
	"time"

	coreconfig "github.com/m3rciful/intakebot/core/config"
	coredatabase "github.com/m3rciful/intakebot/core/database"
	"github.com/m3rciful/intakebot/internal/intake"
)

const (
	// SessionStoreMemory keeps sessions in process memory.
	SessionStoreMemory = "memory"
	// SessionStoreRedis keeps sessions in Redis so restarts and replicas share them.
	SessionStoreRedis = "redis"

	defaultSessionTTL = 24 * time.Hour
	defaultLockTTL    = 30 * time.Second
	defaultKeyPrefix  = "intakebot:"
)

// RedisConfig points at the Redis used for sessions and locks.
type RedisConfig struct {
	Addr     string `yaml:"addr" envconfig:"REDIS_ADDR"`
	Password string `yaml:"password" envconfig:"REDIS_PASSWORD"`
	DB       int    `yaml:"db" envconfig:"REDIS_DB"`
	// Prefix namespaces every key; sessions live under Prefix+"session:".
	Prefix string `yaml:"prefix" envconfig:"REDIS_PREFIX"`
}

// SessionConfig selects the session store and its lifetime.
type SessionConfig struct {
	Store string        `yaml:"store" envconfig:"SESSION_STORE"`
	TTL   time.Duration `yaml:"ttl" envconfig:"SESSION_TTL"`
	// Lock serializes updates of one session across processes; redis only.
	Lock bool `yaml:"lock" envconfig:"SESSION_LOCK"`
	// LockTTL is renewed while an update runs; it bounds a crashed holder
	// and the wait for a busy session.
	LockTTL time.Duration `yaml:"lock_ttl" envconfig:"SESSION_LOCK_TTL"`
}

// MetricsConfig enables the Prometheus endpoint when Listen is set.
type MetricsConfig struct {
	Listen string `yaml:"listen" envconfig:"METRICS_LISTEN"`
}

// CatalogConfig names the YAML file that seeds an empty catalog.
type CatalogConfig struct {
	SeedFile string `yaml:"seed_file" envconfig:"CATALOG_SEED_FILE"`
}

// Config is the full application configuration.
type Config struct {
	coreconfig.Config `yaml:",inline"`

	Database coredatabase.Config `yaml:"database"`
	Redis    RedisConfig         `yaml:"redis"`
	Session  SessionConfig       `yaml:"session"`
	Metrics  MetricsConfig       `yaml:"metrics"`
	Catalog  CatalogConfig       `yaml:"catalog"`
	Texts    intake.Texts        `yaml:"texts"`
}

// Load reads path, overlays the environment and normalizes the result.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := coreconfig.Decode(path, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize validates every section and fills defaults.
func (c *Config) Normalize() error {
	if err := coreconfig.Normalize(&c.Config); err != nil {
		return err
	}
	if err := c.Database.Normalize(); err != nil {
		return err
	}

	c.Session.Store = strings.ToLower(strings.TrimSpace(c.Session.Store))
	switch c.Session.Store {
	case "":
		c.Session.Store = SessionStoreMemory
	case SessionStoreMemory, SessionStoreRedis:
	default:
		return fmt.Errorf("invalid session.store %q; allowed: memory, redis", c.Session.Store)
	}
	if c.Session.TTL < 0 {
		return fmt.Errorf("session.ttl must be >= 0")
	}
	if c.Session.TTL == 0 {
		c.Session.TTL = defaultSessionTTL
	}
	if c.Session.LockTTL <= 0 {
		c.Session.LockTTL = defaultLockTTL
	}

	if c.Session.Store == SessionStoreRedis || c.Session.Lock {
		if strings.TrimSpace(c.Redis.Addr) == "" {
			return fmt.Errorf("redis.addr is required when session.store is redis or session.lock is on")
		}
	}
	if c.Redis.Prefix == "" {
		c.Redis.Prefix = defaultKeyPrefix
	}

	c.Texts = c.Texts.WithDefaults()
	return nil
}
