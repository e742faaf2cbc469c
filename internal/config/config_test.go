package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
telegram:
  token: "123:abc"
  admin_id: 42
database:
  host: db
  name: intake
session:
  store: Redis
  ttl: 2h
redis:
  addr: "localhost:6379"
texts:
  catalog_button: "Услуги"
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)

	assert.Equal(t, "123:abc", cfg.Telegram.Token)
	assert.Equal(t, int64(42), cfg.Telegram.AdminID)
	assert.Equal(t, "longpoll", cfg.Telegram.RunMode)
	assert.Equal(t, SessionStoreRedis, cfg.Session.Store)
	assert.Equal(t, 2*time.Hour, cfg.Session.TTL)
	assert.Equal(t, 30*time.Second, cfg.Session.LockTTL)
	assert.Equal(t, "intakebot:", cfg.Redis.Prefix)
	assert.Equal(t, "5432", cfg.Database.Port)
	assert.Equal(t, "Услуги", cfg.Texts.CatalogButton)
	assert.NotEmpty(t, cfg.Texts.Welcome)
	assert.Same(t, &cfg.Config, cfg.CoreConfig())
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("BOT_TOKEN", "999:env")
	t.Setenv("SESSION_STORE", "memory")

	cfg, err := Load(writeConfig(t, sample))
	require.NoError(t, err)
	assert.Equal(t, "999:env", cfg.Telegram.Token)
	assert.Equal(t, SessionStoreMemory, cfg.Session.Store)
}

func TestNormalizeErrors(t *testing.T) {
	base := func() Config {
		var c Config
		c.Telegram.Token = "t"
		c.Database.Host = "db"
		c.Database.Name = "intake"
		return c
	}

	c := base()
	require.NoError(t, c.Normalize())
	assert.Equal(t, SessionStoreMemory, c.Session.Store)
	assert.Equal(t, 24*time.Hour, c.Session.TTL)

	c = base()
	c.Session.Store = "disk"
	assert.Error(t, c.Normalize())

	c = base()
	c.Session.Store = SessionStoreRedis
	assert.Error(t, c.Normalize(), "redis store needs an address")

	c = base()
	c.Session.Lock = true
	assert.Error(t, c.Normalize(), "lock needs redis")

	c = base()
	c.Database.Host = ""
	assert.Error(t, c.Normalize())
}
