package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/uaarena/session-engine/internal/game"
)

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

// chdir moves into a clean directory so a stray .env is never picked up.
func chdir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Chdir(dir)
	return dir
}

func TestLoadDefaults(t *testing.T) {
	dir := chdir(t)

	cfg, err := Load(filepath.Join(dir, "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Server.HTTPAddress)
	assert.Equal(t, ":9090", cfg.Server.GRPCAddress)
	assert.Equal(t, 10*time.Second, cfg.Server.ShutdownTimeout)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, game.DefaultRuleset(), cfg.Rules)
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 5*time.Minute, cfg.Sessions.CleanupInterval)
	assert.False(t, cfg.Replay.Enabled)
}

func TestLoadFile(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "config.yaml", `
server:
  http_address: ":9999"
logging:
  level: debug
  format: json
auth:
  jwt_secret: file-secret
  token_ttl: 2h
rules:
  life_cards: 5
  deck_out: noop
  auto_draw: true
storage:
  driver: sqlite
  sqlite_path: /tmp/ua.db
  cache: redis
sessions:
  max_age: 30m
replay:
  enabled: true
  directory: /tmp/replays
decks:
  path: config/decks.yaml
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9999", cfg.Server.HTTPAddress)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, "file-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 2*time.Hour, cfg.Auth.TokenTTL)
	assert.Equal(t, 5, cfg.Rules.LifeCards)
	assert.Equal(t, game.DeckOutNoop, cfg.Rules.DeckOut)
	assert.True(t, cfg.Rules.AutoDraw)
	assert.Equal(t, 7, cfg.Rules.HandSize, "unset rules keep their defaults")
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, DriverRedis, cfg.Storage.Cache)
	assert.Equal(t, 30*time.Minute, cfg.Sessions.MaxAge)
	assert.True(t, cfg.Replay.Enabled)
	assert.Equal(t, "config/decks.yaml", cfg.Decks.Path)
}

func TestEnvironmentOverrides(t *testing.T) {
	dir := chdir(t)
	path := writeFile(t, dir, "config.yaml", "auth:\n  jwt_secret: file-secret\n")

	t.Setenv("UA_AUTH_JWT_SECRET", "env-secret")
	t.Setenv("UA_RULES_MAX_AP", "8")
	t.Setenv("UA_SERVER_HTTP_ADDRESS", ":7000")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "env-secret", cfg.Auth.JWTSecret)
	assert.Equal(t, 8, cfg.Rules.MaxAP)
	assert.Equal(t, ":7000", cfg.Server.HTTPAddress)
}

func TestDotEnv(t *testing.T) {
	dir := chdir(t)
	writeFile(t, dir, ".env", "UA_LOGGING_LEVEL=warn\n")
	t.Cleanup(func() { os.Unsetenv("UA_LOGGING_LEVEL") })

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := map[string]string{
		"bad yaml":          "server: [",
		"bad rules":         "rules:\n  deck_out: explode\n",
		"unknown driver":    "storage:\n  driver: mongo\n",
		"postgres no dsn":   "storage:\n  driver: postgres\n",
		"unknown cache":     "storage:\n  cache: memcached\n",
		"redis cache redis": "storage:\n  driver: redis\n  cache: redis\n",
		"negative max age":  "sessions:\n  max_age: -1m\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			dir := chdir(t)
			_, err := Load(writeFile(t, dir, "config.yaml", body))
			require.Error(t, err)
		})
	}
}
