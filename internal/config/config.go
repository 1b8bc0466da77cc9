// Package config loads server configuration from a YAML file, an optional
// .env file and UA_ prefixed environment variables.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/uaarena/session-engine/internal/game"
)

// Config is the root configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Rules    game.Ruleset   `mapstructure:"rules"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Sessions SessionsConfig `mapstructure:"sessions"`
	Replay   ReplayConfig   `mapstructure:"replay"`
	Decks    DecksConfig    `mapstructure:"decks"`
}

type ServerConfig struct {
	HTTPAddress     string        `mapstructure:"http_address"`
	GRPCAddress     string        `mapstructure:"grpc_address"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type AuthConfig struct {
	JWTSecret string        `mapstructure:"jwt_secret"`
	TokenTTL  time.Duration `mapstructure:"token_ttl"`
}

// StorageConfig selects the durable session store. Cache, when set to
// "redis", puts a Redis store in front of the primary driver.
type StorageConfig struct {
	Driver        string        `mapstructure:"driver"`
	Cache         string        `mapstructure:"cache"`
	SQLitePath    string        `mapstructure:"sqlite_path"`
	PostgresDSN   string        `mapstructure:"postgres_dsn"`
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	RedisTTL      time.Duration `mapstructure:"redis_ttl"`
}

type SessionsConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	MaxAge          time.Duration `mapstructure:"max_age"`
}

type ReplayConfig struct {
	Enabled   bool   `mapstructure:"enabled"`
	Directory string `mapstructure:"directory"`
	MaxStates int    `mapstructure:"max_states"`
}

type DecksConfig struct {
	Path string `mapstructure:"path"`
}

// Storage drivers.
const (
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.http_address", ":8080")
	v.SetDefault("server.grpc_address", ":9090")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", 24*time.Hour)

	rules := game.DefaultRuleset()
	v.SetDefault("rules.deck_size", rules.DeckSize)
	v.SetDefault("rules.max_copies", rules.MaxCopies)
	v.SetDefault("rules.hand_size", rules.HandSize)
	v.SetDefault("rules.life_cards", rules.LifeCards)
	v.SetDefault("rules.initial_ap", rules.InitialAP)
	v.SetDefault("rules.ap_per_turn", rules.APPerTurn)
	v.SetDefault("rules.max_ap", rules.MaxAP)
	v.SetDefault("rules.auto_draw", rules.AutoDraw)
	v.SetDefault("rules.deck_out", string(rules.DeckOut))
	v.SetDefault("rules.front_line_capacity", rules.FrontLineCapacity)
	v.SetDefault("rules.energy_line_capacity", rules.EnergyLineCapacity)
	v.SetDefault("rules.extra_draw_cost", rules.ExtraDrawCost)

	v.SetDefault("storage.driver", DriverMemory)
	v.SetDefault("storage.cache", "")
	v.SetDefault("storage.sqlite_path", "data/sessions.db")
	v.SetDefault("storage.postgres_dsn", "")
	v.SetDefault("storage.redis_addr", "localhost:6379")
	v.SetDefault("storage.redis_password", "")
	v.SetDefault("storage.redis_db", 0)
	v.SetDefault("storage.redis_ttl", time.Hour)

	v.SetDefault("sessions.cleanup_interval", 5*time.Minute)
	v.SetDefault("sessions.max_age", time.Hour)

	v.SetDefault("replay.enabled", false)
	v.SetDefault("replay.directory", "data/replays")
	v.SetDefault("replay.max_states", 0)

	v.SetDefault("decks.path", "")
}

// Load reads configuration from path. A missing file is not an error; the
// defaults and environment still apply. Values from a .env file in the
// working directory are loaded into the environment first without
// overriding variables that are already set.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("UA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			if _, statErr := os.Stat(path); !errors.Is(statErr, fs.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cross-field constraints that defaults cannot express.
func (c *Config) Validate() error {
	if err := c.Rules.Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}

	switch c.Storage.Driver {
	case DriverMemory, DriverSQLite, DriverRedis:
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return fmt.Errorf("storage.postgres_dsn is required for the postgres driver")
		}
	default:
		return fmt.Errorf("unknown storage driver %q", c.Storage.Driver)
	}

	switch c.Storage.Cache {
	case "", DriverRedis:
	default:
		return fmt.Errorf("unknown storage cache %q", c.Storage.Cache)
	}
	if c.Storage.Cache == DriverRedis && c.Storage.Driver == DriverRedis {
		return fmt.Errorf("storage.cache redis requires a different primary driver")
	}

	if c.Sessions.CleanupInterval < 0 || c.Sessions.MaxAge < 0 {
		return fmt.Errorf("session durations must not be negative")
	}
	return nil
}
