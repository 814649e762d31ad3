// Package config loads server settings from defaults, an optional config
// file, a .env file and RIDIT_* environment variables, in increasing order of
// precedence. Command-line flags are applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverRedis  = "redis"
)

type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type AuthConfig struct {
	// JWTSecret overrides the secret generated and kept in the store.
	JWTSecret          string        `mapstructure:"jwt_secret"`
	TokenTTL           time.Duration `mapstructure:"token_ttl"`
	LoginRatePerMinute int           `mapstructure:"login_rate_per_minute"`
	GoogleClientID     string        `mapstructure:"google_client_id"`
}

type AdminConfig struct {
	Email string `mapstructure:"email"`
}

type LogConfig struct {
	Path string `mapstructure:"path"`
}

// Config is the complete server configuration.
type Config struct {
	Addr  string      `mapstructure:"addr"`
	Store StoreConfig `mapstructure:"store"`
	Redis RedisConfig `mapstructure:"redis"`
	NATS  NATSConfig  `mapstructure:"nats"`
	Auth  AuthConfig  `mapstructure:"auth"`
	Admin AdminConfig `mapstructure:"admin"`
	Log   LogConfig   `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("addr", ":8000")
	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "ridit.sqlite3")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", "ridit:")
	v.SetDefault("nats.url", "")
	v.SetDefault("auth.jwt_secret", "")
	v.SetDefault("auth.token_ttl", "24h")
	v.SetDefault("auth.login_rate_per_minute", 10)
	v.SetDefault("auth.google_client_id", "")
	v.SetDefault("admin.email", "admin@ridit.local")
	v.SetDefault("log.path", "")
}

// Load reads the configuration. An explicit path must exist; without one a
// config.yaml in the working directory is used if present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("RIDIT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("reading config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	return &cfg, nil
}

// Validate checks the values Load cannot check by type alone.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.SQLitePath == "" {
			return errors.New("store.sqlite_path is required for the sqlite driver")
		}
	case DriverRedis:
		if c.Redis.Addr == "" {
			return errors.New("redis.addr is required for the redis driver")
		}
	default:
		return fmt.Errorf("unknown store.driver %q (want %s or %s)", c.Store.Driver, DriverSQLite, DriverRedis)
	}
	if c.Addr == "" {
		return errors.New("addr is required")
	}
	if c.Auth.TokenTTL <= 0 {
		return errors.New("auth.token_ttl must be positive")
	}
	if c.Auth.LoginRatePerMinute <= 0 {
		return errors.New("auth.login_rate_per_minute must be positive")
	}
	if c.Admin.Email == "" {
		return errors.New("admin.email is required")
	}
	return nil
}
