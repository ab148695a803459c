package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aretw0/canopy/internal/logging"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Session backends.
const (
	BackendFile   = "file"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

// Config holds CLI and server configuration.
type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Session SessionConfig `mapstructure:"session"`
	Serve   ServeConfig   `mapstructure:"serve"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SessionConfig selects where tree snapshots are persisted.
type SessionConfig struct {
	Backend string        `mapstructure:"backend"`
	Dir     string        `mapstructure:"dir"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
	Redis   RedisConfig   `mapstructure:"redis"`
}

// RedisConfig holds redis connection settings for the redis backend.
type RedisConfig struct {
	Addr     string        `mapstructure:"addr"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	Prefix   string        `mapstructure:"prefix"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// ServeConfig holds settings for the serve command.
type ServeConfig struct {
	Addr    string `mapstructure:"addr"`
	Metrics bool   `mapstructure:"metrics"`
	MCP     bool   `mapstructure:"mcp"`
	MCPPort int    `mapstructure:"mcp_port"`
}

// flagKeys maps config keys to the CLI flags that override them.
var flagKeys = map[string]string{
	"log.level":          "log-level",
	"log.format":         "log-format",
	"session.backend":    "session-backend",
	"session.dir":        "session-dir",
	"session.redis.addr": "redis-addr",
	"serve.addr":         "addr",
	"serve.metrics":      "metrics",
	"serve.mcp":          "mcp",
	"serve.mcp_port":     "mcp-port",
}

// Load reads configuration from, in increasing precedence: defaults, the config file,
// CANOPY_* environment variables and flags that were set explicitly.
// With an empty path, canopy.yaml in the working directory is used when present.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")
	v.SetDefault("session.backend", BackendFile)
	v.SetDefault("session.dir", ".canopy/sessions")
	v.SetDefault("session.lock_ttl", "30s")
	v.SetDefault("session.redis.addr", "localhost:6379")
	v.SetDefault("session.redis.password", "")
	v.SetDefault("session.redis.db", 0)
	v.SetDefault("session.redis.prefix", "canopy:session:")
	v.SetDefault("session.redis.ttl", "0s")
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("serve.metrics", true)
	v.SetDefault("serve.mcp", false)
	v.SetDefault("serve.mcp_port", 8081)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("canopy")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("CANOPY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for key, name := range flagKeys {
			if f := flags.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var c Config
	if err := v.Unmarshal(&c); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return c, c.Validate()
}

// Validate checks values viper cannot type-check.
func (c Config) Validate() error {
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return err
	}
	switch c.Session.Backend {
	case BackendFile, BackendRedis, BackendMemory:
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	return nil
}
