// Package config loads phonebook settings from a YAML file and PHONEBOOK_
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the complete process configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	GraphQL GraphQLConfig `mapstructure:"graphql"`
	PubSub  PubSubConfig  `mapstructure:"pubsub"`
	Redis   RedisConfig   `mapstructure:"redis"`
	Log     LogConfig     `mapstructure:"log"`
	Otel    OtelConfig    `mapstructure:"otel"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

type ServerConfig struct {
	Addr           string        `mapstructure:"addr"`
	Pretty         bool          `mapstructure:"pretty"`
	Timeout        time.Duration `mapstructure:"timeout"`
	MaxBodyBytes   int64         `mapstructure:"max_body_bytes"`
	CORSOrigins    []string      `mapstructure:"cors_origins"`
	IdentityHeader string        `mapstructure:"identity_header"`
}

type GraphQLConfig struct {
	Introspection  bool `mapstructure:"introspection"`
	MaxConcurrency int  `mapstructure:"max_concurrency"`
	// CacheTTL is the default lifetime of @cached entries.
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type PubSubConfig struct {
	// MaxPending bounds each listener's queue; 0 means unbounded.
	MaxPending int `mapstructure:"max_pending"`
}

// RedisConfig enables the cross-process relay when Addr is set.
type RedisConfig struct {
	Addr          string `mapstructure:"addr"`
	Password      string `mapstructure:"password"`
	DB            int    `mapstructure:"db"`
	ChannelPrefix string `mapstructure:"channel_prefix"`
}

type LogConfig struct {
	Env   string `mapstructure:"env"`
	Level string `mapstructure:"level"`
}

type OtelConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Service  string `mapstructure:"service"`
}

type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from configPath, or from phonebook.yaml in ./config
// or the working directory when configPath is empty. A missing default file
// is not an error. Environment variables override file values, e.g.
// PHONEBOOK_SERVER_ADDR=:9090.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("phonebook")
		v.SetConfigType("yaml")
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("PHONEBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if configPath != "" {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return &cfg, nil
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":4000")
	v.SetDefault("server.pretty", false)
	v.SetDefault("server.timeout", "10s")
	v.SetDefault("server.max_body_bytes", 1<<20)
	v.SetDefault("server.cors_origins", []string{})
	v.SetDefault("server.identity_header", "X-User")

	v.SetDefault("graphql.introspection", true)
	v.SetDefault("graphql.max_concurrency", 0)
	v.SetDefault("graphql.cache_ttl", "5m")

	v.SetDefault("pubsub.max_pending", 256)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.channel_prefix", "graphql:topic:")

	v.SetDefault("log.env", "development")
	v.SetDefault("log.level", "")

	v.SetDefault("otel.endpoint", "")
	v.SetDefault("otel.service", "phonebook")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return errors.New("server addr cannot be empty")
	}
	if c.Server.Timeout < 0 {
		return fmt.Errorf("invalid server timeout: %s", c.Server.Timeout)
	}
	if c.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("invalid server max_body_bytes: %d", c.Server.MaxBodyBytes)
	}
	if c.Server.IdentityHeader == "" {
		return errors.New("server identity_header cannot be empty")
	}
	if c.GraphQL.MaxConcurrency < 0 {
		return fmt.Errorf("invalid graphql max_concurrency: %d", c.GraphQL.MaxConcurrency)
	}
	if c.GraphQL.CacheTTL <= 0 {
		return fmt.Errorf("invalid graphql cache_ttl: %s", c.GraphQL.CacheTTL)
	}
	if c.PubSub.MaxPending < 0 {
		return fmt.Errorf("invalid pubsub max_pending: %d", c.PubSub.MaxPending)
	}
	if c.Redis.DB < 0 || c.Redis.DB > 15 {
		return fmt.Errorf("invalid redis db: %d (must be 0-15)", c.Redis.DB)
	}
	if c.Redis.Addr != "" && c.Redis.ChannelPrefix == "" {
		return errors.New("redis channel_prefix is required when redis addr is set")
	}
	switch c.Log.Env {
	case "development", "test", "staging", "production":
	default:
		return fmt.Errorf("invalid log env: %s (must be development, test, staging, or production)", c.Log.Env)
	}
	if c.Metrics.Enabled && !strings.HasPrefix(c.Metrics.Path, "/") {
		return fmt.Errorf("invalid metrics path: %q", c.Metrics.Path)
	}
	return nil
}
