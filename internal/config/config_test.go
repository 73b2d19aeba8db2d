package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foyez/graphql/internal/config"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "phonebook.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoad(t *testing.T) {
	tests := []struct {
		name     string
		yaml     string
		env      map[string]string
		validate func(*testing.T, *config.Config)
	}{
		{
			name: "defaults",
			yaml: "server:\n  pretty: true\n",
			validate: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, ":4000", cfg.Server.Addr)
				assert.True(t, cfg.Server.Pretty)
				assert.Equal(t, 10*time.Second, cfg.Server.Timeout)
				assert.Equal(t, "X-User", cfg.Server.IdentityHeader)
				assert.True(t, cfg.GraphQL.Introspection)
				assert.Equal(t, 5*time.Minute, cfg.GraphQL.CacheTTL)
				assert.Equal(t, 256, cfg.PubSub.MaxPending)
				assert.Equal(t, "graphql:topic:", cfg.Redis.ChannelPrefix)
				assert.Equal(t, "phonebook", cfg.Otel.Service)
				assert.Equal(t, "/metrics", cfg.Metrics.Path)
			},
		},
		{
			name: "file values",
			yaml: `
server:
  addr: 127.0.0.1:8080
  timeout: 3s
  cors_origins:
    - https://example.com
graphql:
  introspection: false
  max_concurrency: 4
redis:
  addr: localhost:6379
  db: 2
`,
			validate: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, "127.0.0.1:8080", cfg.Server.Addr)
				assert.Equal(t, 3*time.Second, cfg.Server.Timeout)
				assert.Equal(t, []string{"https://example.com"}, cfg.Server.CORSOrigins)
				assert.False(t, cfg.GraphQL.Introspection)
				assert.Equal(t, 4, cfg.GraphQL.MaxConcurrency)
				assert.Equal(t, "localhost:6379", cfg.Redis.Addr)
				assert.Equal(t, 2, cfg.Redis.DB)
			},
		},
		{
			name: "environment overrides file",
			yaml: "server:\n  addr: :5000\n",
			env: map[string]string{
				"PHONEBOOK_SERVER_ADDR": ":6000",
				"PHONEBOOK_LOG_LEVEL":   "warn",
			},
			validate: func(t *testing.T, cfg *config.Config) {
				assert.Equal(t, ":6000", cfg.Server.Addr)
				assert.Equal(t, "warn", cfg.Log.Level)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := config.Load(writeConfig(t, tt.yaml))
			require.NoError(t, err)
			require.NoError(t, cfg.Validate())
			tt.validate(t, cfg)
		})
	}
}

func TestLoad_Errors(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	_, err = config.Load(writeConfig(t, "server: [unterminated\n"))
	require.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
		errMsg string
	}{
		{"empty addr", func(c *config.Config) { c.Server.Addr = "" }, "server addr"},
		{"negative timeout", func(c *config.Config) { c.Server.Timeout = -time.Second }, "server timeout"},
		{"negative concurrency", func(c *config.Config) { c.GraphQL.MaxConcurrency = -1 }, "max_concurrency"},
		{"negative pending", func(c *config.Config) { c.PubSub.MaxPending = -1 }, "max_pending"},
		{"redis db", func(c *config.Config) { c.Redis.DB = 16 }, "redis db"},
		{"redis prefix", func(c *config.Config) {
			c.Redis.Addr = "localhost:6379"
			c.Redis.ChannelPrefix = ""
		}, "channel_prefix"},
		{"log env", func(c *config.Config) { c.Log.Env = "dev" }, "log env"},
		{"metrics path", func(c *config.Config) { c.Metrics.Path = "metrics" }, "metrics path"},
	}

	require.NoError(t, config.Default().Validate())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
		})
	}
}
