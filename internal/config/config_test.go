package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	// Change to temp dir so no stray config.yaml is found
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) }) //nolint:errcheck
	return dir
}

func TestLoadDefaults(t *testing.T) {
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "dossier.db", cfg.Store.DatabaseURL)
	assert.Equal(t, int32(10), cfg.Store.MaxConns)
	assert.Equal(t, int32(2), cfg.Store.MinConns)
	assert.Equal(t, 3, cfg.Store.ConnectAttempts)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.InDelta(t, 20.0, cfg.Server.RateLimitRPS, 0.001)
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Empty(t, cfg.Scoring.ProfilesFile)
	assert.Empty(t, cfg.Catalog.File)
	assert.NoError(t, cfg.Validate(""))
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: postgres
  database_url: postgres://localhost/dossiers
log:
  level: debug
  format: console
server:
  port: 9090
scoring:
  profiles_file: profiles.yaml
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/dossiers", cfg.Store.DatabaseURL)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	assert.Equal(t, "profiles.yaml", cfg.Scoring.ProfilesFile)
	// Defaults still apply for unset values
	assert.Equal(t, 40, cfg.Server.RateLimitBurst)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	t.Setenv("DOSSIER_STORE_DRIVER", "postgres")
	t.Setenv("DOSSIER_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)
	t.Setenv("DOSSIER_SERVER_PORT", "3000")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
}

func TestLoadInvalidFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unterminated"), 0o644))

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config: read file")
}

func TestInitLogger(t *testing.T) {
	tests := []struct {
		name    string
		cfg     LogConfig
		wantErr bool
	}{
		{"console", LogConfig{Level: "debug", Format: "console"}, false},
		{"json", LogConfig{Level: "info", Format: "json"}, false},
		{"invalid level", LogConfig{Level: "invalid", Format: "json"}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := InitLogger(tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, zap.L())
		})
	}
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	return &Config{
		Store:  StoreConfig{Driver: "sqlite", DatabaseURL: "dossier.db", MaxConns: 10, MinConns: 2},
		Server: ServerConfig{Port: 8080, RateLimitRPS: 20, RateLimitBurst: 40},
		Log:    LogConfig{Level: "info", Format: "json"},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		section  string
		mutate   func(c *Config)
		contains []string
	}{
		{"defaults store", "store", func(*Config) {}, nil},
		{"defaults serve", "serve", func(*Config) {}, nil},
		{
			name:     "bad driver",
			section:  "store",
			mutate:   func(c *Config) { c.Store.Driver = "mysql" },
			contains: []string{`store.driver must be sqlite or postgres, got "mysql"`},
		},
		{
			name:    "missing url and inverted pool",
			section: "store",
			mutate: func(c *Config) {
				c.Store.DatabaseURL = ""
				c.Store.MinConns = 20
			},
			contains: []string{"store.database_url is required", "store.min_conns must not exceed"},
		},
		{
			name:     "negative connect attempts",
			section:  "store",
			mutate:   func(c *Config) { c.Store.ConnectAttempts = -1 },
			contains: []string{"store.connect_attempts must not be negative"},
		},
		{
			name:     "invalid port",
			section:  "serve",
			mutate:   func(c *Config) { c.Server.Port = 0 },
			contains: []string{"server.port must be between 1 and 65535, got 0"},
		},
		{
			name:     "zero burst",
			section:  "serve",
			mutate:   func(c *Config) { c.Server.RateLimitBurst = 0 },
			contains: []string{"server.rate_limit_burst"},
		},
		{
			name:    "rate limit off",
			section: "serve",
			mutate: func(c *Config) {
				c.Server.RateLimitRPS = 0
				c.Server.RateLimitBurst = 0
			},
		},
		{
			name:     "port ignored for store section",
			section:  "store",
			mutate:   func(c *Config) { c.Server.Port = -1 },
			contains: nil,
		},
		{
			name:     "log format checked globally",
			section:  "",
			mutate:   func(c *Config) { c.Log.Format = "xml" },
			contains: []string{`log.format must be json or console, got "xml"`},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validDefaults()
			tt.mutate(cfg)
			err := cfg.Validate(tt.section)
			if len(tt.contains) == 0 {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			for _, s := range tt.contains {
				assert.Contains(t, err.Error(), s)
			}
		})
	}
}

func TestValidate_UnknownSection(t *testing.T) {
	err := validDefaults().Validate("fedsync")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown section")
}
