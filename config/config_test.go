package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metrotime/metrotime/aggregator"
)

func env(vars map[string]string) func(string) string {
	return func(k string) string { return vars[k] }
}

func TestFromEnvDefaults(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{EnvDatabaseURL: "postgres://localhost/metro"}))
	require.NoError(t, err)

	assert.Equal(t, "postgres://localhost/metro", cfg.DatabaseURL)
	assert.Equal(t, 30*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, aggregator.MissingMinutesFail, cfg.MissingMinutes)
	assert.False(t, cfg.JSONLogs)
	assert.False(t, cfg.Debug)
}

func TestFromEnvOverrides(t *testing.T) {
	cfg, err := FromEnv(env(map[string]string{
		EnvDatabaseURL:    "sqlite://snapshots.db",
		EnvHTTPTimeout:    "5s",
		EnvMissingMinutes: "skip",
		EnvLogFormat:      "json",
		EnvDebug:          "YES",
	}))
	require.NoError(t, err)

	assert.Equal(t, 5*time.Second, cfg.HTTPTimeout)
	assert.Equal(t, aggregator.MissingMinutesSkip, cfg.MissingMinutes)
	assert.True(t, cfg.JSONLogs)
	assert.True(t, cfg.Debug)
}

func TestFromEnvMissingDatabaseURL(t *testing.T) {
	for _, v := range []string{"", "  "} {
		_, err := FromEnv(env(map[string]string{EnvDatabaseURL: v}))
		require.ErrorIs(t, err, ErrInvalid)
		assert.Contains(t, err.Error(), "DB_URL is required")
	}
}

func TestFromEnvInvalidValues(t *testing.T) {
	tests := map[string]map[string]string{
		"bad timeout":      {EnvDatabaseURL: "db", EnvHTTPTimeout: "soon"},
		"negative timeout": {EnvDatabaseURL: "db", EnvHTTPTimeout: "-1s"},
		"bad policy":       {EnvDatabaseURL: "db", EnvMissingMinutes: "guess"},
	}

	for name, vars := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := FromEnv(env(vars))
			assert.ErrorIs(t, err, ErrInvalid)
		})
	}
}

func TestLoadReadsEnvFile(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "")
	os.Unsetenv(EnvDatabaseURL)
	t.Setenv(EnvMissingMinutes, "skip")

	path := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(path, []byte("DB_URL=sqlite://from-file.db\nMETROTIME_MISSING_MINUTES=fail\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv(EnvDatabaseURL) })

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite://from-file.db", cfg.DatabaseURL)
	// the process environment wins over the file
	assert.Equal(t, aggregator.MissingMinutesSkip, cfg.MissingMinutes)
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	t.Setenv(EnvDatabaseURL, "sqlite://snapshots.db")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, "sqlite://snapshots.db", cfg.DatabaseURL)
}
