package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
	assert.Equal(t, DefaultPageSize, c.PageSize)
	assert.Equal(t, DefaultActor, c.Actor)
	assert.True(t, c.Atomic())

	d, err := c.Timeout()
	require.NoError(t, err)
	assert.Equal(t, DefaultRunTimeout, d)
}

func TestParse_AllFields(t *testing.T) {
	c, err := Parse([]byte(`
database: /var/lib/renewal/renewal.db
tenant: 42
page_size: 250
actor: scheduler
atomic_commit: false
log_level: debug
log_format: json
schedule: "0 2 * * *"
timezone: Europe/London
run_timeout: 5m
`))
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/renewal/renewal.db", c.Database)
	assert.Equal(t, int64(42), c.Tenant)
	assert.Equal(t, 250, c.PageSize)
	assert.Equal(t, "scheduler", c.Actor)
	assert.False(t, c.Atomic())
	assert.Equal(t, "0 2 * * *", c.Schedule)

	loc, err := c.Location()
	require.NoError(t, err)
	assert.Equal(t, "Europe/London", loc.String())

	d, err := c.Timeout()
	require.NoError(t, err)
	assert.Equal(t, 5*time.Minute, d)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"unknown key", "pagesize: 3", "field pagesize not found"},
		{"negative tenant", "tenant: -1", "tenant"},
		{"negative page size", "page_size: -5", "page_size"},
		{"bad level", "log_level: loud", "log_level"},
		{"bad format", "log_format: xml", "log_format"},
		{"bad timezone", "timezone: Mars/Olympus", "timezone"},
		{"bad timeout", "run_timeout: soon", "run_timeout"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renewal.yaml")
	require.NoError(t, os.WriteFile(path, []byte("tenant: 7\n"), 0o644))

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, int64(7), c.Tenant)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	c := Default()
	c.LogFormat = "json"
	c.LogLevel = "warn"

	logger := c.NewLogger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "k", 1)
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)

	lvl, err := ParseLevel("DEBUG")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, lvl)
}
