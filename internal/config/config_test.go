package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:8484", cfg.Listen)
	assert.Equal(t, []int{24}, cfg.LeadHours)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())

	// The default file was created with 0600.
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	want := DefaultConfig()
	want.FeedURL = "https://example.edu/feed.ics"
	want.LeadHours = []int{2, 24, 72}
	want.SnoozeMinutes = 30
	require.NoError(t, Save(path, want))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want.FeedURL, got.FeedURL)
	assert.Equal(t, want.LeadHours, got.LeadHours)
	assert.Equal(t, 30*time.Minute, got.Snooze())
}

func TestNormalizeFillsZeroValues(t *testing.T) {
	var cfg Config
	cfg.Normalize()

	assert.Equal(t, "127.0.0.1:8484", cfg.Listen)
	assert.Equal(t, []int{24}, cfg.LeadHours)
	assert.Equal(t, "*/5 * * * *", cfg.CheckCron)
	assert.Equal(t, "*/15 * * * *", cfg.RefreshCron)
	assert.Equal(t, 60, cfg.SnoozeMinutes)
	assert.Equal(t, 30, cfg.FetchTimeoutSeconds)
	assert.Equal(t, 3, cfg.FetchRetries)
}

func TestNormalizeDropsNonPositiveLeadHours(t *testing.T) {
	cfg := Config{LeadHours: []int{-1, 0, 24, 2}}
	cfg.Normalize()
	assert.Equal(t, []int{24, 2}, cfg.LeadHours)

	all := Config{LeadHours: []int{0, -5}}
	all.Normalize()
	assert.Equal(t, []int{24}, all.LeadHours)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("REMINDD_FEED_URL", "https://env.example.edu/feed.ics")
	t.Setenv("REMINDD_SNOOZE_MINUTES", "15")

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, Save(path, DefaultConfig()))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://env.example.edu/feed.ics", cfg.FeedURL)
	assert.Equal(t, 15, cfg.SnoozeMinutes)
}

func TestLocationFallsBackToLocal(t *testing.T) {
	cfg := Config{}
	assert.Equal(t, time.Local, cfg.Location())

	cfg.Timezone = "Not/AZone"
	assert.Equal(t, time.Local, cfg.Location())
}
