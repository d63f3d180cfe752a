package config

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the top-level daemon configuration.
type Config struct {
	// Listen is the HTTP listen address for the local API surface.
	Listen string `yaml:"listen" envconfig:"LISTEN"`

	// FeedURL is the calendar feed subscription endpoint.
	FeedURL string `yaml:"feed_url" envconfig:"FEED_URL"`

	// Timezone is the IANA timezone used to interpret local feed date
	// tokens (e.g. "Europe/Berlin"). Empty means the process-local zone.
	Timezone string `yaml:"timezone" envconfig:"TIMEZONE"`

	// LeadHours lists the reminder lead times, in hours before an
	// event's due instant. One reminder is scheduled per lead time.
	LeadHours []int `yaml:"lead_hours" envconfig:"LEAD_HOURS"`

	// CheckCron is the cron schedule for periodic reminder-scheduling
	// passes over the stored events.
	CheckCron string `yaml:"check" envconfig:"CHECK_CRON"`

	// RefreshCron is the cron schedule for periodic feed refreshes.
	RefreshCron string `yaml:"refresh" envconfig:"REFRESH_CRON"`

	// SnoozeMinutes is how far a snoozed reminder is pushed out.
	SnoozeMinutes int `yaml:"snooze_minutes" envconfig:"SNOOZE_MINUTES"`

	// FetchTimeoutSeconds bounds a single feed fetch attempt.
	FetchTimeoutSeconds int `yaml:"fetch_timeout_seconds" envconfig:"FETCH_TIMEOUT_SECONDS"`

	// FetchRetries is the number of retries after a failed attempt.
	// Backoff between attempts grows linearly from FetchBackoffSeconds.
	FetchRetries        int `yaml:"fetch_retries" envconfig:"FETCH_RETRIES"`
	FetchBackoffSeconds int `yaml:"fetch_backoff_seconds" envconfig:"FETCH_BACKOFF_SECONDS"`

	// StatePath is the JSON state blob location.
	StatePath string `yaml:"state_path" envconfig:"STATE_PATH"`

	// CacheDir holds the feed HTTP cache (ETag / Last-Modified bodies).
	CacheDir string `yaml:"cache_dir" envconfig:"CACHE_DIR"`

	// WebhookURL, if set, routes notifications to an external webhook
	// instead of the process log.
	WebhookURL string `yaml:"webhook_url" envconfig:"WEBHOOK_URL"`
}

// DefaultConfig returns an in-memory default configuration.
func DefaultConfig() *Config {
	return &Config{
		Listen:              "127.0.0.1:8484",
		FeedURL:             "",
		Timezone:            "",
		LeadHours:           []int{24},
		CheckCron:           "*/5 * * * *",
		RefreshCron:         "*/15 * * * *",
		SnoozeMinutes:       60,
		FetchTimeoutSeconds: 30,
		FetchRetries:        3,
		FetchBackoffSeconds: 5,
		StatePath:           "/var/lib/remindd/state.json",
		CacheDir:            "/var/lib/remindd/feed-cache",
		WebhookURL:          "",
	}
}

// Normalize fills in missing/zero values with sensible defaults so that
// partially-filled configs still behave correctly.
func (c *Config) Normalize() {
	def := DefaultConfig()
	if c.Listen == "" {
		c.Listen = def.Listen
	}
	if len(c.LeadHours) == 0 {
		c.LeadHours = append([]int(nil), def.LeadHours...)
	}
	// Drop non-positive lead times; a zero lead is "remind at due time",
	// which the scheduler already treats as overdue.
	hours := c.LeadHours[:0]
	for _, h := range c.LeadHours {
		if h > 0 {
			hours = append(hours, h)
		}
	}
	c.LeadHours = hours
	if len(c.LeadHours) == 0 {
		c.LeadHours = append([]int(nil), def.LeadHours...)
	}
	if c.CheckCron == "" {
		c.CheckCron = def.CheckCron
	}
	if c.RefreshCron == "" {
		c.RefreshCron = def.RefreshCron
	}
	if c.SnoozeMinutes <= 0 {
		c.SnoozeMinutes = def.SnoozeMinutes
	}
	if c.FetchTimeoutSeconds <= 0 {
		c.FetchTimeoutSeconds = def.FetchTimeoutSeconds
	}
	if c.FetchRetries < 0 {
		c.FetchRetries = def.FetchRetries
	}
	if c.FetchBackoffSeconds <= 0 {
		c.FetchBackoffSeconds = def.FetchBackoffSeconds
	}
	if c.StatePath == "" {
		c.StatePath = def.StatePath
	}
	if c.CacheDir == "" {
		c.CacheDir = def.CacheDir
	}
}

// FetchTimeout returns the per-attempt fetch timeout as a duration.
func (c *Config) FetchTimeout() time.Duration {
	return time.Duration(c.FetchTimeoutSeconds) * time.Second
}

// FetchBackoff returns the base retry backoff as a duration.
func (c *Config) FetchBackoff() time.Duration {
	return time.Duration(c.FetchBackoffSeconds) * time.Second
}

// Snooze returns the snooze delay as a duration.
func (c *Config) Snooze() time.Duration {
	return time.Duration(c.SnoozeMinutes) * time.Minute
}

// Location resolves the configured timezone, falling back to time.Local
// for empty or unknown names.
func (c *Config) Location() *time.Location {
	if c.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// Load loads configuration from the given YAML path.
//
// Behavior:
//   - If the file does not exist: create parent directory if needed,
//     write a default config with 0600 perms, return the default config.
//   - If the file exists: read YAML, unmarshal, normalize defaults.
//   - In both cases, REMINDD_* environment variables override the
//     file-supplied values.
func Load(path string) (*Config, error) {
	if path == "" {
		return nil, errors.New("config path is empty")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			// First run: create default config file.
			cfg := DefaultConfig()
			if err := Save(path, cfg); err != nil {
				// Even if save fails, return cfg with error so caller can decide.
				return cfg, err
			}
			return applyEnv(cfg)
		}
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()

	return applyEnv(&cfg)
}

func applyEnv(cfg *Config) (*Config, error) {
	if err := envconfig.Process("remindd", cfg); err != nil {
		return nil, err
	}
	cfg.Normalize()
	return cfg, nil
}

// Save writes the given configuration to the specified path.
//
// Implementation details:
//   - Ensures parent directory exists (0700).
//   - Marshals cfg to YAML.
//   - Writes atomically via a temp file + rename.
//   - Ensures final file permissions are 0600.
func Save(path string, cfg *Config) error {
	if path == "" {
		return errors.New("config path is empty")
	}
	if cfg == nil {
		return errors.New("config is nil")
	}

	cfg.Normalize()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	// Atomic write: write to temp file in same directory then rename.
	tmp, err := os.CreateTemp(dir, ".remindd-config-*.tmp")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	// Ensure we clean up temp file on error.
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}

	if err := os.Chmod(tmpName, 0o600); err != nil {
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		return err
	}

	return nil
}
