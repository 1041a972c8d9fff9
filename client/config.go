package client

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rohanthewiz/serr"
)

// Config holds the device's sync settings, loaded from NOTESYNC_* variables.
type Config struct {
	Enabled   bool          // NOTESYNC_SYNC_ENABLED
	ServerURL string        // NOTESYNC_SERVER_URL
	User      string        // NOTESYNC_USER
	Token     string        // NOTESYNC_TOKEN, optional bearer token
	Home      string        // NOTESYNC_HOME, base folder for the local stores
	Timeout   time.Duration // NOTESYNC_TIMEOUT, per network call
}

// DefaultTimeout is the network budget for a single remote call.
const DefaultTimeout = 5 * time.Second

// LoadConfig reads the client configuration from the environment. Sync is
// off unless explicitly enabled.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		ServerURL: strings.TrimRight(os.Getenv("NOTESYNC_SERVER_URL"), "/"),
		User:      os.Getenv("NOTESYNC_USER"),
		Token:     os.Getenv("NOTESYNC_TOKEN"),
		Home:      os.Getenv("NOTESYNC_HOME"),
		Timeout:   DefaultTimeout,
	}

	if v := os.Getenv("NOTESYNC_SYNC_ENABLED"); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTESYNC_SYNC_ENABLED value, expected true/false")
		}
		cfg.Enabled = enabled
	}

	if v := os.Getenv("NOTESYNC_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, serr.Wrap(err, "invalid NOTESYNC_TIMEOUT value, expected duration like '5s'")
		}
		cfg.Timeout = d
	}

	if cfg.Home == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, serr.Wrap(err, "cannot determine home folder, set NOTESYNC_HOME")
		}
		cfg.Home = filepath.Join(home, ".notesync")
	}
	return cfg, nil
}

// Validate checks that a sync-enabled config can reach a server.
func (c *Config) Validate() error {
	if c.Home == "" {
		return serr.New("NOTESYNC_HOME is required")
	}
	if !c.Enabled {
		return nil
	}
	if c.ServerURL == "" {
		return serr.New("NOTESYNC_SERVER_URL is required when sync is enabled")
	}
	if c.User == "" {
		return serr.New("NOTESYNC_USER is required when sync is enabled")
	}
	if c.Timeout <= 0 {
		return serr.New("NOTESYNC_TIMEOUT must be positive")
	}
	return nil
}
