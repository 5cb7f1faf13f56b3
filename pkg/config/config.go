package config

import (
	"os"
	"path/filepath"
)

const (
	// AppName is the application name used in paths
	AppName = "gozp"
)

// Config holds all application configuration.
type Config struct {
	// Paths
	DataDir   string // Base data directory (XDG_DATA_HOME/gozp)
	ConfigDir string // Config directory (XDG_CONFIG_HOME/gozp)

	// Derived paths
	DBPath     string // SQLite database path
	JournalDir string // job progress journal directory

	// Server
	APIAddress string

	// Logging
	LogLevel string
}

// New creates a new Config with values from environment or defaults.
func New() *Config {
	cfg := &Config{}

	// Base directories (XDG Base Directory Specification)
	cfg.DataDir = getDataDir()
	cfg.ConfigDir = getConfigDir()

	// Ensure directories exist
	os.MkdirAll(cfg.DataDir, 0755)
	os.MkdirAll(cfg.ConfigDir, 0755)

	// Derived paths
	cfg.DBPath = envOrDefault("GOZP_DB_PATH", filepath.Join(cfg.DataDir, "gozp.db"))
	cfg.JournalDir = envOrDefault("GOZP_JOURNAL_DIR", filepath.Join(cfg.DataDir, "jobs"))

	// Server config
	cfg.APIAddress = envOrDefault("GOZP_API_ADDRESS", ":8148")

	// Logging
	cfg.LogLevel = envOrDefault("GOZP_LOG_LEVEL", "info")

	return cfg
}

// getDataDir returns the data directory following XDG spec.
// $XDG_DATA_HOME/gozp or ~/.local/share/gozp
func getDataDir() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", AppName, "data")
	}
	return filepath.Join(home, ".local", "share", AppName)
}

// getConfigDir returns the config directory following XDG spec.
// $XDG_CONFIG_HOME/gozp or ~/.config/gozp
func getConfigDir() string {
	if dir := os.Getenv("XDG_CONFIG_HOME"); dir != "" {
		return filepath.Join(dir, AppName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", AppName, "config")
	}
	return filepath.Join(home, ".config", AppName)
}

// envOrDefault returns the environment variable value or the default.
func envOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
