package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"trade-monitor/pkg/logger"
)

const (
	defaultTableSelector = "#tabs-leftTabs--tabpanel-2 .g-table-content table tbody"
	defaultPanelAddr     = "127.0.0.1:8765"
)

// DefaultSocketPath is where the control socket lives unless configured.
func DefaultSocketPath() string {
	dir := os.Getenv("XDG_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return filepath.Join(dir, "trade-monitor.sock")
}

// setDefaults registers every key so that environment overrides work for
// keys missing from the file.
func setDefaults(v *viper.Viper) {
	v.SetDefault("pages", []Page{})
	v.SetDefault("table_selector", defaultTableSelector)
	v.SetDefault("poll_interval", time.Second)
	v.SetDefault("initial_delay", 3*time.Second)
	v.SetDefault("attach_retry_interval", 500*time.Millisecond)
	v.SetDefault("stats_interval", time.Second)
	v.SetDefault("log_capacity", 50)
	v.SetDefault("history_capacity", 1000)
	v.SetDefault("dispatch_timeout", 10*time.Second)
	v.SetDefault("autoplay_policy", "allow")
	v.SetDefault("accept_policy", "content")
	v.SetDefault("row_key_attr", "data-row-key")
	v.SetDefault("notify_command", "")
	v.SetDefault("socket_path", DefaultSocketPath())
	v.SetDefault("database_path", "")
	v.SetDefault("panel_addr", defaultPanelAddr)
}

// DefaultConfig creates a default configuration.
func DefaultConfig(log *logger.Logger) (*Config, error) {
	log.Debug("Creating default configuration")

	v := viper.New()
	setDefaults(v)

	config := &Config{log: log}
	if err := config.apply(v); err != nil {
		log.Error("Failed to build default configuration", err)
		return nil, err
	}

	log.Info("Created default configuration",
		"table_selector", config.tableSelector,
		"autoplay_policy", config.autoplayPolicy,
		"socket_path", config.socketPath)

	return config, nil
}
