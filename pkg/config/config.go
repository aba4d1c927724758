package config

import (
	"time"

	"trade-monitor/pkg/logger"
)

// Page is one watched trading page.
type Page struct {
	URL  string `mapstructure:"url" json:"url"`
	Name string `mapstructure:"name" json:"name,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	// Configurable via JSON file (private fields to enforce immutability)
	pages               []Page
	tableSelector       string
	pollInterval        time.Duration
	initialDelay        time.Duration
	attachRetryInterval time.Duration
	statsInterval       time.Duration
	logCapacity         int
	historyCapacity     int
	dispatchTimeout     time.Duration
	autoplayPolicy      string
	acceptPolicy        string
	rowKeyAttr          string
	notifyCommand       string
	socketPath          string
	databasePath        string
	panelAddr           string

	// Internal fields
	log       *logger.Logger
	configDir string
	assetsDir string
}

// New creates a new Config instance with the provided logger.
func New(log *logger.Logger) *Config {
	return &Config{
		log: log,
	}
}

// GetPages returns a copy of the configured pages.
func (c *Config) GetPages() []Page {
	return append([]Page(nil), c.pages...)
}

func (c *Config) GetTableSelector() string {
	return c.tableSelector
}

func (c *Config) GetPollInterval() time.Duration {
	return c.pollInterval
}

func (c *Config) GetInitialDelay() time.Duration {
	return c.initialDelay
}

func (c *Config) GetAttachRetryInterval() time.Duration {
	return c.attachRetryInterval
}

func (c *Config) GetStatsInterval() time.Duration {
	return c.statsInterval
}

func (c *Config) GetLogCapacity() int {
	return c.logCapacity
}

func (c *Config) GetHistoryCapacity() int {
	return c.historyCapacity
}

func (c *Config) GetDispatchTimeout() time.Duration {
	return c.dispatchTimeout
}

func (c *Config) GetAutoplayPolicy() string {
	return c.autoplayPolicy
}

func (c *Config) GetAcceptPolicy() string {
	return c.acceptPolicy
}

func (c *Config) GetRowKeyAttr() string {
	return c.rowKeyAttr
}

// GetNotifyCommand returns the notify command.
func (c *Config) GetNotifyCommand() string {
	return c.notifyCommand
}

func (c *Config) GetSocketPath() string {
	return c.socketPath
}

func (c *Config) GetDatabasePath() string {
	return c.databasePath
}

// GetPanelAddr is the listen address of the websocket panel. Empty disables it.
func (c *Config) GetPanelAddr() string {
	return c.panelAddr
}

func (c *Config) GetConfigDir() string {
	return c.configDir
}

// UsePageURLs replaces the configured pages, e.g. from repeated --page flags.
func (c *Config) UsePageURLs(urls []string) error {
	if len(urls) == 0 {
		return nil
	}
	pages := make([]Page, 0, len(urls))
	for _, u := range urls {
		pages = append(pages, Page{URL: u})
	}
	old := c.pages
	c.pages = pages
	if err := c.validate(); err != nil {
		c.pages = old
		return err
	}
	return nil
}
