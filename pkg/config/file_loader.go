package config

import (
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"trade-monitor/pkg/logger"
)

const envPrefix = "TRADE_MONITOR"

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// fileConfig is the on-disk shape of config.json.
type fileConfig struct {
	Pages               []Page        `mapstructure:"pages" json:"pages"`
	TableSelector       string        `mapstructure:"table_selector" json:"table_selector"`
	PollInterval        time.Duration `mapstructure:"poll_interval" json:"poll_interval"`
	InitialDelay        time.Duration `mapstructure:"initial_delay" json:"initial_delay"`
	AttachRetryInterval time.Duration `mapstructure:"attach_retry_interval" json:"attach_retry_interval"`
	StatsInterval       time.Duration `mapstructure:"stats_interval" json:"stats_interval"`
	LogCapacity         int           `mapstructure:"log_capacity" json:"log_capacity"`
	HistoryCapacity     int           `mapstructure:"history_capacity" json:"history_capacity"`
	DispatchTimeout     time.Duration `mapstructure:"dispatch_timeout" json:"dispatch_timeout"`
	AutoplayPolicy      string        `mapstructure:"autoplay_policy" json:"autoplay_policy"`
	AcceptPolicy        string        `mapstructure:"accept_policy" json:"accept_policy"`
	RowKeyAttr          string        `mapstructure:"row_key_attr" json:"row_key_attr"`
	NotifyCommand       string        `mapstructure:"notify_command" json:"notify_command"`
	SocketPath          string        `mapstructure:"socket_path" json:"socket_path"`
	DatabasePath        string        `mapstructure:"database_path" json:"database_path"`
	PanelAddr           string        `mapstructure:"panel_addr" json:"panel_addr"`
}

// flagKeys maps command line flags onto config keys.
var flagKeys = map[string]string{
	"poll-interval":   "poll_interval",
	"autoplay-policy": "autoplay_policy",
	"accept-policy":   "accept_policy",
	"panel-addr":      "panel_addr",
	"socket":          "socket_path",
	"database":        "database_path",
	"notify-command":  "notify_command",
}

func newViper(flags *pflag.FlagSet) (*viper.Viper, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, err
			}
		}
	}
	return v, nil
}

// LoadFromFile loads the configuration from a JSON file. Environment variables
// prefixed with TRADE_MONITOR_ and explicitly set flags take precedence.
func (c *Config) LoadFromFile(path string, flags *pflag.FlagSet, log *logger.Logger) error {
	log.Debug("Loading configuration from file", "path", path)

	v, err := newViper(flags)
	if err != nil {
		log.Error("Failed to bind flags", err)
		return err
	}

	v.SetConfigFile(path)
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		log.Error("Failed to read config file", err, "path", path)
		return err
	}
	log.Debug("Config file read successfully", "keys", len(v.AllKeys()))

	return c.apply(v)
}

func (c *Config) apply(v *viper.Viper) error {
	var fc fileConfig
	if err := v.Unmarshal(&fc); err != nil {
		c.log.Error("Failed to parse config", err)
		return err
	}

	c.pages = fc.Pages
	c.tableSelector = fc.TableSelector
	c.pollInterval = fc.PollInterval
	c.initialDelay = fc.InitialDelay
	c.attachRetryInterval = fc.AttachRetryInterval
	c.statsInterval = fc.StatsInterval
	c.logCapacity = fc.LogCapacity
	c.historyCapacity = fc.HistoryCapacity
	c.dispatchTimeout = fc.DispatchTimeout
	c.autoplayPolicy = fc.AutoplayPolicy
	c.acceptPolicy = fc.AcceptPolicy
	c.rowKeyAttr = fc.RowKeyAttr
	c.notifyCommand = fc.NotifyCommand
	c.socketPath = fc.SocketPath
	c.databasePath = fc.DatabasePath
	c.panelAddr = fc.PanelAddr

	return c.validate()
}

// toFile renders the config the way it is written to disk, with durations as
// strings.
func (c *Config) toFile() map[string]interface{} {
	pages := c.pages
	if pages == nil {
		pages = []Page{}
	}
	return map[string]interface{}{
		"pages":                 pages,
		"table_selector":        c.tableSelector,
		"poll_interval":         c.pollInterval.String(),
		"initial_delay":         c.initialDelay.String(),
		"attach_retry_interval": c.attachRetryInterval.String(),
		"stats_interval":        c.statsInterval.String(),
		"log_capacity":          c.logCapacity,
		"history_capacity":      c.historyCapacity,
		"dispatch_timeout":      c.dispatchTimeout.String(),
		"autoplay_policy":       c.autoplayPolicy,
		"accept_policy":         c.acceptPolicy,
		"row_key_attr":          c.rowKeyAttr,
		"notify_command":        c.notifyCommand,
		"socket_path":           c.socketPath,
		"database_path":         c.databasePath,
		"panel_addr":            c.panelAddr,
	}
}

// loadConfigFromPath loads the configuration from a file.
func loadConfigFromPath(path string, flags *pflag.FlagSet, log *logger.Logger) (*Config, error) {
	config := &Config{log: log}
	if err := config.LoadFromFile(path, flags, log); err != nil {
		return nil, err
	}
	return config, nil
}
