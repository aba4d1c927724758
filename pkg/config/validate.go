package config

import (
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"
	"github.com/pkg/errors"
)

// validate checks the loaded values and fills derived defaults.
func (c *Config) validate() error {
	log := c.log
	log.Debug("Validating configuration", "page_count", len(c.pages))

	for i, p := range c.pages {
		u, err := url.Parse(p.URL)
		if err != nil {
			return errors.Wrapf(err, "pages[%d]: invalid url", i)
		}
		switch u.Scheme {
		case "http", "https", "file":
		default:
			return fmt.Errorf("pages[%d]: unsupported scheme %q", i, u.Scheme)
		}
		if p.Name == "" {
			c.pages[i].Name = u.Path
		}
	}

	if _, err := cascadia.Compile(c.tableSelector); err != nil {
		log.Error("Invalid table selector", err, "selector", c.tableSelector)
		return errors.Wrap(err, "table_selector")
	}

	for name, d := range map[string]int64{
		"poll_interval":         int64(c.pollInterval),
		"attach_retry_interval": int64(c.attachRetryInterval),
		"stats_interval":        int64(c.statsInterval),
		"dispatch_timeout":      int64(c.dispatchTimeout),
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if c.initialDelay < 0 {
		return fmt.Errorf("initial_delay must not be negative")
	}
	if c.logCapacity <= 0 {
		return fmt.Errorf("log_capacity must be positive")
	}
	if c.historyCapacity <= 0 {
		return fmt.Errorf("history_capacity must be positive")
	}

	switch c.autoplayPolicy {
	case "allow", "gesture":
	default:
		return fmt.Errorf("unknown autoplay_policy %q", c.autoplayPolicy)
	}
	switch c.acceptPolicy {
	case "content", "row-key":
	default:
		return fmt.Errorf("unknown accept_policy %q", c.acceptPolicy)
	}

	log.Debug("Configuration valid")
	return nil
}
