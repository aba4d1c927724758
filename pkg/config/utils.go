package config

import (
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/spf13/pflag"

	"trade-monitor/pkg/logger"
)

const appDirName = "trade-monitor"

// initializeConfig creates or loads the configuration.
func initializeConfig(providedPath string, defaultPath string, flags *pflag.FlagSet, log *logger.Logger) (*Config, error) {
	// Try provided path first if specified
	if providedPath != "" {
		config, err := loadConfigFromPath(providedPath, flags, log)
		if err != nil {
			return nil, errors.Wrap(err, "failed to load config from provided path")
		}
		return config, nil
	}

	// Try default path, create if doesn't exist
	if _, err := os.Stat(defaultPath); os.IsNotExist(err) {
		config, err := DefaultConfig(log)
		if err != nil {
			return nil, err
		}
		if err := config.Save(defaultPath); err != nil {
			return nil, err
		}
		log.Info("Wrote default configuration", "path", defaultPath)
	}

	config, err := loadConfigFromPath(defaultPath, flags, log)
	if err != nil {
		log.Warn("Falling back to default configuration", "path", defaultPath, "error", err.Error())
		return DefaultConfig(log)
	}
	return config, nil
}

// Save writes the configuration as indented JSON.
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c.toFile(), "", "    ")
	if err != nil {
		return errors.Wrap(err, "marshal config")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.Wrapf(err, "write config %s", path)
	}
	return nil
}

// loadDotEnv reads a .env file next to the config so TRADE_MONITOR_* overrides
// can live there. Variables already present in the environment win.
func loadDotEnv(dir string, log *logger.Logger) {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); err != nil {
		return
	}
	if err := godotenv.Load(path); err != nil {
		log.Warn("Failed to load .env", "path", path, "error", err.Error())
		return
	}
	log.Debug("Loaded environment file", "path", path)
}

// Dir returns the per-user configuration directory.
func Dir() (string, error) {
	homeConfigDir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeConfigDir, appDirName), nil
}

// FindConfig locates and initializes the configuration.
func FindConfig(providedPath string, log *logger.Logger, embeddedAssets fs.FS, flags *pflag.FlagSet) (*Config, error) {
	log.Info("Looking for configuration", "provided_path", providedPath)

	defaultConfigDir, err := Dir()
	if err != nil {
		log.Error("Failed to get user config directory", err)
		return nil, err
	}

	// Setup default paths
	defaultConfigPath := filepath.Join(defaultConfigDir, "config.json")
	defaultLogsDir := filepath.Join(defaultConfigDir, "logs")

	log.Debug("Configuration paths",
		"config_dir", defaultConfigDir,
		"config_path", defaultConfigPath,
		"logs_dir", defaultLogsDir)

	// Create directory structure
	for _, dir := range []string{defaultConfigDir, defaultLogsDir} {
		log.Debug("Ensuring directory exists", "path", dir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Error("Failed to create directory", err, "path", dir)
			return nil, err
		}
	}

	loadDotEnv(defaultConfigDir, log)

	config, err := initializeConfig(providedPath, defaultConfigPath, flags, log)
	if err != nil {
		return nil, err
	}
	config.configDir = defaultConfigDir

	if config.databasePath == "" {
		config.databasePath = filepath.Join(defaultConfigDir, appDirName+".db")
	}

	// Setup assets once after config is loaded
	if err := config.setupAssets(defaultConfigDir, embeddedAssets); err != nil {
		return nil, err
	}

	return config, nil
}
