// SPDX-License-Identifier: MPL-2.0

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"fibr-cli/internal/conftree"

	"github.com/spf13/viper"
)

const (
	// AppName is the application name, used for config and cache paths.
	AppName = "fibr"
	// ConfigFileName is the user configuration file name.
	ConfigFileName = "config"
	// ConfigFileExt is the user configuration file extension.
	ConfigFileExt = "yaml"
)

type (
	// Config is the user-level configuration loaded from the central
	// config.yaml, env vars (FIBR_*), and built-in defaults.
	Config struct {
		// Root is the project root holding the core module and its sibling
		// fiber directories. Empty means the current working directory.
		Root string `mapstructure:"root"`
		// Shell is the worker shell for the execution pool.
		Shell string `mapstructure:"shell"`
		// PoolSize caps concurrent shell workers.
		PoolSize int `mapstructure:"pool_size"`
		// Concurrency bounds concurrent tool checks per batch.
		Concurrency int `mapstructure:"concurrency"`
		// CheckTimeout bounds one tool check.
		CheckTimeout time.Duration `mapstructure:"check_timeout"`
		// CacheTTL bounds tool-status cache entry freshness.
		CacheTTL time.Duration `mapstructure:"cache_ttl"`
		// Verbose enables debug logging.
		Verbose bool `mapstructure:"verbose"`
		// Modules holds per-module user overrides, keyed by fiber name and
		// nesting through ModuleConfig for chains.
		Modules map[string]ModuleOverride `mapstructure:"modules"`
	}

	// ModuleOverride is the user override for one module, mirroring
	// {enabled, moduleConfig: {childName: {...}}}. Enabled is a pointer so
	// "not overridden" is distinguishable from an explicit false.
	ModuleOverride struct {
		Enabled      *bool          `mapstructure:"enabled"`
		ModuleConfig map[string]any `mapstructure:"moduleConfig"`
	}
)

// DefaultConfig returns the built-in defaults.
func DefaultConfig() *Config {
	return &Config{
		Shell:        "sh",
		PoolSize:     4,
		Concurrency:  4,
		CheckTimeout: 10 * time.Second,
		CacheTTL:     24 * time.Hour,
	}
}

// ConfigDir returns the fibr configuration directory using platform
// conventions: %APPDATA% on Windows, ~/Library/Application Support on macOS,
// $XDG_CONFIG_HOME (default ~/.config) elsewhere.
func ConfigDir() (string, error) {
	if configDirOverride != "" {
		return configDirOverride, nil
	}

	var configDir string
	switch runtime.GOOS {
	case "windows":
		configDir = os.Getenv("APPDATA")
		if configDir == "" {
			configDir = filepath.Join(os.Getenv("USERPROFILE"), "AppData", "Roaming")
		}
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		configDir = filepath.Join(home, "Library", "Application Support")
	default:
		configDir = os.Getenv("XDG_CONFIG_HOME")
		if configDir == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			configDir = filepath.Join(home, ".config")
		}
	}
	return filepath.Join(configDir, AppName), nil
}

// configDirOverride lets tests redirect the config directory.
var configDirOverride string

// SetConfigDirOverride redirects ConfigDir, for tests. Empty restores the
// platform default.
func SetConfigDirOverride(dir string) { configDirOverride = dir }

// LoadOptions controls config loading.
type LoadOptions struct {
	// ConfigFilePath loads exactly this file when set.
	ConfigFilePath string
}

// Load reads the user configuration. A missing config file is not an error
// (defaults apply); an unreadable or malformed one is — per the error policy,
// inability to read the user configuration is fatal to the run.
func Load(opts LoadOptions) (*Config, error) {
	v := viper.New()

	defaults := DefaultConfig()
	v.SetDefault("shell", defaults.Shell)
	v.SetDefault("pool_size", defaults.PoolSize)
	v.SetDefault("concurrency", defaults.Concurrency)
	v.SetDefault("check_timeout", defaults.CheckTimeout)
	v.SetDefault("cache_ttl", defaults.CacheTTL)
	v.SetDefault("verbose", defaults.Verbose)

	v.SetEnvPrefix("FIBR")
	v.AutomaticEnv()

	if opts.ConfigFilePath != "" {
		v.SetConfigFile(opts.ConfigFilePath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config %s: %w", opts.ConfigFilePath, err)
		}
	} else {
		cfgDir, err := ConfigDir()
		if err != nil {
			return nil, err
		}
		v.SetConfigName(ConfigFileName)
		v.SetConfigType(ConfigFileExt)
		v.AddConfigPath(cfgDir)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config in %s: %w", cfgDir, err)
			}
			// No config file: defaults apply.
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// OverrideTree returns the user override subtree for a module identified by
// its colon path segments (e.g., ["db"], ["db","migrate"]). Overrides nest
// through moduleConfig: the override for db:migrate lives at
// modules.db.moduleConfig.migrate and carries the same {enabled,
// moduleConfig} shape. Nil means no override exists for the module.
func (c *Config) OverrideTree(segments []string) conftree.Tree {
	if c == nil || len(segments) == 0 {
		return nil
	}
	ov, ok := c.Modules[segments[0]]
	if !ok {
		return nil
	}
	node := conftree.Tree{}
	if ov.Enabled != nil {
		node["enabled"] = *ov.Enabled
	}
	if ov.ModuleConfig != nil {
		node["moduleConfig"] = ov.ModuleConfig
	}
	for _, seg := range segments[1:] {
		mc, ok := node["moduleConfig"].(map[string]any)
		if !ok {
			return nil
		}
		child, ok := mc[seg].(map[string]any)
		if !ok {
			return nil
		}
		node = conftree.Tree(child)
	}
	return conftree.Clone(node)
}

// EnsureConfigDir creates the config directory if it doesn't exist.
func EnsureConfigDir() error {
	cfgDir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(cfgDir, 0o755)
}

// Path returns the user config file location.
func Path() (string, error) {
	cfgDir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfgDir, ConfigFileName+"."+ConfigFileExt), nil
}
