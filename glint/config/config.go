package config

import (
	"fmt"
	"path/filepath"
	"strings"

	internal "github.com/glint-search/glint/glint"

	"github.com/spf13/viper"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Glint GlintConfig `mapstructure:"glint"`
}

// GlintConfig stores the engine-wide configuration.
type GlintConfig struct {
	Volumes      []string       `mapstructure:"volumes"`
	SnapshotPath string         `mapstructure:"snapshotPath"`
	CacheDir     string         `mapstructure:"cacheDir"`
	Database     DatabaseConfig `mapstructure:"database"`
	Filter       FilterConfig   `mapstructure:"filter"`
	Watcher      WatcherConfig  `mapstructure:"watcher"`
}

// DatabaseConfig stores connection details for the relational mirror.
type DatabaseConfig struct {
	DSN  string `mapstructure:"dsn"`
	Type string `mapstructure:"type"`
}

// FilterConfig stores the scan-time exclusion rules. The sets are
// normalized (lowercased, extensions dot-prefixed) by Normalize before use.
type FilterConfig struct {
	SkipDirs      []string `mapstructure:"skipDirs"`
	SkipExts      []string `mapstructure:"skipExts"`
	AllowPrefixes []string `mapstructure:"allowPrefixes"`
	IgnoreFile    string   `mapstructure:"ignoreFile"`
}

// WatcherConfig stores incremental-update tuning knobs.
type WatcherConfig struct {
	DebounceMillis    int `mapstructure:"debounceMillis"`
	MaxDebounceMillis int `mapstructure:"maxDebounceMillis"`
	BatchSize         int `mapstructure:"batchSize"`
	QueueCapacity     int `mapstructure:"queueCapacity"`
}

var AppConfig Config

// DefaultSkipDirs is the baseline set of system/noise directory names that
// are never worth indexing. Config values are appended to this set.
var DefaultSkipDirs = []string{
	"$recycle.bin", "system volume information", "windows", "winsxs",
	"node_modules", ".git", ".svn", "__pycache__", ".idea", ".vscode",
	"appdata", "programdata", "recovery",
}

// DefaultSkipExts is the baseline set of file extensions skipped at scan time.
var DefaultSkipExts = []string{".tmp", ".log", ".bak", ".swp", ".pyc", ".obj", ".pch"}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(configPath string) (*Config, error) {
	if configPath != "" {
		viper.SetConfigFile(configPath)
	} else {
		viper.AddConfigPath(".")
		viper.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		viper.AddConfigPath(internal.DefaultConfigPath)
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	// Set default values
	viper.SetDefault("glint.snapshotPath", internal.DefaultSnapshotPath)
	viper.SetDefault("glint.cacheDir", internal.DefaultCacheDir)
	viper.SetDefault("glint.database.dsn", internal.DefaultMirrorDBPath)
	viper.SetDefault("glint.database.type", internal.DefaultDatabaseType)
	viper.SetDefault("glint.filter.skipDirs", DefaultSkipDirs)
	viper.SetDefault("glint.filter.skipExts", DefaultSkipExts)
	viper.SetDefault("glint.watcher.debounceMillis", 500)
	viper.SetDefault("glint.watcher.maxDebounceMillis", 2000)
	viper.SetDefault("glint.watcher.batchSize", 256)
	viper.SetDefault("glint.watcher.queueCapacity", 4096)

	viper.AutomaticEnv()                                   // Read in environment variables that match
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_")) // e.g. glint.database.dsn becomes GLINT_DATABASE_DSN

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found; defaults will be used.
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}

	return &AppConfig, nil
}
