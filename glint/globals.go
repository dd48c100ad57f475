package internal

import (
	"log"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

var (
	// DefaultAppName is used to derive config and cache locations.
	DefaultAppName      = "glint"
	DefaultConfigPath   = filepath.Join(getHomeDir(), ".config", DefaultAppName)
	DefaultCacheDir     = filepath.Join(DefaultConfigPath, ".cache")
	DefaultSnapshotPath = filepath.Join(DefaultCacheDir, "index.snap")
	DefaultMirrorDBPath = filepath.Join(DefaultConfigPath, "mirror.db")

	// DefaultDatabaseType selects the relational mirror driver.
	DefaultDatabaseType = "libsql"
)

func getHomeDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		// Fallback to current working directory if home directory is unavailable
		cwd, cwdErr := os.Getwd()
		if cwdErr != nil {
			log.Printf("Unable to get home or working directory, using /tmp: %v", err)
			return "/tmp"
		}
		log.Printf("Unable to get home directory, using current working directory: %v", err)
		return cwd
	}
	return homeDir
}

// GetLogger returns a properly configured zerolog logger instance
func GetLogger() zerolog.Logger {
	return zerolog.New(os.Stderr).With().Timestamp().Logger()
}
