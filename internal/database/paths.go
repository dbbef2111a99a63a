package database

import (
	"fmt"
	"os"
	"path/filepath"
)

const (
	AppDirName        = ".iter-viae"
	CacheDirName      = "cache"
	DistanceCacheFile = "distances.json"
	RouteCacheFile    = "routes.json"
	SQLiteDBFileName  = "cache.db"
)

// DefaultDataDir returns ~/.iter-viae without creating it
func DefaultDataDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, AppDirName), nil
}

// EnsureCacheDir returns <dataDir>/cache, creating it if needed
func EnsureCacheDir(dataDir string) (string, error) {
	cacheDir := filepath.Join(dataDir, CacheDirName)
	if err := os.MkdirAll(cacheDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create cache directory: %w", err)
	}
	return cacheDir, nil
}

// DistanceCachePath returns <dataDir>/cache/distances.json
func DistanceCachePath(dataDir string) (string, error) {
	cacheDir, err := EnsureCacheDir(dataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, DistanceCacheFile), nil
}

// RouteCachePath returns <dataDir>/cache/routes.json
func RouteCachePath(dataDir string) (string, error) {
	cacheDir, err := EnsureCacheDir(dataDir)
	if err != nil {
		return "", err
	}
	return filepath.Join(cacheDir, RouteCacheFile), nil
}

// SQLitePath returns <dataDir>/cache.db, creating dataDir if needed
func SQLitePath(dataDir string) (string, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", fmt.Errorf("failed to create data directory: %w", err)
	}
	return filepath.Join(dataDir, SQLiteDBFileName), nil
}

// writeFileAtomic writes through a temp file and rename so readers never see a torn file
func writeFileAtomic(path string, data []byte) error {
	tmpFile := path + ".tmp"
	if err := os.WriteFile(tmpFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := os.Rename(tmpFile, path); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}
	return nil
}
