// Package config reads and writes the application config and profile files.
package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
)

// ParseInstanceDir validates a game instance directory and returns it cleaned
// and absolute. A leading ~ is expanded to the home directory.
// It returns an error if:
//   - The path is empty
//   - The path contains parent directory traversal (..)
//   - The directory does not exist
//   - The path points to a file instead of a directory
func ParseInstanceDir(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", errors.New("instance directory cannot be empty")
	}

	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == ".." {
			return "", errors.New("instance directory contains invalid traversal")
		}
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", errors.New("instance directory does not exist")
		}
		return "", err
	}

	if !info.IsDir() {
		return "", errors.New("instance path is a file, not a directory")
	}

	return abs, nil
}
