package validation

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PathValidator checks the work directory, export file and ledger paths
// named in the configuration.
type PathValidator struct {
	// MaxPathLength is the maximum allowed path length
	MaxPathLength int
}

// NewPathValidator creates a validator with default limits
func NewPathValidator() *PathValidator {
	return &PathValidator{MaxPathLength: 4096}
}

// Clean validates a path and returns its absolute, cleaned form.
func (v *PathValidator) Clean(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("path cannot be empty")
	}
	if len(path) > v.MaxPathLength {
		return "", fmt.Errorf("path too long (max %d characters)", v.MaxPathLength)
	}
	if strings.Contains(path, "\x00") {
		return "", fmt.Errorf("path contains null bytes")
	}
	for _, char := range path {
		if char < 32 && char != '\t' {
			return "", fmt.Errorf("path contains control characters")
		}
	}

	if len(path) >= 2 && path[:2] == "~/" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		path = filepath.Join(homeDir, path[2:])
	}

	absPath, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("cannot make path absolute: %w", err)
	}
	return filepath.Clean(absPath), nil
}

// Directory validates a directory path, creating it when create is set.
func (v *PathValidator) Directory(path string, create bool) (string, error) {
	validatedPath, err := v.Clean(path)
	if err != nil {
		return "", err
	}

	info, err := os.Stat(validatedPath)
	switch {
	case err == nil:
		if !info.IsDir() {
			return "", fmt.Errorf("path exists but is not a directory: %s", validatedPath)
		}
	case os.IsNotExist(err):
		if create {
			if mkErr := os.MkdirAll(validatedPath, 0o755); mkErr != nil {
				return "", fmt.Errorf("failed to create directory: %w", mkErr)
			}
		}
	default:
		return "", fmt.Errorf("checking directory: %w", err)
	}

	return validatedPath, nil
}

// File validates a file path; the file itself need not exist yet.
func (v *PathValidator) File(path string) (string, error) {
	validatedPath, err := v.Clean(path)
	if err != nil {
		return "", err
	}

	if info, err := os.Stat(validatedPath); err == nil && info.IsDir() {
		return "", fmt.Errorf("path is a directory, not a file: %s", validatedPath)
	}

	return validatedPath, nil
}
