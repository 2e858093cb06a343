// Package config loads application configuration and ignore files.
package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/temirov/repoview/internal/utils"
)

// LoadIgnoreFilePatterns reads an ignore file and returns its patterns. Blank
// lines and lines starting with "#" are skipped.
//
// #nosec G304
func LoadIgnoreFilePatterns(ignoreFilePath string) ([]string, error) {
	fileHandle, openFileError := os.Open(ignoreFilePath)
	if openFileError != nil {
		return nil, fmt.Errorf("open ignore file %s: %w", ignoreFilePath, openFileError)
	}
	defer func() {
		closeError := fileHandle.Close()
		if closeError != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to close %s: %v\n", ignoreFilePath, closeError)
		}
	}()

	var ignorePatterns []string
	scanner := bufio.NewScanner(fileHandle)
	for scanner.Scan() {
		trimmedLine := strings.TrimSpace(scanner.Text())
		if trimmedLine == "" || strings.HasPrefix(trimmedLine, "#") {
			continue
		}
		ignorePatterns = append(ignorePatterns, trimmedLine)
	}
	if scanError := scanner.Err(); scanError != nil {
		return nil, fmt.Errorf("read ignore file %s: %w", ignoreFilePath, scanError)
	}
	return ignorePatterns, nil
}

// CombineIgnorePatterns appends additional patterns to the configured ones,
// dropping blanks and duplicates while preserving order.
func CombineIgnorePatterns(configured []string, additional ...[]string) []string {
	combined := make([]string, 0, len(configured))
	for _, pattern := range configured {
		if trimmed := strings.TrimSpace(pattern); trimmed != "" {
			combined = append(combined, trimmed)
		}
	}
	for _, patterns := range additional {
		for _, pattern := range patterns {
			trimmedPattern := strings.TrimSpace(pattern)
			if trimmedPattern == "" {
				continue
			}
			if !utils.ContainsString(combined, trimmedPattern) {
				combined = append(combined, trimmedPattern)
			}
		}
	}
	return utils.DeduplicatePatterns(combined)
}
