package configstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const configFileName = "config.toml"

// GetConfigPath resolves the mdc configuration directory and file path using
// XDG rules with a fallback to ~/.config/mdc/config.toml. MDC_HOME overrides
// both.
func GetConfigPath() (string, string, error) {
	if override := strings.TrimSpace(os.Getenv("MDC_HOME")); override != "" {
		dir := filepath.Clean(override)
		if !filepath.IsAbs(dir) {
			abs, err := filepath.Abs(dir)
			if err != nil {
				return "", "", fmt.Errorf("resolve MDC_HOME %q: %w", override, err)
			}
			dir = abs
		}
		return dir, filepath.Join(dir, configFileName), nil
	}

	base := strings.TrimSpace(os.Getenv("XDG_CONFIG_HOME"))
	if base != "" {
		dir := buildConfigDir(base)
		return dir, filepath.Join(dir, configFileName), nil
	}

	home, err := resolveHomeDir()
	if err != nil {
		return "", "", err
	}
	dir := buildConfigDir(filepath.Join(home, ".config"))
	return dir, filepath.Join(dir, configFileName), nil
}

func buildConfigDir(base string) string {
	return filepath.Join(base, "mdc")
}

// resolveHomeDir evaluates HOME-style environment variables on each call to
// avoid relying on os.UserHomeDir's cached value, which can be stale in tests
// that mutate the process environment.
func resolveHomeDir() (string, error) {
	home := strings.TrimSpace(os.Getenv("HOME"))
	if home == "" {
		home = strings.TrimSpace(os.Getenv("USERPROFILE"))
	}
	if home == "" {
		return "", fmt.Errorf("resolve home dir: home directory not found")
	}
	return filepath.Clean(home), nil
}
