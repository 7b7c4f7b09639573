package configstore

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/pelletier/go-toml/v2"
)

// ParseError represents a TOML decode failure.
type ParseError struct {
	Path string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse config %s: %v", e.Path, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Load reads the config from its XDG location and applies environment
// overrides. Missing files result in the defaults.
func Load() (Config, error) {
	_, file, err := GetConfigPath()
	if err != nil {
		cfg := New()
		if envErr := cfg.ApplyEnv(nil); envErr != nil {
			return cfg, envErr
		}
		return cfg, err
	}
	cfg, err := LoadFile(file)
	if err != nil {
		return cfg, err
	}
	if err := cfg.ApplyEnv(nil); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// LoadFile reads path without applying environment overrides.
func LoadFile(path string) (Config, error) {
	cfg := New()
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}
	if err := decodeConfig(data, path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func decodeConfig(data []byte, path string, cfg *Config) error {
	var raw map[string]any
	if err := toml.Unmarshal(data, &raw); err != nil {
		var decodeErr *toml.DecodeError
		if errors.As(err, &decodeErr) {
			return &ParseError{Path: path, Err: decodeErr}
		}
		return err
	}

	for key, value := range raw {
		switch key {
		case "component_metadata_url":
			s, err := toString(value)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			cfg.ComponentMetadataURL = strings.TrimSpace(s)
		case "component_metadata_file":
			s, err := toString(value)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			cfg.ComponentMetadataFile = expandConfigValue(strings.TrimSpace(s))
		case "component_metadata_cache_ttl":
			n, err := toInt(value)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			if n <= 0 {
				return fmt.Errorf("parse %s: must be a positive number of minutes, got %d", key, n)
			}
			cfg.CacheTTL = minutes(n)
		case "property_completion":
			b, err := toBool(value)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			cfg.PropertyCompletion = b
		case "debug":
			b, err := toBool(value)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			cfg.Debug = b
		case "listen":
			s, err := toString(value)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			cfg.Listen = strings.TrimSpace(s)
		case "log_file":
			s, err := toString(value)
			if err != nil {
				return fmt.Errorf("parse %s: %w", key, err)
			}
			cfg.LogFile = expandConfigValue(strings.TrimSpace(s))
		}
	}
	return nil
}

func toBool(value any) (bool, error) {
	switch v := value.(type) {
	case bool:
		return v, nil
	default:
		return false, fmt.Errorf("expected boolean, got %T", value)
	}
}

func toString(value any) (string, error) {
	switch v := value.(type) {
	case string:
		return v, nil
	default:
		return "", fmt.Errorf("expected string, got %T", value)
	}
}

func toInt(value any) (int64, error) {
	switch v := value.(type) {
	case int64:
		return v, nil
	case float64:
		if v != float64(int64(v)) {
			return 0, fmt.Errorf("expected whole number, got %v", v)
		}
		return int64(v), nil
	default:
		return 0, fmt.Errorf("expected integer, got %T", value)
	}
}
