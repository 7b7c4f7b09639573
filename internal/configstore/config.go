package configstore

import (
	"fmt"
	"os"
	"strings"
	"time"
)

const (
	// DefaultCacheTTL is how long a fetched component catalog is served.
	DefaultCacheTTL = 360 * time.Minute
	// DefaultListen is the daemon bind address.
	DefaultListen = ":18181"
)

// Config is the effective mdc configuration.
type Config struct {
	// ComponentMetadataURL is fetched over HTTP for the component catalog.
	ComponentMetadataURL string
	// ComponentMetadataFile is a local JSON or YAML catalog. It wins over the
	// URL when both are set.
	ComponentMetadataFile string
	CacheTTL              time.Duration
	PropertyCompletion    bool
	Debug                 bool
	Listen                string
	LogFile               string
}

// New returns a Config holding the defaults.
func New() Config {
	return Config{
		CacheTTL:           DefaultCacheTTL,
		PropertyCompletion: true,
		Listen:             DefaultListen,
	}
}

// CatalogRef returns the catalog location to load, preferring the local file.
func (c Config) CatalogRef() string {
	if strings.TrimSpace(c.ComponentMetadataFile) != "" {
		return c.ComponentMetadataFile
	}
	return strings.TrimSpace(c.ComponentMetadataURL)
}

// ApplyEnv layers MDC_* environment overrides onto c. lookup defaults to
// os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if v, ok := lookup("MDC_COMPONENT_METADATA_URL"); ok && strings.TrimSpace(v) != "" {
		c.ComponentMetadataURL = strings.TrimSpace(v)
	}
	if v, ok := lookup("MDC_COMPONENT_METADATA_FILE"); ok && strings.TrimSpace(v) != "" {
		c.ComponentMetadataFile = expandConfigValue(strings.TrimSpace(v))
	}
	if v, ok := lookup("MDC_LISTEN"); ok && strings.TrimSpace(v) != "" {
		c.Listen = strings.TrimSpace(v)
	}
	if v, ok := lookup("MDC_DEBUG"); ok && strings.TrimSpace(v) != "" {
		enabled, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("MDC_DEBUG: %w", err)
		}
		c.Debug = enabled
	}
	if v, ok := lookup("MDC_PROPERTY_COMPLETION"); ok && strings.TrimSpace(v) != "" {
		enabled, err := parseBool(v)
		if err != nil {
			return fmt.Errorf("MDC_PROPERTY_COMPLETION: %w", err)
		}
		c.PropertyCompletion = enabled
	}
	return nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", raw)
}

// expandConfigValue expands $VAR and ${VAR} references. "$$" yields a
// literal dollar sign.
func expandConfigValue(raw string) string {
	if !strings.Contains(raw, "$") {
		return raw
	}
	return os.Expand(raw, func(name string) string {
		if name == "$" {
			return "$"
		}
		return os.Getenv(name)
	})
}

func minutes(n int64) time.Duration {
	return time.Duration(n) * time.Minute
}
