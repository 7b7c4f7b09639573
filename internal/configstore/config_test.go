package configstore

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, dir, contents string) string {
	t.Helper()
	path := filepath.Join(dir, configFileName)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadFileMissingReturnsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFile(filepath.Join(t.TempDir(), "absent.toml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if cfg != New() {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
	if cfg.CacheTTL != 360*time.Minute || !cfg.PropertyCompletion || cfg.Listen != ":18181" {
		t.Fatalf("unexpected defaults %+v", cfg)
	}
}

func TestLoadFileDecodesKeys(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	testSetEnv(t, "MDC_TEST_ROOT", "/srv/docs")

	path := writeConfig(t, t.TempDir(), `
component_metadata_url = " https://example.com/components.json "
component_metadata_file = "${MDC_TEST_ROOT}/components.yaml"
component_metadata_cache_ttl = 15
property_completion = false
debug = true
listen = "127.0.0.1:9999"
log_file = "$$MDC_TEST_ROOT/mdc.log"
unknown_key = "ignored"
`)
	cfg, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	want := Config{
		ComponentMetadataURL:  "https://example.com/components.json",
		ComponentMetadataFile: "/srv/docs/components.yaml",
		CacheTTL:              15 * time.Minute,
		PropertyCompletion:    false,
		Debug:                 true,
		Listen:                "127.0.0.1:9999",
		LogFile:               "$MDC_TEST_ROOT/mdc.log",
	}
	if cfg != want {
		t.Fatalf("cfg = %+v, want %+v", cfg, want)
	}
	if got := cfg.CatalogRef(); got != "/srv/docs/components.yaml" {
		t.Fatalf("CatalogRef = %q", got)
	}
}

func TestLoadFileErrors(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"syntax":       "debug = ",
		"wrong type":   `debug = "yes"`,
		"negative ttl": "component_metadata_cache_ttl = -5",
		"fraction ttl": "component_metadata_cache_ttl = 1.5",
	}
	for name, contents := range cases {
		path := writeConfig(t, t.TempDir(), contents)
		if _, err := LoadFile(path); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}

	path := writeConfig(t, t.TempDir(), "debug = ")
	_, err := LoadFile(path)
	var parseErr *ParseError
	if !errors.As(err, &parseErr) || parseErr.Path != path {
		t.Fatalf("expected ParseError for %s, got %v", path, err)
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	t.Parallel()

	env := map[string]string{
		"MDC_COMPONENT_METADATA_URL": "https://cdn.example.com/meta.json",
		"MDC_LISTEN":                 ":7000",
		"MDC_DEBUG":                  "on",
		"MDC_PROPERTY_COMPLETION":    "0",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}
	cfg := New()
	if err := cfg.ApplyEnv(lookup); err != nil {
		t.Fatalf("ApplyEnv: %v", err)
	}
	if cfg.ComponentMetadataURL != env["MDC_COMPONENT_METADATA_URL"] || cfg.Listen != ":7000" || !cfg.Debug || cfg.PropertyCompletion {
		t.Fatalf("unexpected cfg %+v", cfg)
	}
	if got := cfg.CatalogRef(); got != env["MDC_COMPONENT_METADATA_URL"] {
		t.Fatalf("CatalogRef = %q", got)
	}

	env["MDC_DEBUG"] = "sometimes"
	if err := cfg.ApplyEnv(lookup); err == nil {
		t.Fatalf("expected invalid boolean error")
	}
}

func TestLoadUsesConfigHomeAndEnv(t *testing.T) {
	t.Parallel()
	lockEnv(t)
	clearMDCEnv(t)
	home := t.TempDir()
	testSetEnv(t, "MDC_HOME", home)
	testSetEnv(t, "MDC_LISTEN", ":8123")
	writeConfig(t, home, `listen = ":1"`+"\ndebug = true\n")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Listen != ":8123" || !cfg.Debug {
		t.Fatalf("expected env to override file, got %+v", cfg)
	}
}
