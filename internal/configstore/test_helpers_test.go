package configstore

import (
	"os"
	"sync"
	"testing"
)

var envMu sync.Mutex

func lockEnv(t *testing.T) {
	t.Helper()
	envMu.Lock()
	t.Cleanup(func() {
		envMu.Unlock()
	})
}

func testSetEnv(t *testing.T, key, value string) {
	t.Helper()
	prev, existed := os.LookupEnv(key)
	if err := os.Setenv(key, value); err != nil {
		t.Fatalf("set env %s: %v", key, err)
	}
	t.Cleanup(func() {
		if !existed {
			_ = os.Unsetenv(key)
			return
		}
		if err := os.Setenv(key, prev); err != nil {
			t.Fatalf("restore env %s: %v", key, err)
		}
	})
}

func setHome(t *testing.T, dir string) {
	t.Helper()
	testSetEnv(t, "HOME", dir)
	testSetEnv(t, "USERPROFILE", "")
}

func unsetHome(t *testing.T) {
	t.Helper()
	testSetEnv(t, "HOME", "")
	testSetEnv(t, "USERPROFILE", "")
}

func clearMDCEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"MDC_HOME",
		"MDC_COMPONENT_METADATA_URL",
		"MDC_COMPONENT_METADATA_FILE",
		"MDC_LISTEN",
		"MDC_DEBUG",
		"MDC_PROPERTY_COMPLETION",
	} {
		testSetEnv(t, key, "")
	}
}
