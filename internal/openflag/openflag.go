// Package openflag decides whether the daemon opens the playground in a
// browser and launches it.
package openflag

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// EnvVar requests opening the playground when set to a truthy value.
const EnvVar = "MDC_OPEN"

// Enabled reports whether MDC_OPEN asks for the playground to be opened.
func Enabled() bool {
	value, ok := os.LookupEnv(EnvVar)
	if !ok {
		return false
	}
	return IsTruthy(value)
}

// IsTruthy returns true for the accepted truthy spellings of MDC_OPEN.
func IsTruthy(value string) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	default:
		return false
	}
}

// Command returns the launcher invocation that opens url on goos.
func Command(goos, url string) ([]string, error) {
	switch goos {
	case "darwin":
		return []string{"open", url}, nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return []string{"xdg-open", url}, nil
	case "windows":
		return []string{"rundll32", "url.dll,FileProtocolHandler", url}, nil
	default:
		return nil, fmt.Errorf("opening a browser is not supported on %s", goos)
	}
}

// Open starts the platform launcher for url without waiting for it.
func Open(url string) error {
	argv, err := Command(runtime.GOOS, url)
	if err != nil {
		return err
	}
	if err := exec.Command(argv[0], argv[1:]...).Start(); err != nil {
		return fmt.Errorf("open %s with %s: %w", url, argv[0], err)
	}
	return nil
}
