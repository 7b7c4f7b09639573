// Package listen normalizes the daemon bind address.
package listen

import (
	"fmt"
	"net"
	"strconv"
	"strings"
)

const defaultPort = "18181"

// Config is a normalized daemon bind target derived from a flag, the config
// file or MDC_LISTEN.
type Config struct {
	Host    string
	Port    string
	Disable bool
}

// Default binds every interface on the default port.
func Default() Config {
	return Config{Port: defaultPort}
}

// Parse interprets a raw listen value. An empty value disables the HTTP
// surface; a host alone keeps the default port; `1234` and `:1234` keep the
// default host.
func Parse(raw string) (Config, error) {
	value := strings.TrimSpace(raw)
	if value == "" {
		return Config{Disable: true}, nil
	}

	host, port, err := split(value)
	if err != nil {
		return Config{}, fmt.Errorf("invalid listen address %q: %w", value, err)
	}
	if port == "" {
		port = defaultPort
	}
	if n, err := strconv.Atoi(port); err != nil || n <= 0 || n > 65535 {
		return Config{}, fmt.Errorf("invalid listen port %q", port)
	}
	return Config{Host: host, Port: port}, nil
}

func split(value string) (host, port string, err error) {
	switch {
	case isDigits(value):
		return "", value, nil
	case strings.HasPrefix(value, ":"):
		return "", strings.TrimSpace(value[1:]), nil
	case strings.HasPrefix(value, "["):
		if strings.HasSuffix(value, "]") {
			return strings.Trim(value, "[]"), "", nil
		}
		h, p, err := net.SplitHostPort(value)
		return strings.TrimSpace(h), strings.TrimSpace(p), err
	case strings.Count(value, ":") == 1:
		h, p, err := net.SplitHostPort(value)
		return strings.TrimSpace(h), strings.TrimSpace(p), err
	default:
		return value, "", nil
	}
}

// Address returns the bind string for net.Listen.
func (c Config) Address() string {
	if c.Disable {
		return ""
	}
	if c.Host == "" {
		return ":" + c.Port
	}
	return net.JoinHostPort(c.Host, c.Port)
}

// DisplayURL renders a human-friendly URL for CLI output.
func (c Config) DisplayURL() string {
	if c.Disable {
		return ""
	}
	host := c.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/", net.JoinHostPort(host, c.Port))
}

// WebSocketURL renders the ws:// endpoint clients dial.
func (c Config) WebSocketURL() string {
	if c.Disable {
		return ""
	}
	return "ws" + strings.TrimPrefix(strings.TrimSuffix(c.DisplayURL(), "/"), "http") + "/ws"
}

func isDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return s != ""
}
