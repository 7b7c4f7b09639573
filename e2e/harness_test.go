package e2e

import (
	"bytes"
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

const testCatalogJSON = `[
  {"mdc_name": "alert", "description": "Callout box", "props": [
    {"name": "icon", "type": "string", "required": true},
    {"name": "closable", "type": "boolean"}
  ]},
  {"mdc_name": "card", "component_meta": {"meta": {
    "props": [{"name": "title", "type": "string"}],
    "slots": [{"name": "default"}]
  }}}
]`

var (
	buildOnce sync.Once
	mdcBinary string
	buildErr  error
)

func ensureMDCBinary(t *testing.T) string {
	t.Helper()

	buildOnce.Do(func() {
		out := filepath.Join(os.TempDir(), fmt.Sprintf("mdc-e2e-%d", time.Now().UnixNano()))
		cmd := exec.Command("go", "build", "-o", out, "../cmd/mdc")
		cmd.Env = append(os.Environ(), "GOFLAGS=-vet=off")
		var stderr bytes.Buffer
		cmd.Stderr = &stderr
		buildErr = cmd.Run()
		if buildErr == nil {
			mdcBinary = out
		} else {
			buildErr = fmt.Errorf("build mdc binary: %w\n%s", buildErr, stderr.String())
		}
	})

	if buildErr != nil {
		t.Fatalf("failed to build mdc binary: %v", buildErr)
	}
	return mdcBinary
}

func skipUnlessE2E(t *testing.T) {
	t.Helper()
	if !envTruthy(os.Getenv("MDC_E2E")) {
		t.Skip("set MDC_E2E=1 to run end-to-end tests")
	}
}

func envTruthy(val string) bool {
	switch strings.ToLower(strings.TrimSpace(val)) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func mustWrite(t *testing.T, path string, data []byte) {
	t.Helper()
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func freePort(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("failed to allocate free port: %v", err)
	}
	defer l.Close()
	port := l.Addr().(*net.TCPAddr).Port
	return strconv.Itoa(port)
}

// isolatedEnv keeps the user's config and MDC_* variables out of the binary.
func isolatedEnv(t *testing.T) []string {
	t.Helper()
	env := []string{"HOME=" + t.TempDir(), "XDG_CONFIG_HOME=" + t.TempDir()}
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, "MDC_") || strings.HasPrefix(kv, "HOME=") || strings.HasPrefix(kv, "XDG_CONFIG_HOME=") {
			continue
		}
		env = append(env, kv)
	}
	return env
}

type daemon struct {
	cmd     *exec.Cmd
	stdout  *bytes.Buffer
	stderr  *bytes.Buffer
	baseURL string
	logPath string
}

func startDaemon(t *testing.T, bin, catalogPath string, extra ...string) *daemon {
	t.Helper()

	port := freePort(t)
	logPath := filepath.Join(t.TempDir(), "mdc.log")
	args := append([]string{"serve", "-listen", "127.0.0.1:" + port, "-catalog", catalogPath, "-log", logPath}, extra...)
	cmd := exec.Command(bin, args...)
	cmd.Env = isolatedEnv(t)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Start(); err != nil {
		t.Fatalf("start daemon: %v", err)
	}

	d := &daemon{cmd: cmd, stdout: &stdout, stderr: &stderr, baseURL: "http://127.0.0.1:" + port, logPath: logPath}
	t.Cleanup(func() { d.terminate(t) })

	client := &http.Client{Timeout: time.Second}
	defer client.CloseIdleConnections()
	if err := pollReadiness(context.Background(), readinessTimeout, func() bool {
		return httpOK(client, d.baseURL+"/healthz")
	}); err != nil {
		t.Fatalf("daemon not ready after %s: stdout=%s stderr=%s", readinessTimeout, stdout.String(), stderr.String())
	}
	return d
}

func (d *daemon) terminate(t *testing.T) {
	t.Helper()
	if d.cmd.Process == nil || d.cmd.ProcessState != nil {
		return
	}
	_ = d.cmd.Process.Signal(os.Interrupt)
	done := make(chan error, 1)
	go func() {
		done <- d.cmd.Wait()
	}()
	select {
	case <-time.After(5 * time.Second):
		_ = d.cmd.Process.Kill()
		t.Errorf("process did not exit gracefully; stdout=%s stderr=%s", d.stdout.String(), d.stderr.String())
	case <-done:
	}
}

func runMDC(t *testing.T, bin string, args ...string) (string, string, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Env = isolatedEnv(t)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	err := cmd.Run()
	return stdout.String(), stderr.String(), err
}
