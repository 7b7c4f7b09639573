// Package e2e drives a built mdc binary through its CLI and daemon endpoints.
package e2e

import (
	"context"
	"errors"
	"net/http"
	"time"
)

const (
	readinessTimeout      = 10 * time.Second
	readinessPollInterval = 50 * time.Millisecond
)

var errReadinessTimeout = errors.New("readiness timeout")

// pollReadiness calls check until it reports true, ctx ends or timeout passes.
func pollReadiness(ctx context.Context, timeout time.Duration, check func() bool) error {
	if timeout <= 0 {
		timeout = readinessTimeout
	}
	timeoutTimer := time.NewTimer(timeout)
	ticker := time.NewTicker(readinessPollInterval)
	defer timeoutTimer.Stop()
	defer ticker.Stop()

	for {
		if check() {
			return nil
		}
		select {
		case <-timeoutTimer.C:
			return errReadinessTimeout
		case <-ticker.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// httpOK reports whether a GET of url answers 200.
func httpOK(client *http.Client, url string) bool {
	resp, err := client.Get(url)
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
