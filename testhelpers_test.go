//go:build linux

package ioring

import (
	"testing"
	"time"
)

// timeoutChan fires after a generous bound for operations that should
// complete quickly; used to fail fast instead of hanging the test binary
// when a concurrency invariant is violated.
func timeoutChan(t *testing.T) <-chan time.Time {
	t.Helper()
	return time.After(5 * time.Second)
}
