//go:build linux

package ioring

import (
	"errors"
	"syscall"
	"testing"
)

func skipIfNoIOURing(t *testing.T) {
	t.Helper()
	ring, err := New(4)
	if err != nil {
		if errors.Is(err, syscall.ENOSYS) {
			t.Skip("io_uring not supported on this kernel")
		}
		if errors.Is(err, syscall.EPERM) {
			t.Skip("io_uring blocked by seccomp or permissions")
		}
		t.Skipf("io_uring unavailable: %v", err)
	}
	ring.Dispose()
}

func TestNewRing(t *testing.T) {
	skipIfNoIOURing(t)

	tests := []struct {
		name    string
		entries uint32
		opts    []Option
		wantErr bool
	}{
		{"default_64", 64, nil, false},
		{"default_128", 128, nil, false},
		{"non_power_of_two", 100, nil, false}, // kernel rounds up
		{"zero_entries", 0, nil, true},
		{"with_cqsize", 64, []Option{WithCQSize(256)}, false},
		{"with_single_issuer", 64, []Option{WithSingleIssuer()}, false},
		{"with_coop_taskrun", 64, []Option{WithCoopTaskrun()}, false},
		{"with_completion_threads", 64, []Option{WithCompletionThreads(4)}, false},
		{"with_async_dispatch", 64, []Option{WithAsyncDispatch()}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ring, err := New(tt.entries, tt.opts...)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if ring != nil {
				if ring.Fd() < 0 {
					t.Error("ring fd should be valid")
				}
				if ring.SubmissionQueueSize() == 0 {
					t.Error("SQ entries should be non-zero")
				}
				if ring.CompletionQueueSize() == 0 {
					t.Error("CQ entries should be non-zero")
				}
				ring.Dispose()
			}
		})
	}
}

func TestRingDisposeIdempotent(t *testing.T) {
	skipIfNoIOURing(t)

	ring, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if err := ring.Dispose(); err != nil {
		t.Errorf("Dispose() error = %v", err)
	}
	if err := ring.Dispose(); err != nil {
		t.Errorf("second Dispose() error = %v", err)
	}
}

func TestRingDisposeWhenIdle(t *testing.T) {
	skipIfNoIOURing(t)

	// Disposing a ring with no pending operations must terminate every
	// reaper goroutine; this is what would hang forever if the barrier or
	// the unblock handle were wired incorrectly.
	ring, err := New(64, WithCompletionThreads(4))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- ring.Dispose() }()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Dispose() error = %v", err)
		}
	case <-timeoutChan(t):
		t.Fatal("Dispose() did not return: a reaper is stuck")
	}
}

func TestRingFeatures(t *testing.T) {
	skipIfNoIOURing(t)

	ring, err := New(64)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer ring.Dispose()

	t.Logf("ring features: 0x%x", ring.Features())
}
