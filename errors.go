//go:build linux

package ioring

import "github.com/pkg/errors"

// Sentinel errors surfaced to callers. Matches spec §7's error kinds,
// named to the teacher's convention (ring.go: ErrRingClosed, ErrSQFull,
// ErrCQOverflow, ErrNotSupported).
var (
	// ErrRingDisposed is returned by submit entry points once the ring has
	// been disposed.
	ErrRingDisposed = errors.New("ioring: ring disposed")
	// ErrSQFull is returned by Submit/SubmitBatch when the submission queue
	// has no room (this engine never grows the SQ automatically).
	ErrSQFull = errors.New("ioring: submission queue full")
	// ErrCQOverflow is terminal: the kernel's completion queue overflowed
	// and the registry may have lost entries whose callbacks will never
	// fire.
	ErrCQOverflow = errors.New("ioring: completion queue overflow")
	// ErrNotSupported is returned by feature-gated calls on kernels that
	// lack the relevant io_uring feature.
	ErrNotSupported = errors.New("ioring: operation not supported on this kernel")
)
