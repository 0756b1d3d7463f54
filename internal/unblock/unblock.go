//go:build linux

// Package unblock implements the Unblock Handle: an eventfd-backed one-shot
// wakeup that lets a producer thread pull a reaper out of a blocking
// io_uring_enter(min_complete=1) without staging a kernel-visible
// submission of its own (spec §4.3).
//
// This package only owns the eventfd lifecycle (create/signal/dispose). The
// "a single 8-byte read is always pending against the ring" half of the
// protocol is wired by the Ring facade, since arming that read requires
// staging through the SQA — a component this package must not depend on to
// avoid a cycle between "the thing the SQA wakes" and "the thing that wakes
// the SQA's reapers."
package unblock

import (
	"encoding/binary"
	"sync/atomic"

	"github.com/kestrelio/ioring/internal/sys"
)

// Handle wraps an eventfd. fd stores the raw descriptor, or 0 once disposed
// — 0 doubles as both "not yet armed" is impossible (New always creates a
// live fd) and "disposed" sentinel, matching spec §5's description of the
// handle's single atomic integer.
type Handle struct {
	fd int32
}

// New creates a close-on-exec eventfd with initial value 0.
func New() (*Handle, error) {
	fd, err := sys.Eventfd(0, sys.EFD_CLOEXEC)
	if err != nil {
		return nil, err
	}
	return &Handle{fd: int32(fd)}, nil
}

// Fd returns the eventfd descriptor, or -1 if disposed.
func (h *Handle) Fd() int {
	fd := atomic.LoadInt32(&h.fd)
	if fd == 0 {
		return -1
	}
	return int(fd)
}

// Signal performs a direct write(eventfd, 1), waking the pending read the
// Ring facade keeps armed against this handle. A write after Dispose is a
// benign teardown race and is swallowed.
func (h *Handle) Signal() error {
	fd := atomic.LoadInt32(&h.fd)
	if fd == 0 {
		return nil
	}
	var buf [8]byte
	binary.LittleEndian.PutUint64(buf[:], 1)
	_, err := sys.Write(int(fd), buf[:])
	if err == sys.ErrBadFd {
		return nil
	}
	return err
}

// Dispose closes the eventfd. Safe to call more than once.
func (h *Handle) Dispose() error {
	fd := atomic.SwapInt32(&h.fd, 0)
	if fd == 0 {
		return nil
	}
	return sys.Close(int(fd))
}
