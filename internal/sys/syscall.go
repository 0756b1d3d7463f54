//go:build linux

package sys

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Setup creates a new io_uring instance.
// Returns the ring file descriptor on success, or an error.
//
// There is no portable wrapper for this syscall in golang.org/x/sys/unix,
// so the raw syscall number is still used directly, same as every io_uring
// binding in the wild.
func Setup(entries uint32, params *Params) (int, error) {
	fd, _, errno := unix.Syscall(
		SYS_IO_URING_SETUP,
		uintptr(entries),
		uintptr(unsafe.Pointer(params)),
		0,
	)
	if errno != 0 {
		return 0, errors.Wrap(errno, "io_uring_setup")
	}
	return int(fd), nil
}

// Enter submits SQEs and/or waits for CQEs.
// toSubmit: number of SQEs to submit
// minComplete: minimum CQEs to wait for (if flags includes IORING_ENTER_GETEVENTS)
// flags: IORING_ENTER_* flags
// sig: optional signal mask (can be nil, pass unsafe.Pointer to sigset_t)
//
// Errno is returned unwrapped so callers can compare against
// unix.EINTR/EAGAIN/EBUSY directly on the hot path.
func Enter(fd int, toSubmit, minComplete, flags uint32, sig unsafe.Pointer) (int, error) {
	var sigPtr uintptr
	var sigSz uintptr
	if sig != nil {
		sigPtr = uintptr(sig)
		sigSz = 8
	}

	n, _, errno := unix.Syscall6(
		SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags),
		sigPtr,
		sigSz,
	)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// EnterExt uses the extended enter argument (IORING_ENTER_EXT_ARG).
func EnterExt(fd int, toSubmit, minComplete, flags uint32, arg *GetEventsArg) (int, error) {
	n, _, errno := unix.Syscall6(
		SYS_IO_URING_ENTER,
		uintptr(fd),
		uintptr(toSubmit),
		uintptr(minComplete),
		uintptr(flags|IORING_ENTER_EXT_ARG),
		uintptr(unsafe.Pointer(arg)),
		unsafe.Sizeof(*arg),
	)
	if errno != 0 {
		return 0, errno
	}
	return int(n), nil
}

// Register performs ring registration operations.
func Register(fd int, opcode uint32, arg unsafe.Pointer, nrArgs uint32) error {
	_, _, errno := unix.Syscall6(
		SYS_IO_URING_REGISTER,
		uintptr(fd),
		uintptr(opcode),
		uintptr(arg),
		uintptr(nrArgs),
		0,
		0,
	)
	if errno != 0 {
		return errors.Wrap(errno, "io_uring_register")
	}
	return nil
}

// RegisterProbe queries supported operations.
func RegisterProbe(fd int, probe *Probe) error {
	return Register(fd, IORING_REGISTER_PROBE,
		unsafe.Pointer(probe), uint32(IORING_OP_LAST))
}

// Mmap wraps mmap for mapping ring buffers.
func Mmap(fd int, offset uint64, length int, prot, flags int) ([]byte, error) {
	data, err := unix.Mmap(fd, int64(offset), length, prot, flags)
	if err != nil {
		return nil, errors.Wrap(err, "mmap")
	}
	return data, nil
}

// Munmap unmaps a previously mapped region.
func Munmap(data []byte) error {
	if err := unix.Munmap(data); err != nil {
		return errors.Wrap(err, "munmap")
	}
	return nil
}

// EFD_CLOEXEC re-exports unix.EFD_CLOEXEC for callers that don't otherwise
// need to import golang.org/x/sys/unix directly.
const EFD_CLOEXEC = unix.EFD_CLOEXEC

// ErrBadFd is unix.EBADF, re-exported for comparing against errors from
// Write/Close on an fd that raced with a concurrent Dispose.
var ErrBadFd = unix.EBADF

// EBADF is unix.EBADF as an int32. CQE.Res carries it negated (-EBADF)
// when a pending read completes against an fd closed out from under it;
// re-exported so callers don't need to import golang.org/x/sys/unix just
// to compare.
const EBADF int32 = int32(unix.EBADF)

// Eventfd creates a new eventfd with the given initial value and flags.
func Eventfd(initval uint, flags int) (int, error) {
	fd, err := unix.Eventfd(initval, flags)
	if err != nil {
		return 0, errors.Wrap(err, "eventfd")
	}
	return fd, nil
}

// Close closes a file descriptor.
func Close(fd int) error {
	return unix.Close(fd)
}

// Write writes buf to fd, retrying for as long as it fails with EINTR. Returns unix.EBADF
// unwrapped so callers can treat it as the benign teardown race it is.
func Write(fd int, buf []byte) (int, error) {
	for {
		n, err := unix.Write(fd, buf)
		if err == unix.EINTR {
			continue
		}
		return n, err
	}
}
