//go:build linux

package ioring

import (
	"unsafe"

	"github.com/kestrelio/ioring/internal/sys"
)

// PrepTimeout prepares a standalone timeout. count is the number of
// unrelated completions to wait for before ts elapses (0 means "just
// time out"). flags may include IORING_TIMEOUT_ABS/BOOTTIME/REALTIME.
func PrepTimeout(ts *Timespec, count uint64, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT)
	sqe.Fd = -1
	sqe.Addr = uint64(uintptr(unsafe.Pointer(ts)))
	sqe.Len = 1
	sqe.Off = count
	sqe.OpFlags = flags
	return newEntry(sqe, -1, cb, state, opts)
}

// PrepTimeoutRemove prepares removal of a previously submitted timeout,
// identified by the token Submit returned for it.
func PrepTimeoutRemove(target uint64, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_TIMEOUT_REMOVE)
	sqe.Fd = -1
	sqe.Addr = target
	return newEntry(sqe, -1, cb, state, opts)
}

// PrepLinkTimeout prepares a timeout for the entry staged immediately
// before it in the same batch. Combine with WithLink on that entry: if it
// hasn't completed within ts, it is canceled and this timeout's callback
// fires with -ETIME.
func PrepLinkTimeout(ts *Timespec, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_LINK_TIMEOUT)
	sqe.Fd = -1
	sqe.Addr = uint64(uintptr(unsafe.Pointer(ts)))
	sqe.Len = 1
	sqe.OpFlags = flags
	return newEntry(sqe, -1, cb, state, opts)
}

// PrepCancel prepares cancellation of a previously submitted operation,
// identified by the token Submit returned for it. flags may include
// IORING_ASYNC_CANCEL_ALL/FD/ANY.
func PrepCancel(target uint64, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_ASYNC_CANCEL)
	sqe.Fd = -1
	sqe.Addr = target
	sqe.OpFlags = flags
	return newEntry(sqe, -1, cb, state, opts)
}
