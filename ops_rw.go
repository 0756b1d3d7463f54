//go:build linux

package ioring

import (
	"syscall"
	"unsafe"

	"github.com/kestrelio/ioring/internal/sys"
)

// PrepNop prepares a no-op submission. Useful for testing and for waking
// an SQPOLL thread.
func PrepNop(cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_NOP)
	sqe.Fd = -1
	return newEntry(sqe, -1, cb, state, opts)
}

// PrepRead prepares a read of up to len(buf) bytes from fd at offset into
// buf. buf must remain valid and unmodified until the completion fires.
func PrepRead(fd int, buf []byte, offset uint64, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_READ)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.Off = offset
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepWrite prepares a write of buf to fd at offset.
func PrepWrite(fd int, buf []byte, offset uint64, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_WRITE)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.Off = offset
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepReadFixed prepares a read against a pre-registered buffer. bufIndex
// indexes the registered buffer table.
func PrepReadFixed(fd int, buf []byte, offset uint64, bufIndex uint16, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_READ_FIXED)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.Off = offset
	sqe.BufIndex = bufIndex
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepWriteFixed prepares a write from a pre-registered buffer.
func PrepWriteFixed(fd int, buf []byte, offset uint64, bufIndex uint16, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_WRITE_FIXED)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.Off = offset
	sqe.BufIndex = bufIndex
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepReadv prepares a vectored read. iovecs must remain valid until the
// completion fires.
func PrepReadv(fd int, iovecs []syscall.Iovec, offset uint64, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_READV)
	sqe.Fd = int32(fd)
	if len(iovecs) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&iovecs[0])))
	}
	sqe.Len = uint32(len(iovecs))
	sqe.Off = offset
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepWritev prepares a vectored write. iovecs must remain valid until the
// completion fires.
func PrepWritev(fd int, iovecs []syscall.Iovec, offset uint64, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_WRITEV)
	sqe.Fd = int32(fd)
	if len(iovecs) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&iovecs[0])))
	}
	sqe.Len = uint32(len(iovecs))
	sqe.Off = offset
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepFsync prepares an fsync. flags may be 0 or IORING_FSYNC_DATASYNC.
func PrepFsync(fd int, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_FSYNC)
	sqe.Fd = int32(fd)
	sqe.OpFlags = flags
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepSplice prepares a splice between fdIn and fdOut. offIn/offOut of -1
// mean "use the file's current position".
func PrepSplice(fdIn int, offIn int64, fdOut int, offOut int64, nbytes uint32, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_SPLICE)
	sqe.Fd = int32(fdOut)
	sqe.SpliceFdIn = int32(fdIn)
	sqe.Len = nbytes
	sqe.Off = uint64(offOut)
	sqe.SetSpliceOffIn(uint64(offIn))
	sqe.OpFlags = flags
	return newEntry(sqe, int32(fdOut), cb, state, opts)
}
