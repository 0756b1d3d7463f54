//go:build linux

package ioring

import (
	"unsafe"

	"github.com/kestrelio/ioring/internal/sys"
)

// PrepOpenat prepares an openat(dirfd, path, flags, mode). path must be a
// null-terminated byte string valid until completion.
func PrepOpenat(dirfd int, path *byte, flags int, mode uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_OPENAT)
	sqe.Fd = int32(dirfd)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
	sqe.Len = mode
	sqe.OpFlags = uint32(flags)
	return newEntry(sqe, int32(dirfd), cb, state, opts)
}

// PrepStatx prepares a statx(dirfd, path, flags, mask, statxbuf). path and
// statxbuf must remain valid until completion.
func PrepStatx(dirfd int, path *byte, flags, mask int, statxbuf unsafe.Pointer, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_STATX)
	sqe.Fd = int32(dirfd)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
	sqe.Len = uint32(mask)
	sqe.OpFlags = uint32(flags)
	sqe.Off = uint64(uintptr(statxbuf))
	return newEntry(sqe, int32(dirfd), cb, state, opts)
}

// PrepSyncFileRange prepares a sync_file_range(fd, offset, nbytes, flags).
func PrepSyncFileRange(fd int, offset uint64, nbytes uint32, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_SYNC_FILE_RANGE)
	sqe.Fd = int32(fd)
	sqe.Off = offset
	sqe.Len = nbytes
	sqe.OpFlags = flags
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepFallocate prepares a fallocate(fd, mode, offset, len). Note the SQE
// reuses the rw layout: len carries mode and addr carries the byte length,
// per the kernel's io_uring_prep_fallocate override of the generic rw prep.
func PrepFallocate(fd int, mode uint32, offset uint64, length uint64, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_FALLOCATE)
	sqe.Fd = int32(fd)
	sqe.Off = offset
	sqe.Len = mode
	sqe.Addr = length
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepOpenat2 prepares an openat2(dirfd, path, how). path and how must
// remain valid until completion.
func PrepOpenat2(dirfd int, path *byte, how *sys.OpenHow, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_OPENAT2)
	sqe.Fd = int32(dirfd)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(path)))
	sqe.Off = uint64(uintptr(unsafe.Pointer(how)))
	sqe.Len = uint32(unsafe.Sizeof(*how))
	return newEntry(sqe, int32(dirfd), cb, state, opts)
}

// PrepFilesUpdate prepares an IORING_OP_FILES_UPDATE, replacing registered
// file slots starting at offset with the fds in fds (a negative fd value
// leaves that slot untouched). fds must remain valid until completion.
func PrepFilesUpdate(fds []int32, offset int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_FILES_UPDATE)
	sqe.Fd = -1
	sqe.Off = uint64(offset)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(&fds[0])))
	sqe.Len = uint32(len(fds))
	return newEntry(sqe, -1, cb, state, opts)
}

// PrepFadvise prepares a posix_fadvise(fd, offset, len, advice).
func PrepFadvise(fd int, offset uint64, length uint32, advice uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_FADVISE)
	sqe.Fd = int32(fd)
	sqe.Off = offset
	sqe.Len = length
	sqe.OpFlags = advice
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepMadvise prepares a madvise(addr, length, advice) against the calling
// process's own address space; there is no associated file descriptor.
func PrepMadvise(addr unsafe.Pointer, length uint32, advice uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_MADVISE)
	sqe.Fd = -1
	sqe.Addr = uint64(uintptr(addr))
	sqe.Len = length
	sqe.OpFlags = advice
	return newEntry(sqe, -1, cb, state, opts)
}

// PrepEpollCtl prepares an epoll_ctl(epfd, op, fd, ev). ev must point to a
// valid struct epoll_event (or be nil for EPOLL_CTL_DEL) and remain valid
// until completion; left as an opaque pointer so callers can use whichever
// epoll_event representation they already have rather than forcing a
// dependency on a concrete wrapper type here.
func PrepEpollCtl(epfd, fd int, op uint32, ev unsafe.Pointer, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_EPOLL_CTL)
	sqe.Fd = int32(epfd)
	sqe.Off = uint64(fd)
	sqe.Addr = uint64(uintptr(ev))
	sqe.Len = op
	return newEntry(sqe, int32(epfd), cb, state, opts)
}
