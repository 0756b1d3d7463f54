//go:build linux

package ioring

import (
	"syscall"
	"unsafe"

	"github.com/kestrelio/ioring/internal/sys"
)

// PrepAccept prepares a connection accept on the listening socket fd. addr
// and addrLen may be nil if the peer address is not needed.
func PrepAccept(fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
	sqe.Fd = int32(fd)
	sqe.Addr = uint64(uintptr(addr))
	sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
	sqe.OpFlags = flags
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepAcceptMultishot prepares a multishot accept: the callback fires once
// per accepted connection until removed or the listener closes, each
// completion carrying IORING_CQE_F_MORE while more are expected.
func PrepAcceptMultishot(fd int, addr unsafe.Pointer, addrLen *uint32, flags uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_ACCEPT)
	sqe.Fd = int32(fd)
	sqe.Addr = uint64(uintptr(addr))
	sqe.Off = uint64(uintptr(unsafe.Pointer(addrLen)))
	sqe.OpFlags = flags
	sqe.Ioprio = uint16(sys.IORING_ACCEPT_MULTISHOT)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepConnect prepares an async connect of fd to addr.
func PrepConnect(fd int, addr unsafe.Pointer, addrLen uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_CONNECT)
	sqe.Fd = int32(fd)
	sqe.Addr = uint64(uintptr(addr))
	sqe.Off = uint64(addrLen)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepSend prepares a send of buf over fd.
func PrepSend(fd int, buf []byte, flags int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_SEND)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.OpFlags = uint32(flags)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepRecv prepares a recv of up to len(buf) bytes from fd into buf.
func PrepRecv(fd int, buf []byte, flags int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_RECV)
	sqe.Fd = int32(fd)
	if len(buf) > 0 {
		sqe.Addr = uint64(uintptr(unsafe.Pointer(&buf[0])))
	}
	sqe.Len = uint32(len(buf))
	sqe.OpFlags = uint32(flags)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepRecvMultishot prepares a multishot recv against a registered buffer
// group: the callback fires once per inbound chunk until removed.
func PrepRecvMultishot(fd int, bufGroup uint16, flags int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_RECV)
	sqe.Fd = int32(fd)
	sqe.Flags = sys.IOSQE_BUFFER_SELECT
	sqe.Ioprio = sys.IORING_RECV_MULTISHOT
	sqe.SetBufGroup(bufGroup)
	sqe.OpFlags = uint32(flags)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepSendmsg prepares a sendmsg. msg must remain valid until completion.
func PrepSendmsg(fd int, msg *syscall.Msghdr, flags int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_SENDMSG)
	sqe.Fd = int32(fd)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
	sqe.Len = 1
	sqe.OpFlags = uint32(flags)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepRecvmsg prepares a recvmsg. msg must remain valid until completion.
func PrepRecvmsg(fd int, msg *syscall.Msghdr, flags int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_RECVMSG)
	sqe.Fd = int32(fd)
	sqe.Addr = uint64(uintptr(unsafe.Pointer(msg)))
	sqe.Len = 1
	sqe.OpFlags = uint32(flags)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepSocket prepares an async socket() call; the new fd is the CQE
// result on success.
func PrepSocket(domain, typ, protocol int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_SOCKET)
	sqe.Fd = int32(domain)
	sqe.Off = uint64(typ)
	sqe.Len = uint32(protocol)
	return newEntry(sqe, -1, cb, state, opts)
}

// PrepShutdown prepares a shutdown(fd, how).
func PrepShutdown(fd int, how int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_SHUTDOWN)
	sqe.Fd = int32(fd)
	sqe.Len = uint32(how)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepClose prepares a close(fd).
func PrepClose(fd int, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_CLOSE)
	sqe.Fd = int32(fd)
	return newEntry(sqe, int32(fd), cb, state, opts)
}
