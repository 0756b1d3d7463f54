//go:build linux

package ioring

import "github.com/kestrelio/ioring/internal/sys"

// PrepPollAdd prepares a poll on fd for pollMask (POLLIN, POLLOUT, ...).
func PrepPollAdd(fd int, pollMask uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_POLL_ADD)
	sqe.Fd = int32(fd)
	sqe.OpFlags = pollMask
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepPollAddMultishot prepares a multishot poll: the callback fires once
// per matching event until explicitly removed with PrepPollRemove.
func PrepPollAddMultishot(fd int, pollMask uint32, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_POLL_ADD)
	sqe.Fd = int32(fd)
	sqe.OpFlags = pollMask
	sqe.Len = uint32(sys.IORING_POLL_ADD_MULTI)
	return newEntry(sqe, int32(fd), cb, state, opts)
}

// PrepPollRemove prepares removal of a previously staged poll, identified
// by the token Submit returned for it.
func PrepPollRemove(target uint64, cb Callback, state any, opts ...SubmitOption) Entry {
	var sqe sys.SQE
	sqe.Opcode = uint8(sys.IORING_OP_POLL_REMOVE)
	sqe.Fd = -1
	sqe.Addr = target
	return newEntry(sqe, -1, cb, state, opts)
}
