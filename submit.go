//go:build linux

package ioring

import (
	"github.com/kestrelio/ioring/internal/sqa"
	"github.com/kestrelio/ioring/internal/sys"
)

// Entry is one operation prepared by a Prep* function but not yet staged
// against the ring. Build a batch of Entry values and call SubmitBatch to
// stage a linked chain atomically, or pass a single Entry to Submit.
type Entry = sqa.PreparedEntry

// SubmitOption modifies the IOSQE_* flags of a prepared Entry. Apply with
// the variadic opts parameter every Prep* function accepts.
type SubmitOption func(*sys.SQE)

// WithLink chains this entry to the one staged immediately after it: the
// next entry only executes once this one completes, and a failure here
// cancels the rest of the chain.
func WithLink() SubmitOption {
	return func(s *sys.SQE) { s.Flags |= sys.IOSQE_IO_LINK }
}

// WithHardlink is WithLink, except the chain continues even if this entry
// fails.
func WithHardlink() SubmitOption {
	return func(s *sys.SQE) { s.Flags |= sys.IOSQE_IO_HARDLINK }
}

// WithDrain delays this entry until every previously submitted entry has
// completed.
func WithDrain() SubmitOption {
	return func(s *sys.SQE) { s.Flags |= sys.IOSQE_IO_DRAIN }
}

// WithAsync forces this entry onto the kernel's async worker pool instead
// of attempting non-blocking inline completion first.
func WithAsync() SubmitOption {
	return func(s *sys.SQE) { s.Flags |= sys.IOSQE_ASYNC }
}

// WithSkipSuccess suppresses the CQE for this entry when it succeeds. A
// failing entry still produces one.
func WithSkipSuccess() SubmitOption {
	return func(s *sys.SQE) { s.Flags |= sys.IOSQE_CQE_SKIP_SUCCESS }
}

// WithFixedFile interprets the entry's fd as an index into a previously
// registered file table rather than a raw descriptor.
func WithFixedFile() SubmitOption {
	return func(s *sys.SQE) { s.Flags |= sys.IOSQE_FIXED_FILE }
}

func newEntry(sqe sys.SQE, fd int32, cb Callback, state any, opts []SubmitOption) Entry {
	for _, opt := range opts {
		opt(&sqe)
	}
	return Entry{SQE: sqe, Fd: fd, Cb: cb, State: state}
}

// Submit stages a single Entry against the ring and returns the token the
// eventual completion will be matched against internally. The token is
// also what PrepCancel, PrepPollRemove and PrepTimeoutRemove take to
// target this operation.
func (r *Ring) Submit(e Entry) (uint64, error) {
	if r.closed.Load() {
		return 0, ErrRingDisposed
	}
	token, ok := r.sqa.Stage(e.SQE, e.Fd, e.Cb, e.State)
	if !ok {
		return 0, ErrSQFull
	}
	return token, nil
}

// SubmitBatch stages every entry in entries as one atomic group: either
// all of them fit in the available submission queue space or none are
// staged. Use this for linked chains built with WithLink/WithHardlink,
// since partially staging a chain would leave it malformed.
func (r *Ring) SubmitBatch(entries []Entry) ([]uint64, error) {
	if r.closed.Load() {
		return nil, ErrRingDisposed
	}
	tokens, ok := r.sqa.StageBatch(entries)
	if !ok {
		return nil, ErrSQFull
	}
	return tokens, nil
}
