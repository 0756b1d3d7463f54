// Package sqa implements the Submission Queue Adapter: the two-phase
// staging/publish protocol over the mmap'd SQ ring described in spec §4.1.
//
// All mutating operations serialize on a single monitor (Adapter.mu); this
// mirrors the teacher's sqLock discipline in ring.go (getSQE/GetSQE/Prep*),
// generalized so staging also allocates a user-data token and registers the
// operation instead of trusting the caller's user_data.
package sqa

import (
	"sync"
	"sync/atomic"

	"golang.org/x/sys/unix"

	"github.com/kestrelio/ioring/internal/opool"
	"github.com/kestrelio/ioring/internal/registry"
	"github.com/kestrelio/ioring/internal/sys"
)

// ErrSQFull is the sentinel for "the queue has no room". Stage/StageBatch
// themselves report a full queue as ok=false; the Ring facade turns that
// into the exported ioring.ErrSQFull.
var ErrSQFull = sqFullError{}

type sqFullError struct{}

func (sqFullError) Error() string { return "sqa: submission queue full" }

// ErrAwaitCompletions is the non-error intermediate result from
// SubmitAndWait meaning the kernel returned EAGAIN/EBUSY: the caller should
// drain completions via the CQA and retry (spec §4.1, §7).
var ErrAwaitCompletions = sqAwaitError{}

type sqAwaitError struct{}

func (sqAwaitError) Error() string { return "sqa: await completions and retry" }

// Adapter wraps the mmap'd SQ ring. Construct via New once the ring is
// mapped, then call Stage/StageBatch from any number of producer goroutines
// and Notify/ShouldEnter from the boss reaper.
type Adapter struct {
	mu sync.Mutex

	head    *uint32 // kernel-visible head (mmap'd)
	tail    *uint32 // kernel-visible tail (mmap'd)
	flags   *uint32 // SQ_NEED_WAKEUP et al (mmap'd)
	dropped *uint32 // kernel drop counter (mmap'd)
	array   []uint32
	sqes    []sys.SQE
	mask    uint32
	entries uint32

	tailInternal uint32 // next unstaged slot; advances on every successful stage
	headInternal uint32 // next unpublished slot; advances in Notify

	sqPolled bool // IORING_SETUP_SQPOLL is in effect

	reg  *registry.Registry
	pool *opool.Pool

	shouldUnblock bool
	unblockFn     func()

	onDrop func(dropped uint32)
}

// Config carries the mmap'd ring pointers/slices computed by the Ring
// facade's mapRings step.
type Config struct {
	Head, Tail, Flags, Dropped *uint32
	Array                      []uint32
	SQEs                       []sys.SQE
	Mask, Entries              uint32
	SQPolled                   bool
	Registry                   *registry.Registry
	Pool                       *opool.Pool
	// UnblockFn is called (after the lock is released) whenever a staged
	// submission discharges a pending should-unblock request.
	UnblockFn func()
	// OnDrop, if non-nil, is invoked when the kernel's dropped counter
	// advances. There is no recovery path; well-formed SQEs never drop.
	OnDrop func(dropped uint32)
}

// New constructs an Adapter from cfg.
func New(cfg Config) *Adapter {
	return &Adapter{
		head:         cfg.Head,
		tail:         cfg.Tail,
		flags:        cfg.Flags,
		dropped:      cfg.Dropped,
		array:        cfg.Array,
		sqes:         cfg.SQEs,
		mask:         cfg.Mask,
		entries:      cfg.Entries,
		sqPolled:     cfg.SQPolled,
		reg:          cfg.Registry,
		pool:         cfg.Pool,
		unblockFn:    cfg.UnblockFn,
		onDrop:       cfg.OnDrop,
		headInternal: atomic.LoadUint32(cfg.Head),
		tailInternal: atomic.LoadUint32(cfg.Tail),
	}
}

// effectiveHead returns the head value staging should measure capacity
// against: the kernel's own head when SQPOLL is active (the kernel
// maintains visibility itself), otherwise the adapter's tracked
// headInternal. Caller must hold mu.
func (a *Adapter) effectiveHead() uint32 {
	if a.sqPolled {
		return atomic.LoadUint32(a.head)
	}
	return a.headInternal
}

// Stage stages one prepared SQE, assigns it a user-data token derived from
// fd and the current internal tail, inserts the pending operation into the
// registry, and returns the token. ok is false (queue full) if there is no
// room; in that case nothing is mutated.
func (a *Adapter) Stage(sqe sys.SQE, fd int32, cb opool.Callback, state any) (token uint64, ok bool) {
	a.mu.Lock()

	next := a.tailInternal + 1
	if next-a.effectiveHead() > a.entries {
		a.mu.Unlock()
		return 0, false
	}

	token = (uint64(uint32(fd)) << 32) | uint64(a.tailInternal)
	sqe.UserData = token

	idx := a.tailInternal & a.mask
	a.sqes[idx] = sqe
	a.array[idx] = idx

	op := a.pool.Get(cb, state)
	op.Token = token
	a.reg.Insert(token, op)

	a.tailInternal = next

	unblock := a.shouldUnblock
	if unblock {
		a.shouldUnblock = false
	}
	a.mu.Unlock()

	if unblock && a.unblockFn != nil {
		a.unblockFn()
	}
	return token, true
}

// PreparedEntry is one element of a StageBatch call: an encoded SQE plus
// the fd used for its token and the callback/state pair to register.
type PreparedEntry struct {
	SQE   sys.SQE
	Fd    int32
	Cb    opool.Callback
	State any
}

// StageBatch stages every entry in ops as a single atomic group: if the
// batch does not fit as a whole, none of it is staged. This is what makes
// linked chains (IOSQE_IO_LINK) safe — partial staging would leave a chain
// malformed with no way to unwind it.
func (a *Adapter) StageBatch(ops []PreparedEntry) (tokens []uint64, ok bool) {
	if len(ops) == 0 {
		return nil, true
	}

	a.mu.Lock()

	next := a.tailInternal + uint32(len(ops))
	if next-a.effectiveHead() > a.entries {
		a.mu.Unlock()
		return nil, false
	}

	tokens = make([]uint64, len(ops))
	tail := a.tailInternal
	for i, entry := range ops {
		token := (uint64(uint32(entry.Fd)) << 32) | uint64(tail)
		sqe := entry.SQE
		sqe.UserData = token

		idx := tail & a.mask
		a.sqes[idx] = sqe
		a.array[idx] = idx

		op := a.pool.Get(entry.Cb, entry.State)
		op.Token = token
		a.reg.Insert(token, op)

		tokens[i] = token
		tail++
	}
	a.tailInternal = tail

	unblock := a.shouldUnblock
	if unblock {
		a.shouldUnblock = false
	}
	a.mu.Unlock()

	if unblock && a.unblockFn != nil {
		a.unblockFn()
	}
	return tokens, true
}

// Notify publishes every staged-but-unpublished entry to the kernel-visible
// array and advances the kernel tail with release ordering. Returns the
// kernel's own view of entries still in flight (tail - head), which is what
// the boss reaper passes as to_submit to io_uring_enter.
func (a *Adapter) Notify() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()

	tail := atomic.LoadUint32(a.tail)
	for a.headInternal != a.tailInternal {
		idx := a.headInternal & a.mask
		a.array[tail&a.mask] = idx
		tail++
		a.headInternal++
	}
	atomic.StoreUint32(a.tail, tail)

	if d := atomic.LoadUint32(a.dropped); d != 0 && a.onDrop != nil {
		a.onDrop(d)
	}

	head := atomic.LoadUint32(a.head)
	return tail - head
}

// ShouldEnter reports whether io_uring_enter must actually be called, and
// with which additional IORING_ENTER_* flags. When SQPOLL is not active the
// kernel never submits on its own, so enter is always required.
func (a *Adapter) ShouldEnter() (enter bool, flags uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.sqPolled {
		return true, 0
	}
	if atomic.LoadUint32(a.flags)&sys.IORING_SQ_NEED_WAKEUP != 0 {
		return true, sys.IORING_ENTER_SQ_WAKEUP
	}
	return false, 0
}

// ArmUnblock marks that the next producer to stage a submission should wake
// a parked reaper after publishing. Called by the boss reaper's
// synchronize step when it finds nothing to submit and is about to block in
// io_uring_enter.
func (a *Adapter) ArmUnblock() {
	a.mu.Lock()
	a.shouldUnblock = true
	a.mu.Unlock()
}

// EntriesUsed returns the number of SQ slots currently occupied, measured
// against effectiveHead: without SQPOLL, staged entries that Notify has not
// yet published; with SQPOLL, entries the kernel has not yet consumed.
func (a *Adapter) EntriesUsed() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.tailInternal - a.effectiveHead()
}

// EntriesAvailable returns the remaining SQ capacity.
func (a *Adapter) EntriesAvailable() uint32 {
	return a.entries - a.EntriesUsed()
}

// Entries returns the total submission queue size.
func (a *Adapter) Entries() uint32 {
	return a.entries
}

// SubmitAndWait is the boss reaper's combined publish-and-enter step: it
// calls Notify, decides (via ShouldEnter) whether a syscall is even needed,
// and if so calls io_uring_enter(fd, to_submit, minComplete, flags),
// retrying in place on EINTR and reporting ErrAwaitCompletions on
// EAGAIN/EBUSY (spec §4.1, §7).
func (a *Adapter) SubmitAndWait(fd int, minComplete uint32) (int, error) {
	toSubmit := a.Notify()

	enter, flags := a.ShouldEnter()
	if minComplete > 0 {
		flags |= sys.IORING_ENTER_GETEVENTS
		enter = true
	}
	if !enter {
		return 0, nil
	}

	for {
		n, err := sys.Enter(fd, toSubmit, minComplete, flags, nil)
		if err == nil {
			return n, nil
		}
		if err == unix.EINTR {
			continue
		}
		if err == unix.EAGAIN || err == unix.EBUSY {
			return 0, ErrAwaitCompletions
		}
		return 0, err
	}
}
