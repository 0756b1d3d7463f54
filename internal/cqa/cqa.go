// Package cqa implements the Completion Queue Adapter: dequeuing completion
// events from the mmap'd CQ ring, described in spec §4.2.
package cqa

import (
	"sync"
	"sync/atomic"

	"github.com/kestrelio/ioring/internal/sys"
)

// ErrOverflow is returned once the kernel's CQ overflow counter advances.
// It is terminal: the registry may have lost entries whose callbacks will
// never fire.
var ErrOverflow = overflowError{}

type overflowError struct{}

func (overflowError) Error() string { return "cqa: completion queue overflow" }

// Adapter wraps the mmap'd CQ ring.
type Adapter struct {
	mu sync.Mutex

	head     *uint32
	tail     *uint32
	overflow *uint32
	cqes     []sys.CQE
	mask     uint32
	entries  uint32

	ioPolled bool
	// pollEnter is called with (minComplete=0, IORING_ENTER_GETEVENTS) to
	// let the kernel reap IOPOLL-driven completions when the ring looks
	// empty. Nil when IOPOLL is not in effect.
	pollEnter func() error
}

// Config carries the mmap'd CQ pointers/slices from the Ring facade.
type Config struct {
	Head, Tail, Overflow *uint32
	CQEs                 []sys.CQE
	Mask, Entries        uint32
	IOPolled             bool
	PollEnter            func() error
}

// New constructs an Adapter from cfg.
func New(cfg Config) *Adapter {
	return &Adapter{
		head:      cfg.Head,
		tail:      cfg.Tail,
		overflow:  cfg.Overflow,
		cqes:      cfg.CQEs,
		mask:      cfg.Mask,
		entries:   cfg.Entries,
		ioPolled:  cfg.IOPolled,
		pollEnter: cfg.PollEnter,
	}
}

// TryRead dequeues one completion without blocking. ok is false if the ring
// is empty. err is ErrOverflow if the ring is non-empty and the kernel has
// dropped completions; in that case no CQE is returned since the ring can
// no longer be trusted to have one corresponding to a live registry entry.
// An empty ring reports ok=false with a nil error even once the overflow
// counter has advanced.
func (a *Adapter) TryRead() (cqe sys.CQE, ok bool, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	head := atomic.LoadUint32(a.head)
	tail := atomic.LoadUint32(a.tail)

	if head == tail && a.ioPolled && a.pollEnter != nil {
		if perr := a.pollEnter(); perr != nil {
			return sys.CQE{}, false, perr
		}
		tail = atomic.LoadUint32(a.tail)
	}

	if head == tail {
		return sys.CQE{}, false, nil
	}

	if ov := atomic.LoadUint32(a.overflow); ov != 0 {
		return sys.CQE{}, false, ErrOverflow
	}

	cqe = a.cqes[head&a.mask]
	atomic.StoreUint32(a.head, head+1)
	return cqe, true, nil
}

// IsEmpty reports whether the CQ currently has no undrained completions.
// Used by the boss reaper to decide whether to request GETEVENTS.
func (a *Adapter) IsEmpty() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return atomic.LoadUint32(a.head) == atomic.LoadUint32(a.tail)
}

// Ready returns the number of undrained completions.
func (a *Adapter) Ready() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return atomic.LoadUint32(a.tail) - atomic.LoadUint32(a.head)
}

// Entries returns the total completion queue size.
func (a *Adapter) Entries() uint32 {
	return a.entries
}
