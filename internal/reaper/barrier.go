package reaper

import (
	"sync"

	"github.com/pkg/errors"
)

// ErrBarrierDisposed is returned by Barrier.Await once the barrier has been
// disposed; reapers treat it as the shutdown signal (spec §4.4 "Shutdown").
var ErrBarrierDisposed = errors.New("reaper: barrier disposed")

// Barrier is a cyclic barrier for a fixed party size: Await blocks until
// every party has called it, then releases all of them together and resets
// for the next cycle. There is no off-the-shelf cyclic barrier in the
// example corpus, so this is a direct sync.Cond generation-counter
// implementation — the standard Go idiom for this primitive.
type Barrier struct {
	mu      sync.Mutex
	cond    *sync.Cond
	parties int
	waiting int
	gen     uint64
	broken  bool
}

// NewBarrier returns a barrier for the given party count. parties must be
// >= 1.
func NewBarrier(parties int) *Barrier {
	b := &Barrier{parties: parties}
	b.cond = sync.NewCond(&b.mu)
	return b
}

// Await blocks the calling goroutine until `parties` goroutines have called
// Await in the same generation, then releases them all at once. Returns
// ErrBarrierDisposed if the barrier was (or becomes, while waiting)
// disposed.
func (b *Barrier) Await() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.broken {
		return ErrBarrierDisposed
	}

	gen := b.gen
	b.waiting++
	if b.waiting == b.parties {
		b.waiting = 0
		b.gen++
		b.cond.Broadcast()
		return nil
	}

	for gen == b.gen && !b.broken {
		b.cond.Wait()
	}
	if b.broken {
		return ErrBarrierDisposed
	}
	return nil
}

// Dispose permanently breaks the barrier, releasing every goroutine
// currently or later blocked in Await with ErrBarrierDisposed.
func (b *Barrier) Dispose() {
	b.mu.Lock()
	b.broken = true
	b.cond.Broadcast()
	b.mu.Unlock()
}
