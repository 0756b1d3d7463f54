// Package reaper implements the Reaper Pool: the 1..N dedicated threads
// that drive io_uring_enter and dispatch completions (spec §4.4).
package reaper

import (
	"math"

	"github.com/bytedance/gopkg/util/gopool"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/kestrelio/ioring/internal/cqa"
	"github.com/kestrelio/ioring/internal/opool"
	"github.com/kestrelio/ioring/internal/registry"
	"github.com/kestrelio/ioring/internal/sqa"
)

// DispatchMode selects how completion callbacks are invoked.
type DispatchMode int

const (
	// Inline invokes the callback directly on the reaper goroutine.
	// Callbacks that block impair reaper throughput; that is the caller's
	// responsibility, not the ring's.
	Inline DispatchMode = iota
	// Asynchronous hands the callback off to a worker pool so the reaper
	// can keep draining the CQ.
	Asynchronous
)

// DebugFunc receives diagnostic events the ring has no other way to
// surface (the kernel dropped-SQE counter advancing, a non-overflow
// synchronize error). Mirrors the caller-supplied panic handler shape of
// bytedance's gopool.SetPanicHandler.
type DebugFunc func(event string, err error)

// Pool owns N reaper goroutines, one of which (index 0) is the boss that
// performs submit-and-wait; all of them then drain the CQ cooperatively,
// synchronized by a cyclic barrier of party size N.
type Pool struct {
	fd      int
	n       int
	mode    DispatchMode
	barrier *Barrier
	sqa     *sqa.Adapter
	cqa     *cqa.Adapter
	reg     *registry.Registry
	opPool  *opool.Pool
	unblock func() error // signals the parked boss; wraps unblock.Handle.Signal
	workers gopool.Pool
	group   *errgroup.Group
	debug   DebugFunc
}

// Config configures a reaper Pool.
type Config struct {
	Fd       int
	N        int
	Mode     DispatchMode
	SQA      *sqa.Adapter
	CQA      *cqa.Adapter
	Registry *registry.Registry
	OpPool   *opool.Pool
	Unblock  func() error
	Debug    DebugFunc
}

// New constructs (but does not start) a reaper Pool.
func New(cfg Config) *Pool {
	n := cfg.N
	if n < 1 {
		n = 1
	}
	return &Pool{
		fd:      cfg.Fd,
		n:       n,
		mode:    cfg.Mode,
		barrier: NewBarrier(n),
		sqa:     cfg.SQA,
		cqa:     cfg.CQA,
		reg:     cfg.Registry,
		opPool:  cfg.OpPool,
		unblock: cfg.Unblock,
		workers: gopool.NewPool("ioring-reaper-dispatch", math.MaxInt32, gopool.NewConfig()),
		group:   &errgroup.Group{},
		debug:   cfg.Debug,
	}
}

// Start spawns the N reaper goroutines.
func (p *Pool) Start() {
	for i := 0; i < p.n; i++ {
		boss := i == 0
		p.group.Go(func() error {
			return p.run(boss)
		})
	}
}

// Dispose signals the parked boss, breaks the barrier so every reaper
// observes shutdown on its next synchronize/await, and joins all reaper
// goroutines. Disposing an idle ring is guaranteed to terminate every
// reaper (spec §8 invariant 5).
func (p *Pool) Dispose() error {
	if p.unblock != nil {
		if err := p.unblock(); err != nil {
			return err
		}
	}
	p.barrier.Dispose()
	return p.group.Wait()
}

// run is the per-goroutine main loop (spec §4.4 "Main loop per thread").
func (p *Pool) run(boss bool) error {
	for {
		if boss {
			if err := p.synchronize(); err != nil {
				if p.debug != nil {
					p.debug("synchronize-error", err)
				}
			}
		}

		if err := p.barrier.Await(); err != nil {
			// Barrier disposed: shutdown, not a failure.
			return nil
		}

		if err := p.drain(); err != nil {
			if errors.Is(err, cqa.ErrOverflow) {
				if p.debug != nil {
					p.debug("cq-overflow", err)
				}
				// Abort the whole pool, not just this goroutine: break the
				// barrier so siblings parked in (or about to enter) Await
				// unwind instead of waiting forever for a party that will
				// never arrive.
				p.barrier.Dispose()
				return err
			}
			if p.debug != nil {
				p.debug("drain-error", err)
			}
		}
	}
}

// synchronize is the boss's combined publish-and-enter step. When the CQ
// looks empty it arms the unblock handle before blocking, so a producer
// that stages a fresh submission can still pull it out of the kernel.
func (p *Pool) synchronize() error {
	var minComplete uint32
	if p.cqa.IsEmpty() {
		p.sqa.ArmUnblock()
		minComplete = 1
	}

	_, err := p.sqa.SubmitAndWait(p.fd, minComplete)
	if err == sqa.ErrAwaitCompletions {
		// EAGAIN/EBUSY: nothing to wait on right now, the next cycle's
		// drain will pick up whatever is already available.
		return nil
	}
	return err
}

// drain dequeues every currently-available completion, looks each one up in
// the registry, and dispatches its callback. Multiple reapers may call
// drain concurrently after the barrier releases; cqa.TryRead serializes the
// single-event dequeue internally.
func (p *Pool) drain() error {
	for {
		cqe, ok, err := p.cqa.TryRead()
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}

		op, found := p.reg.Remove(cqe.UserData)
		if !found {
			// Documented token-collision/ghost-completion caveat: a
			// completion with no live registry entry is dropped, not
			// fatal.
			continue
		}
		p.dispatch(op, cqe.Res)
	}
}

// dispatch invokes a completed operation's callback per the configured
// DispatchMode and returns the record to the pool exactly once, after the
// callback has run (spec §4.4, §9 "fire-and-forget operation return").
func (p *Pool) dispatch(op *opool.Operation, result int32) {
	switch p.mode {
	case Asynchronous:
		op.Result = result
		p.workers.Go(func() {
			op.Callback(op.State, op.Result)
			p.opPool.Put(op)
		})
	default:
		op.Callback(op.State, result)
		p.opPool.Put(op)
	}
}
