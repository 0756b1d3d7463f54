// Package opool implements the Operation Pool: a freelist of reusable
// operation records. It owns no payload buffers, only the
// callback/state/result triple a completion is dispatched through.
package opool

import "sync"

// Callback is invoked on completion with the caller-supplied state and the
// kernel's CQE result (a non-negative byte count/value, or a negated errno).
type Callback func(state any, result int32)

// Operation is mutable and, per the ring's single-owner invariant, reachable
// from exactly one of {Registry, Pool, the in-flight dispatch path} at a
// time.
type Operation struct {
	Callback Callback
	State    any
	Result   int32

	// Token is set by the SQA at staging time and left in place through
	// dispatch purely for diagnostics; it is not used as a pool key.
	Token uint64
}

// Pool is a sync.Pool-backed freelist of *Operation records.
type Pool struct {
	free sync.Pool
}

// New returns an empty operation pool.
func New() *Pool {
	p := &Pool{}
	p.free.New = func() any { return &Operation{} }
	return p
}

// Get returns a record configured with cb/state, either recycled from the
// freelist or freshly allocated.
func (p *Pool) Get(cb Callback, state any) *Operation {
	op := p.free.Get().(*Operation)
	op.Callback = cb
	op.State = state
	op.Result = 0
	op.Token = 0
	return op
}

// Put clears and returns a record to the freelist. Callers must not touch
// op after calling Put; the record may be handed to another Get
// concurrently.
func (p *Pool) Put(op *Operation) {
	op.Callback = nil
	op.State = nil
	op.Result = 0
	op.Token = 0
	p.free.Put(op)
}
