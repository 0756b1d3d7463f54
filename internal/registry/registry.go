// Package registry implements the Pending Registry: a concurrent mapping
// from 64-bit user-data tokens to operation records, populated at staging
// and drained at completion.
//
// Grounded on the map+RWMutex userData table in
// other_examples/f5ca18d3_paulcacheux-iouring-go__iouring.go.go
// (IOURing.userDatas / userDataLock), generalized to hold typed
// *opool.Operation records instead of that package's *UserData.
package registry

import (
	"sync"

	"github.com/kestrelio/ioring/internal/opool"
)

// Registry is a concurrent token -> *opool.Operation map. Safe for
// concurrent Insert/Remove/Len from any number of producer and reaper
// goroutines.
type Registry struct {
	mu  sync.RWMutex
	ops map[uint64]*opool.Operation
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{ops: make(map[uint64]*opool.Operation)}
}

// Insert records op under token. Called by the SQA while staging, before
// the SQE becomes kernel-visible.
func (r *Registry) Insert(token uint64, op *opool.Operation) {
	r.mu.Lock()
	r.ops[token] = op
	r.mu.Unlock()
}

// Remove deletes and returns the operation for token, if present. Called by
// exactly one reaper per completion; a missing token is reported via ok=false
// rather than panicking, per the documented token-collision caveat.
func (r *Registry) Remove(token uint64) (op *opool.Operation, ok bool) {
	r.mu.Lock()
	op, ok = r.ops[token]
	if ok {
		delete(r.ops, token)
	}
	r.mu.Unlock()
	return op, ok
}

// Len returns the number of pending (staged, not yet completed) operations.
// Exposed through Ring.PendingOperations, for the "pending registry entries
// equal staged-but-not-completed tokens" testable invariant.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.ops)
}
