package sqa

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/kestrelio/ioring/internal/opool"
	"github.com/kestrelio/ioring/internal/registry"
	"github.com/kestrelio/ioring/internal/sys"
)

// newTestAdapter builds an Adapter over plain backing arrays, standing in
// for the mmap'd regions the Ring facade would otherwise supply. Capacity
// is fixed at 4 entries (mask 3).
func newTestAdapter() *Adapter {
	var head, tail, flags, dropped uint32
	return New(Config{
		Head:     &head,
		Tail:     &tail,
		Flags:    &flags,
		Dropped:  &dropped,
		Array:    make([]uint32, 4),
		SQEs:     make([]sys.SQE, 4),
		Mask:     3,
		Entries:  4,
		Registry: registry.New(),
		Pool:     opool.New(),
	})
}

func TestStageFillsCapacityThenFull(t *testing.T) {
	a := newTestAdapter()

	for i := 0; i < 4; i++ {
		_, ok := a.Stage(sys.SQE{}, int32(i), func(any, int32) {}, nil)
		require.True(t, ok, "slot %d should have room", i)
	}

	_, ok := a.Stage(sys.SQE{}, 99, func(any, int32) {}, nil)
	require.False(t, ok, "5th stage against a 4-entry ring must report full")
	require.EqualValues(t, 4, a.EntriesUsed())
	require.EqualValues(t, 0, a.EntriesAvailable())
}

func TestStageBatchAllOrNothing(t *testing.T) {
	a := newTestAdapter()

	_, ok := a.Stage(sys.SQE{}, 1, func(any, int32) {}, nil)
	require.True(t, ok)

	// 3 slots remain; a 4-entry batch must not fit, and must leave no trace.
	batch := make([]PreparedEntry, 4)
	for i := range batch {
		batch[i] = PreparedEntry{SQE: sys.SQE{}, Fd: int32(10 + i), Cb: func(any, int32) {}}
	}
	tokens, ok := a.StageBatch(batch)
	require.False(t, ok)
	require.Nil(t, tokens)
	require.EqualValues(t, 1, a.EntriesUsed(), "rejected batch must not partially stage")

	// A 3-entry batch fits exactly in the remaining capacity.
	fit := batch[:3]
	tokens, ok = a.StageBatch(fit)
	require.True(t, ok)
	require.Len(t, tokens, 3)
	require.EqualValues(t, 4, a.EntriesUsed())

	// Now completely full: even a single-entry batch is rejected.
	_, ok = a.StageBatch([]PreparedEntry{{SQE: sys.SQE{}, Fd: 42, Cb: func(any, int32) {}}})
	require.False(t, ok)
}

func TestStageBatchEmptyAlwaysSucceeds(t *testing.T) {
	a := newTestAdapter()
	tokens, ok := a.StageBatch(nil)
	require.True(t, ok)
	require.Nil(t, tokens)
}

// ErrSQFull is the sentinel the sqa package exports for "queue full"; the
// Ring facade maps a false ok return from Stage/StageBatch onto its own
// exported error using this as the documented contract.
func TestErrSQFullSentinel(t *testing.T) {
	require.Error(t, ErrSQFull)
	require.Equal(t, "sqa: submission queue full", ErrSQFull.Error())
}

func TestNotifyAdvancesKernelTailAndReportsDrop(t *testing.T) {
	a := newTestAdapter()

	var dropped uint32 = 3
	var gotDrop uint32
	a.onDrop = func(d uint32) { gotDrop = d }
	a.dropped = &dropped

	_, ok := a.Stage(sys.SQE{}, 1, func(any, int32) {}, nil)
	require.True(t, ok)

	inFlight := a.Notify()
	require.EqualValues(t, 1, inFlight)
	require.EqualValues(t, 1, *a.tail)
	require.EqualValues(t, 3, gotDrop)
}
