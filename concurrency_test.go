//go:build linux

package ioring

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

// submitNops submits n NOPs, adding each to wg as an N-way completion
// latch; every callback asserts a zero result and marks its slot done,
// asserting against callback-delivered results instead of polled CQEs.
func submitNops(t *testing.T, r *Ring, n int, wg *sync.WaitGroup) {
	t.Helper()
	for i := 0; i < n; i++ {
		wg.Add(1)
		_, err := r.Submit(PrepNop(func(_ any, result int32) {
			assertNopResult(t, result)
			wg.Done()
		}, nil))
		require.NoError(t, err)
	}
}

func assertNopResult(t *testing.T, result int32) {
	t.Helper()
	if result != 0 {
		t.Errorf("nop completion result = %d, want 0", result)
	}
}

func TestSmokeSize8Threads1Inline(t *testing.T) {
	skipIfNoIOURing(t)

	r, err := New(8, WithCompletionThreads(1))
	require.NoError(t, err)
	defer r.Dispose()

	for round := 0; round < 2; round++ {
		var wg sync.WaitGroup
		submitNops(t, r, 6, &wg)

		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-timeoutChan(t):
			t.Fatal("countdown did not complete within the deadline")
		}
	}

	disposeDone := make(chan error, 1)
	go func() { disposeDone <- r.Dispose() }()
	select {
	case err := <-disposeDone:
		require.NoError(t, err)
	case <-timeoutChan(t):
		t.Fatal("Dispose() did not complete within the deadline")
	}
}

func TestSmokeSize8Threads4Async(t *testing.T) {
	skipIfNoIOURing(t)

	r, err := New(8, WithCompletionThreads(4), WithAsyncDispatch())
	require.NoError(t, err)
	defer r.Dispose()

	var wg sync.WaitGroup
	submitNops(t, r, 6, &wg)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-timeoutChan(t):
		t.Fatal("countdown did not complete within the deadline")
	}
}

func TestLargeSize16384Threads4Async(t *testing.T) {
	skipIfNoIOURing(t)
	if testing.Short() {
		t.Skip("skipping large submission volume in short mode")
	}

	r, err := New(16384, WithCompletionThreads(4), WithAsyncDispatch())
	require.NoError(t, err)
	defer r.Dispose()

	const n = 16382
	var completed atomic.Int64
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		_, err := r.Submit(PrepNop(func(_ any, result int32) {
			if result == 0 {
				completed.Add(1)
			}
			wg.Done()
		}, nil))
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-timeoutChan(t):
		t.Fatalf("only %d/%d completions observed before the deadline", completed.Load(), n)
	}
	require.EqualValues(t, n, completed.Load())

	disposeDone := make(chan error, 1)
	go func() { disposeDone <- r.Dispose() }()
	select {
	case err := <-disposeDone:
		require.NoError(t, err)
	case <-timeoutChan(t):
		t.Fatal("Dispose() did not complete within the deadline")
	}
}

func TestLinkedPairs(t *testing.T) {
	skipIfNoIOURing(t)

	r, err := New(8)
	require.NoError(t, err)
	defer r.Dispose()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(2)
		first := PrepNop(func(_ any, result int32) {
			assertNopResult(t, result)
			wg.Done()
		}, nil, WithLink())
		second := PrepNop(func(_ any, result int32) {
			assertNopResult(t, result)
			wg.Done()
		}, nil)

		_, err := r.SubmitBatch([]Entry{first, second})
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-timeoutChan(t):
		t.Fatal("linked pair completions did not all arrive")
	}
}

func TestSubmissionAccountingInvariant(t *testing.T) {
	skipIfNoIOURing(t)

	r, err := New(8, WithCompletionThreads(1))
	require.NoError(t, err)
	defer r.Dispose()

	require.EqualValues(t, r.SubmissionQueueSize(),
		r.SubmissionEntriesUsed()+r.SubmissionEntriesAvailable())

	var wg sync.WaitGroup
	entries := make([]Entry, 8)
	wg.Add(8)
	for i := range entries {
		entries[i] = PrepNop(func(_ any, result int32) {
			assertNopResult(t, result)
			wg.Done()
		}, nil)
	}
	_, err = r.SubmitBatch(entries)
	require.NoError(t, err)

	require.EqualValues(t, r.SubmissionQueueSize(),
		r.SubmissionEntriesUsed()+r.SubmissionEntriesAvailable())

	wg.Wait()
}
