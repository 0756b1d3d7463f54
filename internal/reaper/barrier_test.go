package reaper

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBarrierReleasesTogether(t *testing.T) {
	const parties = 4
	b := NewBarrier(parties)

	var wg sync.WaitGroup
	released := make(chan int, parties)
	wg.Add(parties)
	for i := 0; i < parties; i++ {
		go func(id int) {
			defer wg.Done()
			require.NoError(t, b.Await())
			released <- id
		}(i)
	}

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("not all parties released")
	}
	close(released)
	require.Len(t, released, parties)
}

func TestBarrierCyclesAcrossGenerations(t *testing.T) {
	const parties = 3
	b := NewBarrier(parties)

	for cycle := 0; cycle < 3; cycle++ {
		var wg sync.WaitGroup
		wg.Add(parties)
		for i := 0; i < parties; i++ {
			go func() {
				defer wg.Done()
				require.NoError(t, b.Await())
			}()
		}
		done := make(chan struct{})
		go func() { wg.Wait(); close(done) }()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("cycle %d did not release", cycle)
		}
	}
}

func TestBarrierDisposeReleasesWaiters(t *testing.T) {
	const parties = 3
	b := NewBarrier(parties)

	errs := make(chan error, parties-1)
	for i := 0; i < parties-1; i++ {
		go func() { errs <- b.Await() }()
	}

	// Give the waiters a chance to actually park before disposing.
	time.Sleep(50 * time.Millisecond)
	b.Dispose()

	for i := 0; i < parties-1; i++ {
		select {
		case err := <-errs:
			require.ErrorIs(t, err, ErrBarrierDisposed)
		case <-time.After(2 * time.Second):
			t.Fatal("waiter did not observe dispose")
		}
	}

	require.ErrorIs(t, b.Await(), ErrBarrierDisposed)
}
