//go:build linux

package ioring

import (
	"github.com/kestrelio/ioring/internal/reaper"
	"github.com/kestrelio/ioring/internal/sys"
)

// config collects everything the functional Options below can tune before
// New() calls sys.Setup.
type config struct {
	params            sys.Params
	completionThreads int
	mode              reaper.DispatchMode
	debug             reaper.DebugFunc
}

func defaultConfig() *config {
	return &config{
		completionThreads: 1,
		mode:              reaper.Inline,
	}
}

// Option configures ring setup and reaper behavior.
type Option func(*config)

// WithSQPoll enables kernel-side SQ polling.
// This eliminates syscalls for submission but requires CAP_SYS_NICE
// or a recent kernel with io_uring permissions.
func WithSQPoll() Option {
	return func(c *config) { c.params.Flags |= sys.IORING_SETUP_SQPOLL }
}

// WithSQPollCPU pins the SQPOLL kernel thread to a specific CPU.
// Must be used with WithSQPoll.
func WithSQPollCPU(cpu uint32) Option {
	return func(c *config) {
		c.params.Flags |= sys.IORING_SETUP_SQ_AFF
		c.params.SQThreadCPU = cpu
	}
}

// WithSQPollIdle sets the idle timeout (milliseconds) for the SQPOLL
// thread.
func WithSQPollIdle(ms uint32) Option {
	return func(c *config) { c.params.SQThreadIdle = ms }
}

// WithIOPoll enables I/O polling for completions.
// Only works with file descriptors that support polling (e.g., NVMe).
func WithIOPoll() Option {
	return func(c *config) { c.params.Flags |= sys.IORING_SETUP_IOPOLL }
}

// WithCQSize sets a custom completion queue size.
// By default CQ size is 2x SQ size.
func WithCQSize(size uint32) Option {
	return func(c *config) {
		c.params.Flags |= sys.IORING_SETUP_CQSIZE
		c.params.CQEntries = size
	}
}

// WithSingleIssuer indicates only one task will submit to this ring.
// Enables optimizations in the kernel.
func WithSingleIssuer() Option {
	return func(c *config) { c.params.Flags |= sys.IORING_SETUP_SINGLE_ISSUER }
}

// WithDeferTaskrun defers task work until the next io_uring_enter call.
// Requires SINGLE_ISSUER.
func WithDeferTaskrun() Option {
	return func(c *config) {
		c.params.Flags |= sys.IORING_SETUP_DEFER_TASKRUN | sys.IORING_SETUP_SINGLE_ISSUER
	}
}

// WithCoopTaskrun enables cooperative task running.
func WithCoopTaskrun() Option {
	return func(c *config) { c.params.Flags |= sys.IORING_SETUP_COOP_TASKRUN }
}

// WithFlags sets arbitrary additional setup flags.
func WithFlags(flags uint32) Option {
	return func(c *config) { c.params.Flags |= flags }
}

// WithCompletionThreads sets the size of the reaper pool (N >= 1). Thread
// 0 of the pool is always the boss that performs io_uring_enter.
func WithCompletionThreads(n int) Option {
	return func(c *config) {
		if n < 1 {
			n = 1
		}
		c.completionThreads = n
	}
}

// WithAsyncDispatch switches completion dispatch from inline (on the
// reaper goroutine) to asynchronous (handed to a worker pool), matching
// spec §4.4's run_continuations_asynchronously option.
func WithAsyncDispatch() Option {
	return func(c *config) { c.mode = reaper.Asynchronous }
}

// WithDebugHandler installs a hook for diagnostic events the ring has no
// other way to surface, notably the kernel's dropped-SQE counter
// advancing. The default is a no-op, matching the teacher's zero-logging
// posture.
func WithDebugHandler(f func(event string, err error)) Option {
	return func(c *config) { c.debug = f }
}
