// Package runner bounds slow external calls (knowledge retrieval, LLM
// completions) with a fixed worker pool and a hard deadline, so one hung
// dependency cannot stall the whole request path.
package runner

import (
	"context"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// ErrTimeout is returned when a submitted task misses its deadline. Matched
// with errors.Is by callers that treat timeout as a recoverable failure.
var ErrTimeout = goerr.New("operation timed out")

type task func()

// Pool is a fixed-size worker pool. Tasks that time out are abandoned: the
// context handed to the function is canceled, but a function that ignores
// cancellation keeps its worker busy until it returns and its result is
// discarded.
type Pool struct {
	tasks chan task
}

// New starts a pool with the given number of workers (minimum 1).
func New(workers int) *Pool {
	if workers < 1 {
		workers = 1
	}

	p := &Pool{
		tasks: make(chan task),
	}
	for range workers {
		go p.worker()
	}
	return p
}

func (p *Pool) worker() {
	for fn := range p.tasks {
		fn()
	}
}

type result[T any] struct {
	value T
	err   error
}

// Run executes fn on the pool and waits for its result at most timeout.
// Submission itself also counts against the deadline: if every worker is busy
// until the deadline passes, Run fails with ErrTimeout without executing fn.
// Cancellation of an in-flight fn is advisory, via its context.
func Run[T any](ctx context.Context, p *Pool, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	var zero T

	taskCtx, cancel := context.WithCancel(ctx)
	done := make(chan result[T], 1)
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	wrapped := func() {
		value, err := fn(taskCtx)
		done <- result[T]{value: value, err: err}
		cancel()
	}

	select {
	case p.tasks <- wrapped:
	case <-timer.C:
		cancel()
		return zero, goerr.Wrap(ErrTimeout, "worker pool saturated", goerr.V("timeout", timeout))
	case <-ctx.Done():
		cancel()
		return zero, goerr.Wrap(ctx.Err(), "canceled before execution")
	}

	select {
	case res := <-done:
		return res.value, res.err
	case <-timer.C:
		cancel()
		return zero, goerr.Wrap(ErrTimeout, "deadline exceeded", goerr.V("timeout", timeout))
	case <-ctx.Done():
		cancel()
		return zero, goerr.Wrap(ctx.Err(), "canceled while waiting")
	}
}
