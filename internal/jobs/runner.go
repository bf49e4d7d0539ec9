// Package jobs provides a single-worker background job runner. Work is
// executed strictly in submission order on one dedicated goroutine, and
// completions are handed back over a channel so that callbacks run on
// whichever loop owns the runner, never on the worker.
package jobs

import (
	"fmt"
	"log"
	"sync"
)

// Work is a unit of background work. It runs on the worker goroutine.
type Work func() (any, error)

// Done receives the outcome of a job. The runner guarantees it is invoked
// from the loop draining Completions, not from the worker.
type Done func(result any, err error)

// Completion carries a finished job's outcome back to the owning loop.
type Completion struct {
	onDone Done
	result any
	err    error
}

// Deliver invokes the job's callback with its outcome. A panicking callback
// is logged and swallowed; callback code is UI glue outside our control and
// must not take the loop down.
func (c Completion) Deliver() {
	if c.onDone == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Printf("jobs: completion callback panicked: %v", r)
		}
	}()
	c.onDone(c.result, c.err)
}

// Err returns the job's error, for loops that inspect outcomes without a
// callback.
func (c Completion) Err() error { return c.err }

// Runner executes submitted jobs one at a time in FIFO order. Two jobs
// submitted in order A, B start in order A, B; delivery of A's completion is
// queued separately and may interleave with other loop events.
type Runner struct {
	mu      sync.Mutex
	queue   []job
	wake    chan struct{}
	done    chan struct{}
	results chan Completion
	once    sync.Once
}

type job struct {
	work   Work
	onDone Done
}

// NewRunner creates a runner and starts its worker goroutine.
func NewRunner() *Runner {
	r := &Runner{
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		results: make(chan Completion, 64),
	}
	go r.loop()
	return r
}

// Submit enqueues work and returns immediately. The queue is unbounded;
// the producer never blocks on a slow worker.
func (r *Runner) Submit(work Work, onDone Done) {
	r.mu.Lock()
	r.queue = append(r.queue, job{work: work, onDone: onDone})
	r.mu.Unlock()
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Completions is the delivery channel. The loop that owns application state
// must receive from it and call Deliver on each value.
func (r *Runner) Completions() <-chan Completion {
	return r.results
}

// Stop shuts the worker down after the currently running job, if any,
// finishes. Queued but unstarted jobs are dropped. Safe to call more than
// once.
func (r *Runner) Stop() {
	r.once.Do(func() { close(r.done) })
}

func (r *Runner) loop() {
	for {
		j, ok := r.next()
		if !ok {
			select {
			case <-r.wake:
				continue
			case <-r.done:
				return
			}
		}

		result, err := runSafely(j.work)

		// Block until the owning loop takes delivery or the runner stops;
		// the worker itself never invokes onDone.
		select {
		case r.results <- Completion{onDone: j.onDone, result: result, err: err}:
		case <-r.done:
			return
		}
	}
}

func (r *Runner) next() (job, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return job{}, false
	}
	j := r.queue[0]
	r.queue = r.queue[1:]
	return j, true
}

// runSafely executes work, converting a panic into an ordinary job error so
// one failing job can never kill the worker.
func runSafely(work Work) (result any, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("job panicked: %v", r)
		}
	}()
	return work()
}
