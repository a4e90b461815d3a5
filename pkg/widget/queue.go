package widget

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// job is one queued submission.
type job struct {
	name       string
	run        func() error
	done       chan error
	enqueuedAt time.Time
}

// submitQueue runs submissions one at a time in enqueue order, so responses
// are applied in the order the user sent them.
type submitQueue struct {
	mu      sync.Mutex
	pending []job
	running string
	stopped bool
	signal  chan struct{}
}

func newSubmitQueue() *submitQueue {
	return &submitQueue{signal: make(chan struct{}, 1)}
}

func (q *submitQueue) enqueue(name string, run func() error) <-chan error {
	j := job{name: name, run: run, done: make(chan error, 1), enqueuedAt: time.Now()}
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		j.done <- ErrStopped
		close(j.done)
		return j.done
	}
	q.pending = append(q.pending, j)
	depth := len(q.pending)
	q.mu.Unlock()

	select {
	case q.signal <- struct{}{}:
	default:
	}
	log.Debug().Str("component", "widget").Str("job", name).Int("depth", depth).Msg("submission queued")
	return j.done
}

func (q *submitQueue) dequeue() (job, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.pending) == 0 {
		q.running = ""
		return job{}, false
	}
	j := q.pending[0]
	q.pending = q.pending[1:]
	q.running = j.name
	return j, true
}

// Len is the number of submissions waiting, excluding the running one.
func (q *submitQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// Busy reports whether a submission is being processed.
func (q *submitQueue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running != ""
}

// run processes submissions until ctx is cancelled. Submissions still
// pending at that point complete with ctx.Err().
func (q *submitQueue) run(ctx context.Context) error {
	for {
		for {
			j, ok := q.dequeue()
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				j.done <- err
				close(j.done)
				continue
			}
			err := j.run()
			log.Debug().Str("component", "widget").Str("job", j.name).
				Dur("waited", time.Since(j.enqueuedAt)).AnErr("error", err).Msg("submission finished")
			j.done <- err
			close(j.done)
		}

		select {
		case <-ctx.Done():
			q.mu.Lock()
			q.stopped = true
			q.mu.Unlock()
			q.drain(ctx.Err())
			return nil
		case <-q.signal:
		}
	}
}

func (q *submitQueue) drain(err error) {
	for {
		j, ok := q.dequeue()
		if !ok {
			return
		}
		j.done <- err
		close(j.done)
	}
}
