// Package executor provides a bounded worker pool with an explicit saturation
// policy: when the queue is full, the submitted task runs on the caller's
// goroutine instead of being dropped. Pools are constructed and sized
// explicitly and passed to their consumers, never shared as globals.
package executor

import (
	"sync"

	"golang.org/x/sync/errgroup"
)

// Pool runs tasks on a fixed set of workers fed by a fixed-size queue.
type Pool struct {
	name      string
	queue     chan func()
	group     *errgroup.Group
	closeOnce sync.Once
}

// New starts a pool with the given worker count and queue capacity.
// Both must be at least 1; smaller values are clamped.
func New(name string, workers, queueSize int) *Pool {
	if workers < 1 {
		workers = 1
	}
	if queueSize < 1 {
		queueSize = 1
	}

	p := &Pool{
		name:  name,
		queue: make(chan func(), queueSize),
		group: new(errgroup.Group),
	}
	for range workers {
		p.group.Go(p.work)
	}
	return p
}

func (p *Pool) work() error {
	for task := range p.queue {
		task()
	}
	return nil
}

// Do submits a task for execution. If the queue is saturated the task runs
// synchronously on the caller's goroutine, so no submission is ever lost.
// Returns true when the task was handed to a worker, false when it ran inline.
func (p *Pool) Do(task func()) bool {
	select {
	case p.queue <- task:
		return true
	default:
		task()
		return false
	}
}

// Close stops accepting work and waits for queued tasks to finish.
func (p *Pool) Close() {
	p.closeOnce.Do(func() {
		close(p.queue)
	})
	_ = p.group.Wait()
}

// Name identifies the pool in logs and metrics.
func (p *Pool) Name() string {
	return p.name
}
