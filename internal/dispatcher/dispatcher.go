// Package dispatcher manages worker fan-out over the task queue.
package dispatcher

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/bookharvest/internal/book"
	"github.com/JakeFAU/bookharvest/internal/worker"
)

// TaskQueue is the queue the dispatcher feeds and its workers drain.
type TaskQueue interface {
	Enqueue(ctx context.Context, task worker.Task) error
	Dequeue(ctx context.Context) (worker.Task, error)
	Close()
}

// Dispatcher fans out submitted identifiers to a pool of workers.
type Dispatcher struct {
	queue   TaskQueue
	workers []*worker.Worker
}

// New creates a Dispatcher.
func New(queue TaskQueue, workers []*worker.Worker) *Dispatcher {
	return &Dispatcher{
		queue:   queue,
		workers: workers,
	}
}

// Run starts all workers and blocks until they have all returned. Workers
// return once the context finishes or the queue is closed and drained.
func (d *Dispatcher) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, w := range d.workers {
		wg.Add(1)
		go func(wk *worker.Worker) {
			defer wg.Done()
			wk.Run(ctx)
		}(w)
	}
	wg.Wait()
}

// Submit hands one identifier to the pool. The returned channel yields
// exactly one outcome.
func (d *Dispatcher) Submit(ctx context.Context, bookID int64) (<-chan book.Outcome, error) {
	result := make(chan book.Outcome, 1)
	if err := d.queue.Enqueue(ctx, worker.Task{BookID: bookID, Result: result}); err != nil {
		return nil, fmt.Errorf("queue enqueue: %w", err)
	}
	return result, nil
}

// Close stops accepting work. Tasks already queued are still processed.
func (d *Dispatcher) Close() {
	d.queue.Close()
}
