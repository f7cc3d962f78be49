package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/bookharvest/internal/book"
	"github.com/JakeFAU/bookharvest/internal/queue/memory"
	"github.com/JakeFAU/bookharvest/internal/worker"
)

// TestDispatcherSubmitResolves ensures submitted identifiers come back as outcomes.
func TestDispatcherSubmitResolves(t *testing.T) {
	t.Parallel()

	queue := memory.NewQueue[worker.Task](8)
	workers := make([]*worker.Worker, 3)
	for i := range workers {
		workers[i] = worker.New(queue, echoFetcher{}, echoResolver{}, zap.NewNop())
	}
	dispatch := New(queue, workers)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()

	futures := make([]<-chan book.Outcome, 0, 6)
	for id := int64(10); id < 16; id++ {
		future, err := dispatch.Submit(ctx, id)
		if err != nil {
			t.Fatalf("Submit(%d) error = %v", id, err)
		}
		futures = append(futures, future)
	}
	for i, future := range futures {
		select {
		case outcome := <-future:
			want := int64(10 + i)
			if !outcome.OK() || outcome.Record.BookID != want {
				t.Fatalf("future %d = %+v, want book %d", i, outcome, want)
			}
		case <-time.After(time.Second):
			t.Fatalf("future %d never completed", i)
		}
	}

	dispatch.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after close")
	}
}

// TestDispatcherRunStopsOnCancel verifies workers exit when the context ends.
func TestDispatcherRunStopsOnCancel(t *testing.T) {
	t.Parallel()

	queue := memory.NewQueue[worker.Task](1)
	dispatch := New(queue, []*worker.Worker{worker.New(queue, echoFetcher{}, echoResolver{}, nil)})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		dispatch.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("dispatcher did not stop after context cancel")
	}
}

// TestDispatcherSubmitForwardsErrors verifies queue errors are wrapped for callers.
func TestDispatcherSubmitForwardsErrors(t *testing.T) {
	t.Parallel()

	dispatch := New(&errorQueue{err: errors.New("boom")}, nil)

	_, err := dispatch.Submit(context.Background(), 1)
	if err == nil || err.Error() != "queue enqueue: boom" {
		t.Fatalf("expected wrapped error, got %v", err)
	}
}

type echoFetcher struct{}

func (echoFetcher) Fetch(_ context.Context, bookID int64) (book.Document, error) {
	return book.Document{BookID: bookID, StatusCode: 200, Body: []byte(strconv.FormatInt(bookID, 10))}, nil
}

type echoResolver struct{}

func (echoResolver) Resolve(bookID int64, body []byte) (book.Record, error) {
	return book.Record{BookID: bookID, Title: fmt.Sprintf("Book %s", body)}, nil
}

type errorQueue struct {
	err error
}

func (q *errorQueue) Enqueue(context.Context, worker.Task) error {
	return q.err
}

func (q *errorQueue) Dequeue(context.Context) (worker.Task, error) {
	return worker.Task{}, nil
}

func (q *errorQueue) Close() {}
