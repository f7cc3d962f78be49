// Package worker implements the fetch-and-resolve execution loop.
package worker

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/JakeFAU/bookharvest/internal/book"
	"github.com/JakeFAU/bookharvest/internal/metrics"
	"github.com/JakeFAU/bookharvest/internal/queue/memory"
	"github.com/JakeFAU/bookharvest/internal/resolver"
)

// Skip reasons reported on the books counter.
const (
	ReasonFetchFailed      = "fetch_failed"
	ReasonNoEmbeddedData   = "no_embedded_data"
	ReasonMalformedPayload = "malformed_payload"
	ReasonNoBookNode       = "no_book_node"
	ReasonPanic            = "panic"
	ReasonCanceled         = "canceled"
	ReasonUnknown          = "unknown"
)

var (
	// ErrFetch wraps every fetch failure handed back in an outcome.
	ErrFetch = errors.New("fetch failed")
	// ErrPanic marks an outcome produced by a recovered panic.
	ErrPanic = errors.New("worker panic")
	// ErrCanceled marks an outcome cut short because the run itself was stopped.
	ErrCanceled = errors.New("harvest canceled")
)

// Task asks a worker to process one identifier and report on Result.
// Result must have room for one outcome so the worker never blocks on it.
type Task struct {
	BookID int64
	Result chan<- book.Outcome
}

// TaskSource yields tasks to workers.
type TaskSource interface {
	Dequeue(ctx context.Context) (Task, error)
}

// Worker consumes tasks and runs fetch then resolve for each.
type Worker struct {
	tasks    TaskSource
	fetcher  book.Fetcher
	resolver book.Resolver
	tracer   trace.Tracer
	logger   *zap.Logger
}

// New constructs a Worker.
func New(tasks TaskSource, fetcher book.Fetcher, res book.Resolver, logger *zap.Logger) *Worker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Worker{
		tasks:    tasks,
		fetcher:  fetcher,
		resolver: res,
		tracer:   otel.Tracer("github.com/JakeFAU/bookharvest/internal/worker"),
		logger:   logger,
	}
}

// Run blocks, consuming tasks until the context finishes or the source closes.
func (w *Worker) Run(ctx context.Context) {
	for {
		task, err := w.tasks.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			if errors.Is(err, memory.ErrClosed) {
				return
			}
			w.logger.Error("task dequeue failed", zap.Error(err))
			continue
		}
		outcome := w.Process(ctx, task.BookID)
		task.Result <- outcome
	}
}

// Process handles a single identifier. It never panics and never returns
// without an outcome.
func (w *Worker) Process(ctx context.Context, bookID int64) (outcome book.Outcome) {
	metrics.IncActiveWorkers()
	defer metrics.DecActiveWorkers()

	ctx, span := w.tracer.Start(ctx, "harvest.book", trace.WithAttributes(attribute.Int64("book.id", bookID)))
	defer func() {
		if outcome.Err != nil {
			span.RecordError(outcome.Err)
			span.SetStatus(codes.Error, Reason(outcome.Err))
		} else {
			span.SetAttributes(attribute.String("book.title", outcome.Record.Title))
		}
		span.End()
	}()

	outcome.BookID = bookID
	defer func() {
		if r := recover(); r != nil {
			outcome = book.Outcome{BookID: bookID, Err: fmt.Errorf("%w: %v", ErrPanic, r)}
			w.logger.Error("worker recovered from panic", zap.Int64("book_id", bookID), zap.Any("panic", r))
			metrics.ObserveOutcome(metrics.OutcomeSkipped, ReasonPanic)
		}
	}()

	doc, err := w.fetcher.Fetch(ctx, bookID)
	if err != nil {
		if ctx.Err() != nil {
			outcome.Err = fmt.Errorf("%w: %w", ErrCanceled, err)
		} else {
			outcome.Err = fmt.Errorf("%w: %w", ErrFetch, err)
		}
		metrics.ObserveOutcome(metrics.OutcomeSkipped, Reason(outcome.Err))
		return outcome
	}
	span.SetAttributes(
		attribute.String("http.url", doc.URL),
		attribute.Int("http.status_code", doc.StatusCode),
	)
	w.logger.Debug("page fetched",
		zap.Int64("book_id", bookID),
		zap.String("url", doc.URL),
		zap.Int("status", doc.StatusCode),
		zap.Int("bytes", len(doc.Body)),
		zap.Duration("elapsed", doc.Duration),
		zap.String("user_agent", doc.UserAgent),
	)
	record, err := w.resolver.Resolve(bookID, doc.Body)
	if err != nil {
		outcome.Err = err
		metrics.ObserveOutcome(metrics.OutcomeSkipped, Reason(err))
		return outcome
	}
	outcome.Record = record
	metrics.ObserveOutcome(metrics.OutcomeResolved, "")
	return outcome
}

// Reason maps an outcome error to a bounded metrics label.
func Reason(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrPanic):
		return ReasonPanic
	case errors.Is(err, ErrCanceled):
		return ReasonCanceled
	case errors.Is(err, ErrFetch):
		return ReasonFetchFailed
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ReasonCanceled
	case errors.Is(err, resolver.ErrNoEmbeddedData):
		return ReasonNoEmbeddedData
	case errors.Is(err, resolver.ErrMalformedPayload):
		return ReasonMalformedPayload
	case errors.Is(err, resolver.ErrNoBookNode):
		return ReasonNoBookNode
	default:
		return ReasonUnknown
	}
}
