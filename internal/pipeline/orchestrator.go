// Package pipeline drives the forward identifier sweep.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/JakeFAU/bookharvest/internal/book"
	"github.com/JakeFAU/bookharvest/internal/metrics"
)

const titleLogLimit = 30

// Submitter hands identifiers to the worker pool.
type Submitter interface {
	Submit(ctx context.Context, bookID int64) (<-chan book.Outcome, error)
}

// Enqueuer accepts items for the writer.
type Enqueuer interface {
	Enqueue(ctx context.Context, item book.QueueItem) error
}

// Config controls the sweep.
type Config struct {
	StartID   int64
	BatchSize int
}

// Status is a point-in-time view of the sweep.
type Status struct {
	NextID   int64 `json:"next_id"`
	Batches  int64 `json:"batches"`
	Resolved int64 `json:"resolved"`
	Skipped  int64 `json:"skipped"`
}

// Orchestrator submits contiguous batches and forwards successes in identifier order.
type Orchestrator struct {
	cfg    Config
	pool   Submitter
	out    Enqueuer
	logger *zap.Logger

	next     atomic.Int64
	batches  atomic.Int64
	resolved atomic.Int64
	skipped  atomic.Int64
}

// New constructs an Orchestrator.
func New(cfg Config, pool Submitter, out Enqueuer, logger *zap.Logger) *Orchestrator {
	if cfg.StartID < 1 {
		cfg.StartID = 1
	}
	if cfg.BatchSize < 1 {
		cfg.BatchSize = 1
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &Orchestrator{cfg: cfg, pool: pool, out: out, logger: logger}
	o.next.Store(cfg.StartID)
	metrics.SetCursor(cfg.StartID)
	return o
}

// Run sweeps forward until the context is canceled. The returned error is nil
// on a clean cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		start := o.next.Load()
		if err := o.RunBatch(ctx, start); err != nil {
			if errors.Is(err, context.Canceled) && ctx.Err() != nil {
				return nil
			}
			return err
		}
		o.next.Store(start + int64(o.cfg.BatchSize))
		o.batches.Add(1)
		metrics.SetCursor(o.next.Load())
	}
}

// RunBatch processes the identifiers [start, start+BatchSize). Outcomes are
// observed in submission order regardless of completion order.
func (o *Orchestrator) RunBatch(ctx context.Context, start int64) error {
	futures := make([]<-chan book.Outcome, 0, o.cfg.BatchSize)
	for i := 0; i < o.cfg.BatchSize; i++ {
		future, err := o.pool.Submit(ctx, start+int64(i))
		if err != nil {
			return fmt.Errorf("submit %d: %w", start+int64(i), err)
		}
		futures = append(futures, future)
	}

	for _, future := range futures {
		var outcome book.Outcome
		select {
		case <-ctx.Done():
			return ctx.Err()
		case outcome = <-future:
		}
		if err := o.observe(ctx, outcome); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) observe(ctx context.Context, outcome book.Outcome) error {
	if !outcome.OK() {
		o.skipped.Add(1)
		o.logger.Debug("no result", zap.Int64("book_id", outcome.BookID), zap.Error(outcome.Err))
		return nil
	}
	// A resolved record must reach the writer even when shutdown starts now.
	if err := o.out.Enqueue(context.WithoutCancel(ctx), book.RecordItem(outcome.Record)); err != nil {
		return fmt.Errorf("enqueue record %d: %w", outcome.BookID, err)
	}
	o.resolved.Add(1)
	o.logger.Info("book resolved",
		zap.Int64("book_id", outcome.Record.BookID),
		zap.String("title", truncate(outcome.Record.Title, titleLogLimit)),
		zap.Int64("pages", outcome.Record.Pages),
		zap.String("format", outcome.Record.Format),
	)
	return nil
}

// Snapshot reports sweep progress.
func (o *Orchestrator) Snapshot() Status {
	return Status{
		NextID:   o.next.Load(),
		Batches:  o.batches.Load(),
		Resolved: o.resolved.Load(),
		Skipped:  o.skipped.Load(),
	}
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
