// Package writer owns the single goroutine that persists resolved records.
package writer

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/JakeFAU/bookharvest/internal/book"
	"github.com/JakeFAU/bookharvest/internal/metrics"
	"github.com/JakeFAU/bookharvest/internal/queue/memory"
)

// Source yields items for the writer.
type Source interface {
	Dequeue(ctx context.Context) (book.QueueItem, error)
}

// Writer drains the record queue into every configured sink, in order.
type Writer struct {
	source Source
	sinks  []book.Sink
	logger *zap.Logger
}

// New constructs a Writer. Sinks are written in the order given.
func New(source Source, sinks []book.Sink, logger *zap.Logger) *Writer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{source: source, sinks: sinks, logger: logger}
}

// Run consumes items until it sees the shutdown item, the queue closes, or
// the context finishes. It returns the number of records handled.
func (w *Writer) Run(ctx context.Context) int {
	written := 0
	for {
		item, err := w.source.Dequeue(ctx)
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, memory.ErrClosed) {
				w.logger.Error("writer dequeue failed", zap.Error(err))
			}
			return written
		}
		if item.Shutdown {
			w.logger.Debug("writer received shutdown", zap.Int("records", written))
			return written
		}
		w.write(ctx, item.Record)
		written++
	}
}

func (w *Writer) write(ctx context.Context, record book.Record) {
	for _, sink := range w.sinks {
		err := sink.WriteRecord(ctx, record)
		metrics.ObserveWrite(sink.Name(), err)
		if err != nil {
			w.logger.Error("record write failed",
				zap.String("sink", sink.Name()),
				zap.Int64("book_id", record.BookID),
				zap.Error(err),
			)
		}
	}
}

// Close closes every sink, joining their errors.
func (w *Writer) Close() error {
	var errs []error
	for _, sink := range w.sinks {
		if err := sink.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
