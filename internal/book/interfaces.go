package book

import (
	"context"
	"time"
)

// Fetcher retrieves the detail page for one identifier.
type Fetcher interface {
	Fetch(ctx context.Context, bookID int64) (Document, error)
}

// Resolver turns a fetched page into a flat record.
type Resolver interface {
	Resolve(bookID int64, body []byte) (Record, error)
}

// Sink durably stores resolved records. Sinks are owned by the writer goroutine.
type Sink interface {
	Name() string
	WriteRecord(ctx context.Context, record Record) error
	Close() error
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}
