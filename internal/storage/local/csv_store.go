// Package local implements the append-only CSV record store.
package local

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/JakeFAU/bookharvest/internal/book"
)

// Config captures the parameters for the CSV store.
type Config struct {
	// Path is the CSV file records are appended to.
	Path string `mapstructure:"path" yaml:"path"`
	// Sync forces an fsync after every record.
	Sync bool `mapstructure:"fsync" yaml:"fsync"`
}

// CSVStore appends one row per record. The header is written only when the
// file did not exist before Open.
type CSVStore struct {
	mu     sync.Mutex
	file   *os.File
	w      *csv.Writer
	sync   bool
	closed bool
}

// Open prepares the CSV file for appending.
func Open(cfg Config) (*CSVStore, error) {
	if strings.TrimSpace(cfg.Path) == "" {
		return nil, fmt.Errorf("output path is required")
	}

	existed := true
	info, err := os.Stat(cfg.Path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		existed = false
	case err != nil:
		return nil, fmt.Errorf("failed to stat output file: %w", err)
	case info.IsDir():
		return nil, fmt.Errorf("output path %q is a directory", cfg.Path)
	}

	if dir := filepath.Dir(cfg.Path); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create parent directories: %w", err)
		}
	}

	// #nosec G304 -- the output path is operator configuration.
	file, err := os.OpenFile(cfg.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open output file: %w", err)
	}

	w := csv.NewWriter(file)
	w.UseCRLF = true
	store := &CSVStore{file: file, w: w, sync: cfg.Sync}

	if !existed {
		if err := store.writeRow(book.Columns); err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}
	return store, nil
}

// Name identifies the sink in logs and metrics.
func (s *CSVStore) Name() string {
	return "csv"
}

// WriteRecord appends a record and makes it durable before returning.
func (s *CSVStore) WriteRecord(_ context.Context, record book.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return os.ErrClosed
	}
	if err := s.writeRowLocked(record.Row()); err != nil {
		return fmt.Errorf("write record %d: %w", record.BookID, err)
	}
	return nil
}

// Close flushes and closes the file. Calling it twice is a no-op.
func (s *CSVStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.w.Flush()
	flushErr := s.w.Error()
	if err := s.file.Close(); err != nil {
		return fmt.Errorf("close output file: %w", err)
	}
	return flushErr
}

func (s *CSVStore) writeRow(row []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeRowLocked(row)
}

func (s *CSVStore) writeRowLocked(row []string) error {
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return err
	}
	if s.sync {
		if err := s.file.Sync(); err != nil {
			return fmt.Errorf("fsync: %w", err)
		}
	}
	return nil
}
