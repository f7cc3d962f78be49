// Package app assembles the harvester's long-lived services and owns their lifecycle.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/bookharvest/internal/api"
	"github.com/JakeFAU/bookharvest/internal/book"
	"github.com/JakeFAU/bookharvest/internal/config"
	"github.com/JakeFAU/bookharvest/internal/dispatcher"
	collyfetcher "github.com/JakeFAU/bookharvest/internal/fetcher/colly"
	"github.com/JakeFAU/bookharvest/internal/pipeline"
	"github.com/JakeFAU/bookharvest/internal/policy/ratelimit"
	"github.com/JakeFAU/bookharvest/internal/queue/memory"
	"github.com/JakeFAU/bookharvest/internal/resolver"
	"github.com/JakeFAU/bookharvest/internal/storage/local"
	"github.com/JakeFAU/bookharvest/internal/storage/postgres"
	"github.com/JakeFAU/bookharvest/internal/worker"
	"github.com/JakeFAU/bookharvest/internal/writer"
)

// Options carries the collaborators App does not build itself.
type Options struct {
	RunID  string
	Clock  book.Clock
	Logger *zap.Logger
	// Sinks replaces the configured sinks when non-nil.
	Sinks []book.Sink
}

// App holds every service for one harvest run.
type App struct {
	cfg      config.Config
	runID    string
	logger   *zap.Logger
	records  *memory.Queue[book.QueueItem]
	writer   *writer.Writer
	dispatch *dispatcher.Dispatcher
	orch     *pipeline.Orchestrator
	server   *api.Server
}

// New builds the App. It fails fast if a sink cannot be opened.
func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		return nil, errors.New("clock is required")
	}

	sinks := opts.Sinks
	if sinks == nil {
		var err error
		sinks, err = openSinks(ctx, cfg, opts.RunID, opts.Clock, logger)
		if err != nil {
			return nil, err
		}
	}

	records := memory.NewQueue[book.QueueItem](cfg.Pipeline.WriterQueueDepth)
	tasks := memory.NewQueue[worker.Task](cfg.Pipeline.BatchSize)

	throttle := ratelimit.New(ratelimit.Config{
		JitterMin: cfg.Source.JitterMin,
		JitterMax: cfg.Source.JitterMax,
		MaxRPS:    cfg.Source.MaxRPS,
	})
	fetcher := collyfetcher.New(collyfetcher.Config{
		BaseURL:    cfg.Source.BaseURL,
		UserAgents: cfg.Source.UserAgents,
		Timeout:    cfg.HTTP.Timeout,
	}, throttle)
	res := resolver.New()

	workers := make([]*worker.Worker, 0, cfg.Pipeline.Concurrency)
	for i := 0; i < cfg.Pipeline.Concurrency; i++ {
		workers = append(workers, worker.New(tasks, fetcher, res, logger.Named("worker").With(zap.Int("index", i))))
	}
	dispatch := dispatcher.New(tasks, workers)

	orch := pipeline.New(pipeline.Config{
		StartID:   cfg.Pipeline.StartID,
		BatchSize: cfg.Pipeline.BatchSize,
	}, dispatch, records, logger.Named("pipeline"))

	a := &App{
		cfg:      cfg,
		runID:    opts.RunID,
		logger:   logger,
		records:  records,
		writer:   writer.New(records, sinks, logger.Named("writer")),
		dispatch: dispatch,
		orch:     orch,
	}
	if cfg.Server.Addr != "" {
		a.server = api.NewServer(orch, opts.RunID, opts.Clock, logger.Named("api"))
	}
	return a, nil
}

func openSinks(
	ctx context.Context,
	cfg config.Config,
	runID string,
	clock book.Clock,
	logger *zap.Logger,
) ([]book.Sink, error) {
	csvStore, err := local.Open(local.Config{Path: cfg.Output.Path, Sync: cfg.Output.FSync})
	if err != nil {
		return nil, fmt.Errorf("open csv store: %w", err)
	}
	sinks := []book.Sink{csvStore}
	logger.Info("csv store opened", zap.String("path", cfg.Output.Path))

	if cfg.DBEnabled() {
		pg, err := postgres.NewBookStore(ctx, postgres.BookStoreConfig{
			DSN:      cfg.DB.DSN,
			Table:    cfg.DB.Table,
			RunID:    runID,
			MaxConns: cfg.DB.MaxConns,
		}, clock)
		if err != nil {
			_ = csvStore.Close()
			return nil, fmt.Errorf("open postgres store: %w", err)
		}
		sinks = append(sinks, pg)
		logger.Info("postgres mirror enabled", zap.String("table", cfg.DB.Table))
	}
	return sinks, nil
}

// Orchestrator exposes the sweep for status reporting.
func (a *App) Orchestrator() *pipeline.Orchestrator {
	return a.orch
}

// Run harvests until ctx is canceled, then drains the writer and closes sinks.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	writerDone := make(chan int, 1)
	go func() {
		// Shutdown of the writer is driven by the sentinel, not by ctx.
		writerDone <- a.writer.Run(context.WithoutCancel(ctx))
	}()

	poolDone := make(chan struct{})
	go func() {
		a.dispatch.Run(ctx)
		close(poolDone)
	}()

	serverDone := make(chan struct{})
	if a.server != nil {
		go func() {
			defer close(serverDone)
			if err := api.Serve(ctx, a.cfg.Server.Addr, a.server.Handler(), a.logger); err != nil {
				a.logger.Error("ops server error", zap.Error(err))
			}
		}()
		a.server.MarkReady()
	} else {
		close(serverDone)
	}

	a.logger.Info("harvest started",
		zap.Int64("start_id", a.cfg.Pipeline.StartID),
		zap.Int("batch_size", a.cfg.Pipeline.BatchSize),
		zap.Int("concurrency", a.cfg.Pipeline.Concurrency),
		zap.String("output", a.cfg.Output.Path),
	)

	runErr := a.orch.Run(ctx)
	if runErr != nil {
		a.logger.Error("sweep stopped with error", zap.Error(runErr))
	}

	if a.server != nil {
		a.server.MarkDraining()
	}
	cancel()
	<-poolDone
	a.dispatch.Close()

	var shutdownErr error
	if err := a.records.Enqueue(context.Background(), book.ShutdownItem()); err != nil {
		shutdownErr = fmt.Errorf("signal writer shutdown: %w", err)
	}
	written := <-writerDone
	closeErr := a.writer.Close()
	<-serverDone

	status := a.orch.Snapshot()
	a.logger.Info("harvest stopped",
		zap.Int64("next_id", status.NextID),
		zap.Int64("resolved", status.Resolved),
		zap.Int64("skipped", status.Skipped),
		zap.Int("written", written),
	)
	return errors.Join(runErr, shutdownErr, closeErr)
}
