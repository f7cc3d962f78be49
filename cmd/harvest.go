package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/bookharvest/internal/app"
	"github.com/JakeFAU/bookharvest/internal/clock/system"
	"github.com/JakeFAU/bookharvest/internal/config"
	"github.com/JakeFAU/bookharvest/internal/id/uuid"
	"github.com/JakeFAU/bookharvest/internal/logging"
	"github.com/JakeFAU/bookharvest/internal/telemetry"
)

func runHarvest(parent context.Context, cfgPath string) error {
	if parent == nil {
		parent = context.Background()
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger, err := logging.New(logging.Options{
		Development: cfg.Logging.Development,
		Level:       cfg.Logging.Level,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		if syncErr := logger.Sync(); syncErr != nil {
			fmt.Fprintf(os.Stderr, "logger sync failed: %v\n", syncErr)
		}
	}()

	runID, err := uuid.New().NewID()
	if err != nil {
		return fmt.Errorf("generate run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if cfg.Tracing.Enabled {
		tp, err := telemetry.InitTracerProvider(ctx, "bookharvest", runID, logger.Named("trace"))
		if err != nil {
			return fmt.Errorf("init tracing: %w", err)
		}
		defer func() {
			if err := tp.Shutdown(context.Background()); err != nil {
				logger.Warn("tracer shutdown failed", zap.Error(err))
			}
		}()
	}

	harvest, err := app.New(ctx, cfg, app.Options{
		RunID:  runID,
		Clock:  system.New(),
		Logger: logger,
	})
	if err != nil {
		return fmt.Errorf("init harvester: %w", err)
	}
	if err := harvest.Run(ctx); err != nil {
		return fmt.Errorf("harvest: %w", err)
	}
	return nil
}
