package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"banklink/internal/cli"
	"banklink/internal/log"
	"banklink/internal/services"
	"banklink/internal/worker"
)

func main() {
	cli.LoadEnvFile()

	bootLogger := cli.SetupLogger("info", log.ComponentWorker)
	cfg := cli.LoadAndValidateConfig(bootLogger)
	logger := cli.SetupLogger(cfg.LogLevel, log.ComponentWorker)

	logger.Info("Starting banklink-worker", log.FieldProvider, cfg.Provider, "interval", cfg.SummaryInterval)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup error", log.FieldError, err)
		}
	}()

	spending, closeCache := cli.NewSpendingService(logger, cfg, res)
	defer closeCache()

	writer := cli.NewSnapshotWriter(ctx, logger, cfg)
	processor := services.NewSnapshotProcessor(spending, writer, services.SnapshotProcessorConfig{
		Interval: cfg.SummaryInterval,
	}, logger)

	if err := processor.Start(ctx); err != nil {
		logger.Error("Failed to start snapshot processor", log.FieldError, err)
		os.Exit(1)
	}

	g, gctx := errgroup.WithContext(ctx)
	if res.AMQP != nil {
		summaryWorker := worker.NewSummaryWorker(spending.Provider(), processor, logger)
		g.Go(func() error {
			return summaryWorker.Run(gctx, res.AMQP)
		})
	} else {
		logger.Info("Skipping AMQP message consumption - no broker configured")
	}
	g.Go(func() error {
		<-gctx.Done()
		return nil
	})

	err := g.Wait()
	if err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("Message consumption failed", log.FieldError, err)
	}

	logger.Info("Shutting down worker...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := processor.Stop(shutdownCtx); err != nil {
		logger.Warn("Shutdown timeout reached", log.FieldError, err)
		return
	}
	logger.Info("Worker shutdown complete")
}
