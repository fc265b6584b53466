package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/instasweep/instasweep/internal/api"
	"github.com/instasweep/instasweep/internal/codespace"
	"github.com/instasweep/instasweep/internal/config"
	"github.com/instasweep/instasweep/internal/extract"
	"github.com/instasweep/instasweep/internal/logging"
	"github.com/instasweep/instasweep/internal/probe"
	"github.com/instasweep/instasweep/internal/progress"
	"github.com/instasweep/instasweep/internal/progress/sinks"
	"github.com/instasweep/instasweep/internal/resume"
	"github.com/instasweep/instasweep/internal/store"
	"github.com/instasweep/instasweep/internal/sweep"
)

// titleSuffix is the site's " - Instaudio" tail stripped from page titles.
const titleSuffix = " - Instaudio"

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Runs the enumeration sweep",
		Long: `Probes every code in the configured space that is not yet settled in
the output CSV. SIGINT or SIGTERM stops the sweep cleanly: in-flight
probes finish, the partial batch is committed, and the rest of the
space is left for the next run.`,
		RunE: runSweepCommand,
	}
}

func runSweepCommand(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}
	defer func() {
		_ = logger.Sync() // stderr sync fails on some platforms
	}()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := store.Open(cfg.Output.Path, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logger.Warn("failed to close store", zap.Error(cerr))
		}
	}()

	settled, err := st.LoadSettled()
	if err != nil {
		return fmt.Errorf("load settled codes: %w", err)
	}
	logger.Info("resume state loaded",
		zap.String("path", cfg.Output.Path),
		zap.Int("settled", len(settled)),
	)

	space, err := buildSpace(cfg.Sweep)
	if err != nil {
		return err
	}
	source := resume.NewFilter(space, settled)

	fetcher, err := probe.NewCollyFetcher(probe.CollyConfig{
		UserAgent:      cfg.Sweep.UserAgent,
		RequestTimeout: cfg.RequestTimeout(),
		Concurrency:    cfg.Sweep.Threads,
	}, logger)
	if err != nil {
		return fmt.Errorf("init fetcher: %w", err)
	}

	executor := probe.NewExecutor(
		fetcher,
		probe.NewRetryPolicy(cfg.HTTP.MaxRetries, cfg.BackoffInitial(), cfg.BackoffMax()),
		probe.Config{
			BaseURL:       cfg.Sweep.BaseURL,
			Workers:       cfg.Sweep.Threads,
			RatePerSecond: cfg.Sweep.RatePerSecond,
		},
		logger,
	)

	sinkList := []progress.Sink{sinks.NewLogSink(logger)}
	var metricsSrv *api.Server
	if cfg.Metrics.Enabled {
		reg := prometheus.NewRegistry()
		promSink, perr := sinks.NewPrometheusSink(reg)
		if perr != nil {
			return fmt.Errorf("init prometheus sink: %w", perr)
		}
		sinkList = append(sinkList, promSink)

		metricsSrv = api.NewServer(reg, logger)
		go func() {
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			if serr := metricsSrv.Start(addr); serr != nil {
				logger.Error("metrics server failed", zap.Error(serr))
			}
		}()
	}
	hub := progress.NewHub(progress.Config{Logger: logger}, sinkList...)

	engine := sweep.NewEngine(
		sweep.Config{
			BaseURL:         cfg.Sweep.BaseURL,
			BatchSize:       cfg.Sweep.BatchSize,
			InterBatchDelay: cfg.InterBatchDelay(),
		},
		source, executor, extract.New(titleSuffix), st, hub, logger,
	)

	state, runErr := engine.Run(ctx)

	flushCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if herr := hub.Close(flushCtx); herr != nil {
		logger.Warn("progress hub close failed", zap.Error(herr))
	}
	if metricsSrv != nil {
		if serr := metricsSrv.Shutdown(flushCtx); serr != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(serr))
		}
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run sweep: %w", runErr)
	}

	logger.Info("sweep finished",
		zap.Int("probed", state.Probed),
		zap.Int("found", state.Found),
		zap.Int("not_found", state.NotFound),
		zap.Int("errors", state.Errors),
		zap.Int("batches_committed", state.BatchesCommitted),
		zap.Bool("interrupted", runErr != nil),
	)
	return nil
}

func buildSpace(cfg config.SweepConfig) (*codespace.Space, error) {
	var classes []codespace.Class
	if cfg.IncludeShortCodes {
		classes = append(classes, codespace.ShortCodes())
	}
	if cfg.IncludeLongCodes {
		classes = append(classes, codespace.LongCodes())
	}
	space, err := codespace.New(classes...)
	if err != nil {
		return nil, fmt.Errorf("build code space: %w", err)
	}
	return space, nil
}
