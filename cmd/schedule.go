package cmd

import (
	"context"
	"errors"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragboletin/internal/schedule"
	"github.com/koopa0/ragboletin/internal/warehouse"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the pipeline every weekday at the configured time",
	Long: `Schedule blocks and runs the pipeline each weekday at the configured
local time, shortly after the day's bulletin is published. Stop it with
SIGINT or SIGTERM.`,
	RunE: runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}

	pool, closePool, err := newPool(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closePool()

	_, embedder, err := newGenkit(ctx, cfg)
	if err != nil {
		return err
	}

	store, closeStore, err := newArchive(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	wh := warehouse.New(pool, embedder, logger.With("component", "warehouse"))
	pipe := newPipeline(cfg, store, wh, logger)

	sched, err := schedule.NewScheduler(pipe, cfg.ScheduleAt, cfg.Location(),
		logger.With("component", "scheduler"))
	if err != nil {
		return err
	}

	if err := sched.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("scheduler stopped")
	return nil
}
