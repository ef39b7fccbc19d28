package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragboletin/internal/schedule"
	"github.com/koopa0/ragboletin/internal/warehouse"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Ingest every weekday from the configured start date to yesterday",
	Long: `Backfill runs the pipeline for every weekday partition between the
configured start date and yesterday, in order, stopping at the first
failure. Re-running after a failure continues the series; already
ingested dates merge without duplicating data.`,
	RunE: runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}

	dates := schedule.Partitions(cfg.PartitionStart(), time.Now(), cfg.Location())
	if len(dates) == 0 {
		fmt.Println("No partitions to backfill")
		return nil
	}
	logger.Info("backfill starting",
		"from", dates[0].Format("2006-01-02"),
		"to", dates[len(dates)-1].Format("2006-01-02"),
		"partitions", len(dates))

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

	runner := schedule.NewRunner(pipe, logger.With("component", "backfill"))
	if err := runner.RunAll(ctx, dates); err != nil {
		return err
	}

	fmt.Printf("Backfilled %d partitions\n", len(dates))
	return nil
}
