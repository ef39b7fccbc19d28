package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/koopa0/ragboletin/internal/warehouse"
)

var scrapeDate string

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Run the ingestion pipeline for a single bulletin date",
	RunE:  runScrape,
}

func init() {
	scrapeCmd.Flags().StringVar(&scrapeDate, "date", "", "bulletin date to ingest (YYYY-MM-DD, default today)")
	rootCmd.AddCommand(scrapeCmd)
}

func runScrape(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, logger, err := loadEnv()
	if err != nil {
		return err
	}

	date := time.Now().In(cfg.Location())
	if scrapeDate != "" {
		date, err = time.ParseInLocation("2006-01-02", scrapeDate, cfg.Location())
		if err != nil {
			return fmt.Errorf("invalid --date %q: %w", scrapeDate, err)
		}
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

	report, err := pipe.Run(ctx, date)
	if err != nil {
		return err
	}

	fmt.Printf("Run %s completed for %s: %d normas scraped, %d in master, %d embedded\n",
		report.RunID, report.Date.Format("2006-01-02"),
		report.Scraped, report.MasterRows, report.Embedded)
	return nil
}
