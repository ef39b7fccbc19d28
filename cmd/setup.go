package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"cloud.google.com/go/storage"
	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/genkit"
	"github.com/firebase/genkit/go/plugins/googlegenai"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/koopa0/ragboletin/db"
	"github.com/koopa0/ragboletin/internal/archive"
	"github.com/koopa0/ragboletin/internal/config"
	"github.com/koopa0/ragboletin/internal/infoleg"
	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/pipeline"
	"github.com/koopa0/ragboletin/internal/warehouse"
)

var verbose bool

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")
}

// loadEnv loads and validates the configuration and builds the process
// logger from it.
func loadEnv() (*config.Config, log.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("loading configuration: %w", err)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := log.New(log.Config{Level: level, JSON: true})
	return cfg, logger, nil
}

// newPool migrates the schema and opens the connection pool.
func newPool(ctx context.Context, cfg *config.Config, logger log.Logger) (*pgxpool.Pool, func(), error) {
	if err := db.Migrate(cfg.PostgresURL(), logger); err != nil {
		return nil, nil, fmt.Errorf("running migrations: %w", err)
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.PostgresURL())
	if err != nil {
		return nil, nil, fmt.Errorf("parsing connection config: %w", err)
	}
	poolCfg.MaxConns = 10
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("creating connection pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, nil, fmt.Errorf("pinging database: %w", err)
	}

	return pool, pool.Close, nil
}

// newGenkit initializes genkit with the Google AI plugin and returns the
// configured embedder alongside it. GEMINI_API_KEY comes from the
// environment, read by the plugin itself.
func newGenkit(ctx context.Context, cfg *config.Config) (*genkit.Genkit, ai.Embedder, error) {
	g := genkit.Init(ctx, genkit.WithPlugins(&googlegenai.GoogleAI{}))
	if g == nil {
		return nil, nil, fmt.Errorf("initializing genkit")
	}
	return g, googlegenai.GoogleAIEmbedder(g, cfg.EmbedderModel), nil
}

// newArchive picks the archive backend: the configured GCS bucket, or a
// directory under the data dir when no bucket is set.
func newArchive(ctx context.Context, cfg *config.Config, logger log.Logger) (archive.Store, func(), error) {
	if cfg.GCSBucket == "" {
		dir, err := archive.NewDir(filepath.Join(cfg.DataDir, "archive"))
		if err != nil {
			return nil, nil, err
		}
		logger.Info("archiving to local directory", "dir", filepath.Join(cfg.DataDir, "archive"))
		return dir, func() {}, nil
	}

	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("creating storage client: %w", err)
	}
	cleanup := func() { client.Close() }
	return archive.NewBucket(client, cfg.GCSBucket), cleanup, nil
}

// newPipeline assembles the full ingestion pipeline.
func newPipeline(cfg *config.Config, store archive.Store, wh *warehouse.Warehouse, logger log.Logger) *pipeline.Pipeline {
	searcher := infoleg.NewSearchClient(cfg.InfolegBaseURL, nil, logger)
	fetcher := infoleg.NewFetcher(infoleg.FetcherConfig{
		BaseURL:  cfg.InfolegBaseURL,
		Width:    cfg.BatchWidth,
		Delay:    cfg.BatchDelay(),
		DailyCap: cfg.DailyScrapeCap,
		Timeout:  cfg.FetchTimeout(),
	}, nil, logger)

	return pipeline.New(pipeline.Config{
		DataDir:      cfg.DataDir,
		MasterObject: cfg.MasterObject,
	}, searcher, fetcher, store, wh, logger)
}
