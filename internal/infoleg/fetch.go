package infoleg

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/norma"
)

// RecordSink receives successfully extracted records, one group at a time.
// Implementations must persist the batch before returning so the fetcher's
// output is incremental rather than buffered in memory.
type RecordSink interface {
	Append(records []norma.Record) error
}

// FetcherConfig is the immutable configuration of one fetch run.
type FetcherConfig struct {
	// BaseURL is the Infoleg origin serving verNorma.do pages.
	BaseURL string

	// Width is the number of concurrent fetches per group.
	Width int

	// Delay is the pause between consecutive groups.
	Delay time.Duration

	// DailyCap bounds the total ids processed per run, protecting the
	// source after traffic spikes in the search results.
	DailyCap int

	// Timeout bounds each individual HTTP call. Only used when no client
	// is injected.
	Timeout time.Duration
}

// Fetcher drives the extractor over many norma ids with bounded concurrency
// and inter-batch pacing.
//
// The HTTP client is injected and scoped to one run so connection state is
// shared across fetches without a process-wide singleton.
type Fetcher struct {
	cfg       FetcherConfig
	origin    string
	client    *http.Client
	extractor *Extractor
	logger    log.Logger
}

// NewFetcher creates a Fetcher. client may be nil, in which case a default
// client with cfg.Timeout is used.
func NewFetcher(cfg FetcherConfig, client *http.Client, logger log.Logger) *Fetcher {
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Fetcher{
		cfg:       cfg,
		origin:    strings.TrimRight(cfg.BaseURL, "/"),
		client:    client,
		extractor: NewExtractor(cfg.BaseURL),
		logger:    logger,
	}
}

// FetchAll fetches and extracts every id, flushing each group's successful
// records to sink in arrival order within the group. It returns the number
// of records written.
//
// Ids are processed in consecutive groups of the configured width; all
// fetches in a group run concurrently and the whole group completes,
// successes and failures alike, before the batch is flushed. If more groups
// remain, the fetcher sleeps the configured delay before the next group.
// Individual fetch failures are isolated; only context cancellation or a
// sink failure aborts the run.
func (f *Fetcher) FetchAll(ctx context.Context, ids []int64, sink RecordSink) (int, error) {
	if f.cfg.DailyCap > 0 && len(ids) > f.cfg.DailyCap {
		f.logger.Warn("capping norma ids for this run",
			"found", len(ids), "cap", f.cfg.DailyCap)
		ids = ids[:f.cfg.DailyCap]
	}

	width := f.cfg.Width
	if width < 1 {
		width = 1
	}

	written := 0
	for start := 0; start < len(ids); start += width {
		end := min(start+width, len(ids))
		group := ids[start:end]

		results := make([]FetchResult, len(group))
		g, gctx := errgroup.WithContext(ctx)
		for i, id := range group {
			g.Go(func() error {
				results[i] = f.fetchOne(gctx, id)
				// Per-id failures stay in the result; only a canceled
				// context aborts the group.
				return gctx.Err()
			})
		}
		if err := g.Wait(); err != nil {
			return written, fmt.Errorf("fetch group aborted: %w", err)
		}

		batch := make([]norma.Record, 0, len(results))
		for _, res := range results {
			switch res.Status {
			case StatusFound:
				batch = append(batch, res.Record)
			case StatusNotFound:
				f.logger.Warn("norma not found", "id", res.ID)
			case StatusFailed:
				f.logger.Warn("norma fetch failed", "id", res.ID, "error", res.Err)
			}
		}

		if len(batch) > 0 {
			if err := sink.Append(batch); err != nil {
				return written, fmt.Errorf("flushing batch: %w", err)
			}
			written += len(batch)
		}

		if end < len(ids) && f.cfg.Delay > 0 {
			select {
			case <-ctx.Done():
				return written, ctx.Err()
			case <-time.After(f.cfg.Delay):
			}
		}
	}

	f.logger.Info("fetch run completed", "written", written, "total_ids", len(ids))
	return written, nil
}

// fetchOne retrieves and extracts a single norma page. All outcomes are
// result variants; fetchOne never returns an error.
func (f *Fetcher) fetchOne(ctx context.Context, id int64) FetchResult {
	pageURL := fmt.Sprintf("%s/verNorma.do?id=%d", f.origin, id)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, http.NoBody)
	if err != nil {
		return failed(id, fmt.Errorf("building request: %w", err))
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := f.client.Do(req)
	if err != nil {
		return failed(id, fmt.Errorf("fetching page: %w", err))
	}
	defer resp.Body.Close()

	// 404 on a norma page is a normal "not published", not an error.
	if resp.StatusCode == http.StatusNotFound {
		return notFound(id)
	}
	if resp.StatusCode != http.StatusOK {
		return failed(id, fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	rec, err := f.extractor.Extract(id, resp.Body)
	if err != nil {
		return failed(id, err)
	}

	f.logger.Debug("extracted norma",
		"id", id, "tipo", rec.TipoNorma, "numero", rec.NumeroNorma)
	return found(rec)
}
