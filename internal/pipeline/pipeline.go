// Package pipeline runs the daily ingestion: scrape one bulletin date,
// extend the master dataset, and refresh the warehouse and its embeddings.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"github.com/koopa0/ragboletin/internal/archive"
	"github.com/koopa0/ragboletin/internal/infoleg"
	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/norma"
)

// ErrNoRecords reports that a run produced no records at all. A weekday
// bulletin is never empty, so the run is failed rather than silently
// completed.
var ErrNoRecords = errors.New("pipeline: no records scraped")

// Searcher lists the norma ids published on a date.
type Searcher interface {
	NormaIDs(ctx context.Context, date time.Time) ([]int64, error)
}

// Fetcher retrieves and extracts norma records, flushing them to sink in
// batches, and reports how many records it wrote.
type Fetcher interface {
	FetchAll(ctx context.Context, ids []int64, sink infoleg.RecordSink) (int, error)
}

// Warehouse is the database surface the pipeline drives.
type Warehouse interface {
	ReplaceMaster(ctx context.Context, records []norma.Record) error
	AppendStaging(ctx context.Context, records []norma.Record) error
	MergeEmbeddings(ctx context.Context) (int, error)
}

// Config carries the run-independent pipeline settings.
type Config struct {
	// DataDir is the local working directory holding the master file and
	// the per-day scrape files.
	DataDir string

	// MasterObject is both the master file's name under DataDir and its
	// object name in the archive.
	MasterObject string
}

// Pipeline wires the scraper, the archive and the warehouse into one run.
type Pipeline struct {
	cfg       Config
	searcher  Searcher
	fetcher   Fetcher
	store     archive.Store
	warehouse Warehouse
	logger    log.Logger
}

func New(cfg Config, searcher Searcher, fetcher Fetcher, store archive.Store, wh Warehouse, logger log.Logger) *Pipeline {
	return &Pipeline{
		cfg:       cfg,
		searcher:  searcher,
		fetcher:   fetcher,
		store:     store,
		warehouse: wh,
		logger:    logger,
	}
}

// Report summarizes one completed run.
type Report struct {
	RunID      string
	Date       time.Time
	IDsFound   int
	Scraped    int
	MasterRows int
	Embedded   int
}

// Run executes the full pipeline for one bulletin date. Stages run in
// order and the first failure aborts the run; every stage is idempotent
// with respect to re-running the same date, so a failed run is retried by
// running the date again.
func (p *Pipeline) Run(ctx context.Context, date time.Time) (*Report, error) {
	report := &Report{
		RunID: uuid.NewString(),
		Date:  date,
	}
	logger := p.logger.With("run_id", report.RunID, "date", date.Format("2006-01-02"))
	logger.Info("pipeline run starting")

	records, err := p.scrape(ctx, date, report, logger)
	if err != nil {
		return report, fmt.Errorf("scrape stage: %w", err)
	}
	if err := p.uploadDaily(ctx, date); err != nil {
		return report, fmt.Errorf("daily upload stage: %w", err)
	}

	master, err := p.extendMaster(ctx, records, logger)
	if err != nil {
		return report, fmt.Errorf("master stage: %w", err)
	}
	report.MasterRows = len(master)

	if err := p.warehouse.ReplaceMaster(ctx, master); err != nil {
		return report, fmt.Errorf("warehouse load stage: %w", err)
	}
	if err := p.warehouse.AppendStaging(ctx, records); err != nil {
		return report, fmt.Errorf("staging stage: %w", err)
	}
	embedded, err := p.warehouse.MergeEmbeddings(ctx)
	if err != nil {
		return report, fmt.Errorf("embedding stage: %w", err)
	}
	report.Embedded = embedded

	logger.Info("pipeline run completed",
		"scraped", report.Scraped,
		"master_rows", report.MasterRows,
		"embedded", report.Embedded)
	return report, nil
}

// scrape searches the date, fetches every norma, and writes the day's CSV.
// It returns the scraped records in fetch order.
func (p *Pipeline) scrape(ctx context.Context, date time.Time, report *Report, logger log.Logger) ([]norma.Record, error) {
	ids, err := p.searcher.NormaIDs(ctx, date)
	if err != nil {
		return nil, err
	}
	report.IDsFound = len(ids)
	if len(ids) == 0 {
		return nil, ErrNoRecords
	}

	path := p.dailyPath(date)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("creating scrape dir: %w", err)
	}
	// A re-run of the same date rebuilds the day's file from scratch, so
	// the archived daily object always holds exactly one run's records.
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("resetting daily file: %w", err)
	}

	sink := &csvSink{path: path}
	written, err := p.fetcher.FetchAll(ctx, ids, sink)
	if err != nil {
		return nil, err
	}
	report.Scraped = written
	if written == 0 {
		return nil, ErrNoRecords
	}

	logger.Info("daily scrape written", "path", path, "records", written)
	return sink.records, nil
}

// csvSink appends each batch to the day's CSV and keeps the records for the
// later stages.
type csvSink struct {
	path    string
	records []norma.Record
}

func (s *csvSink) Append(records []norma.Record) error {
	if err := norma.AppendFile(s.path, records); err != nil {
		return err
	}
	s.records = append(s.records, records...)
	return nil
}

func (p *Pipeline) uploadDaily(ctx context.Context, date time.Time) error {
	f, err := os.Open(p.dailyPath(date))
	if err != nil {
		return fmt.Errorf("opening daily file: %w", err)
	}
	defer f.Close()

	if err := p.store.Upload(ctx, dailyObject(date), f); err != nil {
		return err
	}
	return nil
}

// extendMaster appends the run's records to the master file under an
// exclusive lock, archives the new master, and returns the deduplicated
// dataset. When the local master is missing it is restored from the archive
// first, so a fresh machine continues the series instead of starting over.
func (p *Pipeline) extendMaster(ctx context.Context, records []norma.Record, logger log.Logger) ([]norma.Record, error) {
	masterPath := filepath.Join(p.cfg.DataDir, p.cfg.MasterObject)

	lock := flock.New(masterPath + ".lock")
	locked, err := lock.TryLockContext(ctx, 500*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("locking master: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("master lock not acquired")
	}
	defer lock.Unlock()

	if _, err := os.Stat(masterPath); os.IsNotExist(err) {
		if err := p.restoreMaster(ctx, masterPath, logger); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("checking master file: %w", err)
	}

	if err := norma.AppendFile(masterPath, records); err != nil {
		return nil, fmt.Errorf("appending to master: %w", err)
	}
	logger.Info("master extended", "appended", len(records))

	f, err := os.Open(masterPath)
	if err != nil {
		return nil, fmt.Errorf("opening master for archive: %w", err)
	}
	err = p.store.Upload(ctx, p.cfg.MasterObject, f)
	f.Close()
	if err != nil {
		return nil, fmt.Errorf("archiving master: %w", err)
	}

	all, err := norma.ReadFile(masterPath)
	if err != nil {
		return nil, fmt.Errorf("reading master: %w", err)
	}
	deduped := norma.DeduplicateKeepLast(all)
	if len(deduped) < len(all) {
		logger.Info("master deduplicated", "rows", len(all), "unique", len(deduped))
	}
	return deduped, nil
}

// restoreMaster downloads the archived master. A missing archive object is
// fine on the very first run; the append then creates the file.
func (p *Pipeline) restoreMaster(ctx context.Context, masterPath string, logger log.Logger) error {
	r, err := p.store.Download(ctx, p.cfg.MasterObject)
	if errors.Is(err, archive.ErrNotFound) {
		logger.Info("no archived master, starting a new dataset")
		return nil
	}
	if err != nil {
		return fmt.Errorf("restoring master: %w", err)
	}
	defer r.Close()

	f, err := os.Create(masterPath)
	if err != nil {
		return fmt.Errorf("creating master file: %w", err)
	}
	if _, err := f.ReadFrom(r); err != nil {
		f.Close()
		return fmt.Errorf("writing restored master: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing restored master: %w", err)
	}

	logger.Info("master restored from archive", "path", masterPath)
	return nil
}

func (p *Pipeline) dailyPath(date time.Time) string {
	return filepath.Join(p.cfg.DataDir, "daily_scrapes", dailyFileName(date))
}

func dailyFileName(date time.Time) string {
	return fmt.Sprintf("normas_%s.csv", date.Format("2006-01-02"))
}

// dailyObject is the archive name of one day's scrape.
func dailyObject(date time.Time) string {
	return "daily_scrapes/" + dailyFileName(date)
}
