package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragboletin/internal/archive"
	"github.com/koopa0/ragboletin/internal/infoleg"
	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/norma"
)

type fakeSearcher struct {
	ids []int64
	err error
}

func (s *fakeSearcher) NormaIDs(context.Context, time.Time) ([]int64, error) {
	return s.ids, s.err
}

// fakeFetcher emits one canned record per id, skipping ids in skip.
type fakeFetcher struct {
	skip map[int64]bool
}

func (f *fakeFetcher) FetchAll(_ context.Context, ids []int64, sink infoleg.RecordSink) (int, error) {
	var batch []norma.Record
	for _, id := range ids {
		if f.skip[id] {
			continue
		}
		r := norma.NewRecord(id)
		r.TipoNorma = "Ley"
		r.NumeroNorma = fmt.Sprintf("%d", id)
		r.TituloResumido = fmt.Sprintf("NORMA %d", id)
		batch = append(batch, r)
	}
	if len(batch) == 0 {
		return 0, nil
	}
	if err := sink.Append(batch); err != nil {
		return 0, err
	}
	return len(batch), nil
}

type warehouseCall struct {
	op   string
	rows []norma.Record
}

type fakeWarehouse struct {
	calls    []warehouseCall
	mergeErr error
}

func (w *fakeWarehouse) ReplaceMaster(_ context.Context, records []norma.Record) error {
	w.calls = append(w.calls, warehouseCall{op: "replace", rows: records})
	return nil
}

func (w *fakeWarehouse) AppendStaging(_ context.Context, records []norma.Record) error {
	w.calls = append(w.calls, warehouseCall{op: "staging", rows: records})
	return nil
}

func (w *fakeWarehouse) MergeEmbeddings(context.Context) (int, error) {
	w.calls = append(w.calls, warehouseCall{op: "merge"})
	if w.mergeErr != nil {
		return 0, w.mergeErr
	}
	return len(w.calls), nil
}

func (w *fakeWarehouse) ops() []string {
	ops := make([]string, 0, len(w.calls))
	for _, c := range w.calls {
		ops = append(ops, c.op)
	}
	return ops
}

func newTestPipeline(t *testing.T, searcher Searcher, fetcher Fetcher, wh Warehouse) (*Pipeline, *archive.Dir, string) {
	t.Helper()
	dataDir := t.TempDir()
	store, err := archive.NewDir(t.TempDir())
	require.NoError(t, err)

	cfg := Config{DataDir: dataDir, MasterObject: "base-infoleg-normativa-nacional.csv"}
	return New(cfg, searcher, fetcher, store, wh, log.NewNop()), store, dataDir
}

func runDate(t *testing.T) time.Time {
	t.Helper()
	d, err := time.Parse("2006-01-02", "2025-10-06")
	require.NoError(t, err)
	return d
}

func TestRunFullPipeline(t *testing.T) {
	wh := &fakeWarehouse{}
	p, store, dataDir := newTestPipeline(t,
		&fakeSearcher{ids: []int64{111, 222, 333}}, &fakeFetcher{}, wh)

	report, err := p.Run(context.Background(), runDate(t))
	require.NoError(t, err)
	require.NotEmpty(t, report.RunID)
	require.Equal(t, 3, report.IDsFound)
	require.Equal(t, 3, report.Scraped)
	require.Equal(t, 3, report.MasterRows)

	daily, err := norma.ReadFile(filepath.Join(dataDir, "daily_scrapes", "normas_2025-10-06.csv"))
	require.NoError(t, err)
	require.Len(t, daily, 3)
	require.Equal(t, int64(111), daily[0].IDNorma)

	ctx := context.Background()
	for _, object := range []string{
		"daily_scrapes/normas_2025-10-06.csv",
		"base-infoleg-normativa-nacional.csv",
	} {
		ok, err := store.Exists(ctx, object)
		require.NoError(t, err)
		require.True(t, ok, object)
	}

	require.Equal(t, []string{"replace", "staging", "merge"}, wh.ops())
	require.Len(t, wh.calls[0].rows, 3)
	require.Len(t, wh.calls[1].rows, 3)
}

func TestRunSameDateTwiceKeepsMasterUnique(t *testing.T) {
	wh := &fakeWarehouse{}
	p, _, dataDir := newTestPipeline(t,
		&fakeSearcher{ids: []int64{111, 222}}, &fakeFetcher{}, wh)

	date := runDate(t)
	_, err := p.Run(context.Background(), date)
	require.NoError(t, err)
	report, err := p.Run(context.Background(), date)
	require.NoError(t, err)

	// The daily file is rebuilt per run, never accumulated across retries.
	daily, err := norma.ReadFile(filepath.Join(dataDir, "daily_scrapes", "normas_2025-10-06.csv"))
	require.NoError(t, err)
	require.Len(t, daily, 2)
	require.Equal(t, []int64{111, 222}, []int64{daily[0].IDNorma, daily[1].IDNorma})

	// The master file keeps the raw append history.
	master, err := norma.ReadFile(filepath.Join(dataDir, "base-infoleg-normativa-nacional.csv"))
	require.NoError(t, err)
	require.Len(t, master, 4)

	// The warehouse only ever sees the deduplicated dataset.
	require.Equal(t, 2, report.MasterRows)
	last := wh.calls[len(wh.calls)-3]
	require.Equal(t, "replace", last.op)
	require.Len(t, last.rows, 2)
}

func TestRunFailsWhenSearchIsEmpty(t *testing.T) {
	p, _, _ := newTestPipeline(t, &fakeSearcher{}, &fakeFetcher{}, &fakeWarehouse{})

	_, err := p.Run(context.Background(), runDate(t))
	require.ErrorIs(t, err, ErrNoRecords)
}

func TestRunFailsWhenEveryFetchFails(t *testing.T) {
	p, _, _ := newTestPipeline(t,
		&fakeSearcher{ids: []int64{111}},
		&fakeFetcher{skip: map[int64]bool{111: true}},
		&fakeWarehouse{})

	_, err := p.Run(context.Background(), runDate(t))
	require.ErrorIs(t, err, ErrNoRecords)
}

func TestRunRestoresMasterFromArchive(t *testing.T) {
	wh := &fakeWarehouse{}
	p, store, dataDir := newTestPipeline(t,
		&fakeSearcher{ids: []int64{333}}, &fakeFetcher{}, wh)

	// Seed the archive with a master from a previous machine.
	old := norma.NewRecord(100)
	old.TipoNorma = "Decreto"
	seed := filepath.Join(t.TempDir(), "seed.csv")
	require.NoError(t, norma.AppendFile(seed, []norma.Record{old}))
	f, err := os.Open(seed)
	require.NoError(t, err)
	require.NoError(t, store.Upload(context.Background(), "base-infoleg-normativa-nacional.csv", f))
	f.Close()

	report, err := p.Run(context.Background(), runDate(t))
	require.NoError(t, err)
	require.Equal(t, 2, report.MasterRows)

	master, err := norma.ReadFile(filepath.Join(dataDir, "base-infoleg-normativa-nacional.csv"))
	require.NoError(t, err)
	require.Equal(t, []int64{100, 333}, []int64{master[0].IDNorma, master[1].IDNorma})
}

func TestRunReportsMergeFailure(t *testing.T) {
	wh := &fakeWarehouse{mergeErr: errors.New("model unavailable")}
	p, _, _ := newTestPipeline(t,
		&fakeSearcher{ids: []int64{111}}, &fakeFetcher{}, wh)

	_, err := p.Run(context.Background(), runDate(t))
	require.Error(t, err)
	require.Contains(t, err.Error(), "embedding stage")
}
