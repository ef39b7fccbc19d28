package infoleg

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/koopa0/ragboletin/internal/log"
	"github.com/koopa0/ragboletin/internal/norma"
)

// recordingSink collects flushed batches and the instant each flush happened.
type recordingSink struct {
	mu      sync.Mutex
	batches [][]norma.Record
	at      []time.Time
	err     error
}

func (s *recordingSink) Append(records []norma.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	batch := make([]norma.Record, len(records))
	copy(batch, records)
	s.batches = append(s.batches, batch)
	s.at = append(s.at, time.Now())
	return nil
}

func (s *recordingSink) ids() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int64
	for _, batch := range s.batches {
		for _, rec := range batch {
			out = append(out, rec.IDNorma)
		}
	}
	return out
}

func normaServer(t *testing.T, statusByID map[int64]int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.URL.Query().Get("id"), 10, 64)
		require.NoError(t, err)
		if code, ok := statusByID[id]; ok && code != http.StatusOK {
			w.WriteHeader(code)
			return
		}
		fmt.Fprint(w, normaPageHTML(id))
	}))
}

func idRange(from, n int64) []int64 {
	ids := make([]int64, 0, n)
	for i := int64(0); i < n; i++ {
		ids = append(ids, from+i)
	}
	return ids
}

func TestFetchAllGroupsAndPacing(t *testing.T) {
	srv := normaServer(t, nil)
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL: srv.URL,
		Width:   10,
		Delay:   150 * time.Millisecond,
	}, srv.Client(), log.NewNop())

	sink := &recordingSink{}
	ids := idRange(1000, 25)
	n, err := f.FetchAll(context.Background(), ids, sink)
	require.NoError(t, err)
	require.Equal(t, 25, n)

	require.Len(t, sink.batches, 3)
	require.Len(t, sink.batches[0], 10)
	require.Len(t, sink.batches[1], 10)
	require.Len(t, sink.batches[2], 5)
	require.Equal(t, ids, sink.ids())

	// The delay sits between groups, so consecutive flushes are at least a
	// delay apart.
	require.GreaterOrEqual(t, sink.at[1].Sub(sink.at[0]), 150*time.Millisecond)
	require.GreaterOrEqual(t, sink.at[2].Sub(sink.at[1]), 150*time.Millisecond)
}

func TestFetchAllNoTrailingDelay(t *testing.T) {
	srv := normaServer(t, nil)
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL: srv.URL,
		Width:   10,
		Delay:   5 * time.Second,
	}, srv.Client(), log.NewNop())

	sink := &recordingSink{}
	start := time.Now()
	n, err := f.FetchAll(context.Background(), idRange(1, 10), sink)
	require.NoError(t, err)
	require.Equal(t, 10, n)
	require.Less(t, time.Since(start), 5*time.Second)
}

func TestFetchAllTrailingSlashBaseURL(t *testing.T) {
	srv := normaServer(t, nil)
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL: srv.URL + "/",
		Width:   5,
	}, srv.Client(), log.NewNop())

	sink := &recordingSink{}
	n, err := f.FetchAll(context.Background(), []int64{42}, sink)
	require.NoError(t, err)
	require.Equal(t, 1, n)
	require.Equal(t, []int64{42}, sink.ids())
}

func TestFetchAllIsolatesFailures(t *testing.T) {
	srv := normaServer(t, map[int64]int{1004: http.StatusInternalServerError})
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL: srv.URL,
		Width:   10,
	}, srv.Client(), log.NewNop())

	sink := &recordingSink{}
	n, err := f.FetchAll(context.Background(), idRange(1000, 10), sink)
	require.NoError(t, err)
	require.Equal(t, 9, n)
	require.Equal(t, []int64{1000, 1001, 1002, 1003, 1005, 1006, 1007, 1008, 1009}, sink.ids())
}

func TestFetchAllSkipsNotFound(t *testing.T) {
	srv := normaServer(t, map[int64]int{222: http.StatusNotFound})
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL: srv.URL,
		Width:   10,
	}, srv.Client(), log.NewNop())

	sink := &recordingSink{}
	n, err := f.FetchAll(context.Background(), []int64{111, 222, 333}, sink)
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.Equal(t, []int64{111, 333}, sink.ids())
}

func TestFetchAllRespectsDailyCap(t *testing.T) {
	srv := normaServer(t, nil)
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL:  srv.URL,
		Width:    10,
		DailyCap: 15,
	}, srv.Client(), log.NewNop())

	sink := &recordingSink{}
	ids := idRange(1, 40)
	n, err := f.FetchAll(context.Background(), ids, sink)
	require.NoError(t, err)
	require.Equal(t, 15, n)
	require.Equal(t, ids[:15], sink.ids())
}

func TestFetchAllSinkFailureAborts(t *testing.T) {
	srv := normaServer(t, nil)
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL: srv.URL,
		Width:   5,
	}, srv.Client(), log.NewNop())

	sinkErr := errors.New("disk full")
	sink := &recordingSink{err: sinkErr}
	_, err := f.FetchAll(context.Background(), idRange(1, 10), sink)
	require.ErrorIs(t, err, sinkErr)
}

func TestFetchAllContextCancellation(t *testing.T) {
	srv := normaServer(t, nil)
	defer srv.Close()

	f := NewFetcher(FetcherConfig{
		BaseURL: srv.URL,
		Width:   5,
		Delay:   time.Minute,
	}, srv.Client(), log.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	sink := &recordingSink{}
	_, err := f.FetchAll(ctx, idRange(1, 10), sink)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}
