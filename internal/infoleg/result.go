// Package infoleg scrapes legal norms from Argentina's Infoleg website:
// a date search over the Boletín Oficial index, a field extractor for one
// norma page, and a batched concurrent fetcher with inter-batch pacing.
package infoleg

import "github.com/koopa0/ragboletin/internal/norma"

// FetchStatus classifies the outcome of fetching one norma page.
type FetchStatus int

const (
	// StatusFound means the page was fetched and a record extracted.
	StatusFound FetchStatus = iota

	// StatusNotFound means the source returned 404 for the id. This is a
	// normal outcome, not an error.
	StatusNotFound

	// StatusFailed means the fetch or the extraction failed. Failures are
	// isolated per id and never abort a batch.
	StatusFailed
)

// FetchResult is the outcome of one fetch-and-extract operation.
// Expected "not found" and per-id failures are result variants rather than
// errors so the fetcher can drain a whole group regardless of outcomes.
type FetchResult struct {
	ID     int64
	Status FetchStatus

	// Record is valid only when Status is StatusFound.
	Record norma.Record

	// Err is set only when Status is StatusFailed.
	Err error
}

func found(r norma.Record) FetchResult {
	return FetchResult{ID: r.IDNorma, Status: StatusFound, Record: r}
}

func notFound(id int64) FetchResult {
	return FetchResult{ID: id, Status: StatusNotFound}
}

func failed(id int64, err error) FetchResult {
	return FetchResult{ID: id, Status: StatusFailed, Err: err}
}
