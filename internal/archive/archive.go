// Package archive stores pipeline artifacts in an object store: the daily
// scrape files, the master dataset and its timestamped snapshots.
package archive

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound reports that the requested object does not exist in the store.
var ErrNotFound = errors.New("archive: object not found")

// Store is the object storage surface the pipeline needs. Implementations
// are Bucket for Google Cloud Storage and Dir for a local directory.
type Store interface {
	// Upload writes the object under name, replacing any previous content.
	Upload(ctx context.Context, name string, r io.Reader) error

	// Download streams the object's content. The caller must close the
	// returned reader. A missing object yields ErrNotFound.
	Download(ctx context.Context, name string) (io.ReadCloser, error)

	// Exists reports whether the object is present.
	Exists(ctx context.Context, name string) (bool, error)
}
