package archive

import (
	"context"
	"errors"
	"fmt"
	"io"

	"cloud.google.com/go/storage"
)

// Bucket archives objects in a Google Cloud Storage bucket.
type Bucket struct {
	bucket *storage.BucketHandle
	name   string
}

// NewBucket wraps an existing GCS client. The client's lifecycle belongs to
// the caller.
func NewBucket(client *storage.Client, name string) *Bucket {
	return &Bucket{bucket: client.Bucket(name), name: name}
}

// Upload writes the object, replacing previous content. The write is only
// durable once Close succeeds, so its error is the upload's error.
func (b *Bucket) Upload(ctx context.Context, name string, r io.Reader) error {
	w := b.bucket.Object(name).NewWriter(ctx)
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return fmt.Errorf("uploading gs://%s/%s: %w", b.name, name, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("finalizing gs://%s/%s: %w", b.name, name, err)
	}
	return nil
}

func (b *Bucket) Download(ctx context.Context, name string) (io.ReadCloser, error) {
	r, err := b.bucket.Object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("opening gs://%s/%s: %w", b.name, name, err)
	}
	return r, nil
}

func (b *Bucket) Exists(ctx context.Context, name string) (bool, error) {
	_, err := b.bucket.Object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking gs://%s/%s: %w", b.name, name, err)
	}
	return true, nil
}
