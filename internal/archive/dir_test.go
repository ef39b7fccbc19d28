package archive

import (
	"context"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDirUploadDownloadRoundTrip(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Upload(ctx, "daily_scrapes/normas_2025-10-06.csv", strings.NewReader("id,tipo\n1,Ley\n")))

	r, err := d.Download(ctx, "daily_scrapes/normas_2025-10-06.csv")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "id,tipo\n1,Ley\n", string(data))
}

func TestDirUploadReplacesContent(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	require.NoError(t, d.Upload(ctx, "master.csv", strings.NewReader("v1")))
	require.NoError(t, d.Upload(ctx, "master.csv", strings.NewReader("v2")))

	r, err := d.Download(ctx, "master.csv")
	require.NoError(t, err)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	require.Equal(t, "v2", string(data))
}

func TestDirDownloadMissing(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)

	_, err = d.Download(context.Background(), "nope.csv")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestDirExists(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	ok, err := d.Exists(ctx, "master.csv")
	require.NoError(t, err)
	require.False(t, ok)

	require.NoError(t, d.Upload(ctx, "master.csv", strings.NewReader("x")))

	ok, err = d.Exists(ctx, "master.csv")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestDirRejectsEscapingNames(t *testing.T) {
	d, err := NewDir(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, name := range []string{"../outside.csv", "/etc/passwd", "a/../../b"} {
		require.Error(t, d.Upload(ctx, name, strings.NewReader("x")), name)
	}
}
