package metrics

import (
	"bytes"
	"context"
	"io"
	"path/filepath"
	"testing"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newInstrumented(t *testing.T) (objectstore.Client, *StoreMetrics) {
	t.Helper()
	m := NewStoreMetrics(prometheus.NewRegistry())
	c := Instrument(objectstore.NewMemoryStore(), m)
	require.NoError(t, c.CreateBucket(context.Background(), "files"))
	return c, m
}

func TestInstrumentNilMetrics(t *testing.T) {
	store := objectstore.NewMemoryStore()
	assert.Same(t, store, Instrument(store, nil))
}

func TestInstrumentCountsRequests(t *testing.T) {
	c, m := newInstrumented(t)
	ctx := context.Background()

	require.NoError(t, c.PutObject(ctx, "files", "a.txt", bytes.NewReader([]byte("hello")), 5))
	_, err := c.GetObject(ctx, "files", "missing")
	require.ErrorIs(t, err, objectstore.ErrObjectNotFound)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("create_bucket", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("put_object", StatusOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("get_object", StatusNotFound)))
	assert.Equal(t, 5.0, testutil.ToFloat64(m.BytesUploaded))
}

func TestInstrumentCountsDownloadedBytes(t *testing.T) {
	c, m := newInstrumented(t)
	ctx := context.Background()

	require.NoError(t, c.PutObject(ctx, "files", "a.txt", bytes.NewReader([]byte("hello world")), 11))
	rc, err := c.GetObject(ctx, "files", "a.txt")
	require.NoError(t, err)
	data, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())

	assert.Equal(t, "hello world", string(data))
	assert.Equal(t, 11.0, testutil.ToFloat64(m.BytesDownloaded))
}

func TestInstrumentCountsDeletedKeys(t *testing.T) {
	c, m := newInstrumented(t)
	ctx := context.Background()

	require.NoError(t, c.DeleteObjects(ctx, "files", []string{"a", "b", "c"}))
	require.NoError(t, c.DeleteObject(ctx, "files", "d"))

	assert.Equal(t, 4.0, testutil.ToFloat64(m.KeysDeleted))
}

func TestInstrumentTimeoutStatus(t *testing.T) {
	c, m := newInstrumented(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.ListObjects(ctx, "files", objectstore.ListOptions{})
	require.Error(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RequestsTotal.WithLabelValues("list_objects", StatusTimeout)))
}

func TestWriteTextfile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "filedrive.prom")
	require.NoError(t, WriteTextfile(path))
	assert.FileExists(t, path)
}
