package metrics

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/prometheus/client_golang/prometheus"
)

// Request status label values.
const (
	StatusOK       = "ok"
	StatusNotFound = "not_found"
	StatusTimeout  = "timeout"
	StatusError    = "error"
)

// instrumentedStore records StoreMetrics around every call to the wrapped client.
type instrumentedStore struct {
	next    objectstore.Client
	metrics *StoreMetrics
}

// Instrument wraps c so that every call is counted and timed in m.
// A nil m returns c unchanged.
func Instrument(c objectstore.Client, m *StoreMetrics) objectstore.Client {
	if m == nil {
		return c
	}
	return &instrumentedStore{next: c, metrics: m}
}

func statusOf(err error) string {
	switch {
	case err == nil:
		return StatusOK
	case objectstore.IsTimeout(err):
		return StatusTimeout
	case errors.Is(err, objectstore.ErrObjectNotFound), errors.Is(err, objectstore.ErrBucketNotFound):
		return StatusNotFound
	default:
		return StatusError
	}
}

func (s *instrumentedStore) observe(operation string, start time.Time, err error) {
	s.metrics.RecordRequest(operation, statusOf(err), time.Since(start).Seconds())
}

func (s *instrumentedStore) HeadBucket(ctx context.Context, bucket string) (bool, error) {
	start := time.Now()
	ok, err := s.next.HeadBucket(ctx, bucket)
	s.observe("head_bucket", start, err)
	return ok, err
}

func (s *instrumentedStore) CreateBucket(ctx context.Context, bucket string) error {
	start := time.Now()
	err := s.next.CreateBucket(ctx, bucket)
	s.observe("create_bucket", start, err)
	return err
}

func (s *instrumentedStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	start := time.Now()
	var cr *countingReader
	if body != nil {
		cr = &countingReader{r: body}
		body = cr
	}
	err := s.next.PutObject(ctx, bucket, key, body, size)
	s.observe("put_object", start, err)
	if err == nil && cr != nil {
		s.metrics.BytesUploaded.Add(float64(cr.n))
	}
	return err
}

func (s *instrumentedStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.next.GetObject(ctx, bucket, key)
	s.observe("get_object", start, err)
	if err != nil {
		return nil, err
	}
	return &countingReadCloser{ReadCloser: rc, counter: s.metrics.BytesDownloaded}, nil
}

func (s *instrumentedStore) DeleteObject(ctx context.Context, bucket, key string) error {
	start := time.Now()
	err := s.next.DeleteObject(ctx, bucket, key)
	s.observe("delete_object", start, err)
	if err == nil {
		s.metrics.KeysDeleted.Inc()
	}
	return err
}

func (s *instrumentedStore) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	start := time.Now()
	err := s.next.DeleteObjects(ctx, bucket, keys)
	s.observe("delete_objects", start, err)
	if err == nil {
		s.metrics.KeysDeleted.Add(float64(len(keys)))
	}
	return err
}

func (s *instrumentedStore) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	start := time.Now()
	err := s.next.CopyObject(ctx, bucket, srcKey, dstKey)
	s.observe("copy_object", start, err)
	return err
}

func (s *instrumentedStore) ListObjects(ctx context.Context, bucket string, opts objectstore.ListOptions) (*objectstore.ListPage, error) {
	start := time.Now()
	page, err := s.next.ListObjects(ctx, bucket, opts)
	s.observe("list_objects", start, err)
	return page, err
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type countingReadCloser struct {
	io.ReadCloser
	counter prometheus.Counter
}

func (c *countingReadCloser) Read(p []byte) (int, error) {
	n, err := c.ReadCloser.Read(p)
	if n > 0 {
		c.counter.Add(float64(n))
	}
	return n, err
}
