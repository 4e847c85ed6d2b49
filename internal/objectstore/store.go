// Package objectstore defines the flat key/blob storage contract the drive is
// built on, plus the backends that satisfy it.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// Object store error types.
var (
	ErrBucketExists   = errors.New("bucket already exists")
	ErrBucketNotFound = errors.New("bucket not found")
	ErrObjectNotFound = errors.New("object not found")
	ErrInvalidKey     = errors.New("invalid object key")
	ErrTimeout        = errors.New("backend timeout")
)

// DefaultMaxKeys is the page size used when ListOptions.MaxKeys is zero.
// It matches the S3 ListObjectsV2 server-side limit.
const DefaultMaxKeys = 1000

// ObjectInfo is the listing summary of a single object.
type ObjectInfo struct {
	Key          string    `json:"key"`
	Size         int64     `json:"size"`
	ETag         string    `json:"etag,omitempty"`
	LastModified time.Time `json:"last_modified"`
}

// ListOptions configures a single ListObjects page.
type ListOptions struct {
	// Prefix filters results to keys starting with this value.
	Prefix string

	// ContinuationToken resumes a previous listing. Empty starts from the
	// beginning.
	ContinuationToken string

	// MaxKeys limits the page size. Zero means DefaultMaxKeys.
	MaxKeys int
}

// ListPage is one page of a prefix listing, in ascending key order.
type ListPage struct {
	Objects []ObjectInfo

	// NextContinuationToken is set when IsTruncated is true.
	NextContinuationToken string
	IsTruncated           bool
}

// Client is a flat key/blob store. Keys are opaque strings; any "/" in them
// carries no meaning to the store.
//
// Implementations must return ErrObjectNotFound from GetObject and CopyObject
// for missing keys, ErrBucketNotFound for operations on a missing bucket, and
// errors matching ErrTimeout when a call was cut short by a deadline.
type Client interface {
	HeadBucket(ctx context.Context, bucket string) (bool, error)
	CreateBucket(ctx context.Context, bucket string) error
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error
	GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	DeleteObjects(ctx context.Context, bucket string, keys []string) error
	CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error
	ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListPage, error)
}

// ListAll follows continuation tokens until the listing is exhausted and
// returns every object under prefix.
func ListAll(ctx context.Context, c Client, bucket, prefix string, pageSize int) ([]ObjectInfo, error) {
	var (
		all   []ObjectInfo
		token string
	)
	for {
		page, err := c.ListObjects(ctx, bucket, ListOptions{
			Prefix:            prefix,
			ContinuationToken: token,
			MaxKeys:           pageSize,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, page.Objects...)

		if !page.IsTruncated || page.NextContinuationToken == "" {
			return all, nil
		}
		token = page.NextContinuationToken
	}
}

// IsTimeout reports whether err came from a deadline or cancellation,
// whether the backend tagged it with ErrTimeout or passed the context
// error through.
func IsTimeout(err error) bool {
	return errors.Is(err, ErrTimeout) ||
		errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, context.Canceled)
}

// Paginate slices a key-sorted object set into one page, treating the
// continuation token as the last key already returned. Backends that hold the
// full key set in hand (memory, disk) share it.
func Paginate(objects []ObjectInfo, opts ListOptions) *ListPage {
	maxKeys := opts.MaxKeys
	if maxKeys <= 0 {
		maxKeys = DefaultMaxKeys
	}

	start := 0
	if opts.ContinuationToken != "" {
		for start < len(objects) && objects[start].Key <= opts.ContinuationToken {
			start++
		}
	}
	objects = objects[start:]

	page := &ListPage{}
	if len(objects) > maxKeys {
		page.Objects = objects[:maxKeys]
		page.IsTruncated = true
		page.NextContinuationToken = objects[maxKeys-1].Key
	} else {
		page.Objects = objects
	}
	return page
}
