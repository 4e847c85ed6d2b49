package objectstore

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore is an in-process Client. Contents are lost when the process
// exits; it backs tests and the "memory" backend setting.
type MemoryStore struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memoryObject
}

type memoryObject struct {
	data         []byte
	etag         string
	lastModified time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		buckets: make(map[string]map[string]*memoryObject),
	}
}

// HeadBucket reports whether bucket exists.
func (s *MemoryStore) HeadBucket(ctx context.Context, bucket string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.buckets[bucket]
	return ok, nil
}

// CreateBucket creates bucket, failing with ErrBucketExists if present.
func (s *MemoryStore) CreateBucket(ctx context.Context, bucket string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if bucket == "" {
		return fmt.Errorf("%w: empty bucket name", ErrInvalidKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.buckets[bucket]; ok {
		return ErrBucketExists
	}
	s.buckets[bucket] = make(map[string]*memoryObject)
	return nil
}

// PutObject stores the full body under key, replacing any previous value.
func (s *MemoryStore) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if key == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}

	buf := &bytes.Buffer{}
	if size > 0 {
		buf.Grow(int(size))
	}
	if body != nil {
		if _, err := io.Copy(buf, body); err != nil {
			return fmt.Errorf("read object body: %w", err)
		}
	}

	sum := md5.Sum(buf.Bytes())

	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	objects[key] = &memoryObject{
		data:         buf.Bytes(),
		etag:         hex.EncodeToString(sum[:]),
		lastModified: time.Now().UTC(),
	}
	return nil
}

// GetObject returns a reader over a snapshot of the object's content.
func (s *MemoryStore) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, err := s.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(obj.data)), nil
}

// DeleteObject removes key. Deleting a missing key succeeds, as in S3.
func (s *MemoryStore) DeleteObject(ctx context.Context, bucket, key string) error {
	return s.DeleteObjects(ctx, bucket, []string{key})
}

// DeleteObjects removes every listed key in one step.
func (s *MemoryStore) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	objects, ok := s.buckets[bucket]
	if !ok {
		return ErrBucketNotFound
	}
	for _, key := range keys {
		delete(objects, key)
	}
	return nil
}

// CopyObject duplicates srcKey to dstKey within bucket.
func (s *MemoryStore) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	if dstKey == "" {
		return fmt.Errorf("%w: empty key", ErrInvalidKey)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	src, err := s.lookup(bucket, srcKey)
	if err != nil {
		return err
	}
	data := make([]byte, len(src.data))
	copy(data, src.data)
	s.buckets[bucket][dstKey] = &memoryObject{
		data:         data,
		etag:         src.etag,
		lastModified: time.Now().UTC(),
	}
	return nil
}

// ListObjects returns one page of keys under opts.Prefix in key order.
func (s *MemoryStore) ListObjects(ctx context.Context, bucket string, opts ListOptions) (*ListPage, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	s.mu.RLock()
	objects, ok := s.buckets[bucket]
	if !ok {
		s.mu.RUnlock()
		return nil, ErrBucketNotFound
	}
	var infos []ObjectInfo
	for key, obj := range objects {
		if !strings.HasPrefix(key, opts.Prefix) {
			continue
		}
		infos = append(infos, ObjectInfo{
			Key:          key,
			Size:         int64(len(obj.data)),
			ETag:         obj.etag,
			LastModified: obj.lastModified,
		})
	}
	s.mu.RUnlock()

	sort.Slice(infos, func(i, j int) bool { return infos[i].Key < infos[j].Key })
	return Paginate(infos, opts), nil
}

// lookup finds an object. Caller must hold the lock.
func (s *MemoryStore) lookup(bucket, key string) (*memoryObject, error) {
	objects, ok := s.buckets[bucket]
	if !ok {
		return nil, ErrBucketNotFound
	}
	obj, ok := objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return obj, nil
}
