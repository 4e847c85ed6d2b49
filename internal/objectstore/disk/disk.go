// Package disk provides an objectstore.Client that keeps objects in a local
// directory tree.
package disk

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
)

// Store keeps one directory per bucket. Object content is zstd-compressed,
// metadata sits in a JSON sidecar. Directory structure:
//
//	{dataDir}/
//	  tmp/                    # staging area for atomic writes
//	  buckets/
//	    {bucket}/
//	      _meta.json          # bucket metadata
//	      meta/
//	        {key}.json        # object metadata
//	      blobs/
//	        {key}.zst         # compressed content
//
// Suffixing every key keeps "a" and "a/b" from colliding on disk.
type Store struct {
	dataDir string
	mu      sync.RWMutex
}

// BucketMeta contains bucket metadata.
type BucketMeta struct {
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}

// NewStore creates a disk store rooted at dataDir.
func NewStore(dataDir string) (*Store, error) {
	for _, dir := range []string{"buckets", "tmp"} {
		if err := os.MkdirAll(filepath.Join(dataDir, dir), 0755); err != nil {
			return nil, fmt.Errorf("create %s dir: %w", dir, err)
		}
	}
	return &Store{dataDir: dataDir}, nil
}

// DataDir returns the root directory of the store.
func (s *Store) DataDir() string {
	return s.dataDir
}

// validateName rejects bucket names and keys that would escape or alias the
// store's directories.
func validateName(name string, allowTrailingSlash bool) error {
	if name == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.ContainsRune(name, 0) {
		return fmt.Errorf("null bytes not allowed")
	}
	if strings.Contains(name, "\\") {
		return fmt.Errorf("backslashes not allowed")
	}
	if strings.HasPrefix(name, "/") || filepath.IsAbs(name) {
		return fmt.Errorf("absolute paths not allowed")
	}
	parts := strings.Split(name, "/")
	for i, part := range parts {
		switch part {
		case "..":
			return fmt.Errorf("path traversal not allowed")
		case ".":
			return fmt.Errorf("relative segments not allowed")
		case "":
			if i == len(parts)-1 && allowTrailingSlash {
				continue
			}
			return fmt.Errorf("empty path segment")
		}
	}
	return nil
}

func validateBucket(bucket string) error {
	if err := validateName(bucket, false); err != nil {
		return fmt.Errorf("%w: bucket %q: %w", objectstore.ErrInvalidKey, bucket, err)
	}
	if strings.Contains(bucket, "/") {
		return fmt.Errorf("%w: bucket %q: slashes not allowed", objectstore.ErrInvalidKey, bucket)
	}
	return nil
}

func validateKey(key string) error {
	if err := validateName(key, true); err != nil {
		return fmt.Errorf("%w: key %q: %w", objectstore.ErrInvalidKey, key, err)
	}
	return nil
}

func ctxErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%w: %w", objectstore.ErrTimeout, err)
	}
	return nil
}

func (s *Store) bucketPath(bucket string) string {
	return filepath.Join(s.dataDir, "buckets", bucket)
}

func (s *Store) bucketMetaPath(bucket string) string {
	return filepath.Join(s.bucketPath(bucket), "_meta.json")
}

func (s *Store) metaDir(bucket string) string {
	return filepath.Join(s.bucketPath(bucket), "meta")
}

func (s *Store) objectMetaPath(bucket, key string) string {
	return filepath.Join(s.metaDir(bucket), filepath.FromSlash(key)+".json")
}

func (s *Store) blobPath(bucket, key string) string {
	return filepath.Join(s.bucketPath(bucket), "blobs", filepath.FromSlash(key)+".zst")
}

// bucketExists reports whether the bucket directory exists. Invalid names
// never exist. Caller must hold the lock.
func (s *Store) bucketExists(bucket string) bool {
	if validateBucket(bucket) != nil {
		return false
	}
	_, err := os.Stat(s.bucketMetaPath(bucket))
	return err == nil
}

// HeadBucket reports whether bucket exists.
func (s *Store) HeadBucket(ctx context.Context, bucket string) (bool, error) {
	if err := ctxErr(ctx); err != nil {
		return false, err
	}
	if err := validateBucket(bucket); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.bucketExists(bucket), nil
}

// CreateBucket creates a new bucket.
func (s *Store) CreateBucket(ctx context.Context, bucket string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := validateBucket(bucket); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bucketExists(bucket) {
		return objectstore.ErrBucketExists
	}
	if err := os.MkdirAll(s.metaDir(bucket), 0755); err != nil {
		return fmt.Errorf("create bucket dir: %w", err)
	}

	data, err := json.MarshalIndent(BucketMeta{Name: bucket, CreatedAt: time.Now().UTC()}, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal bucket meta: %w", err)
	}
	return s.writeAtomic(s.bucketMetaPath(bucket), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

// writeAtomic stages content in the tmp dir, fsyncs it and renames it into place.
func (s *Store) writeAtomic(dst string, write func(w io.Writer) error) error {
	tmp := filepath.Join(s.dataDir, "tmp", uuid.New().String())
	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	cleanup := func() {
		_ = f.Close()
		_ = os.Remove(tmp)
	}

	if err := write(f); err != nil {
		cleanup()
		return err
	}
	if err := f.Sync(); err != nil {
		cleanup()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0755); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("create parent dir: %w", err)
	}
	if err := os.Rename(tmp, dst); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}

func (s *Store) writeObjectMeta(bucket string, info objectstore.ObjectInfo) error {
	data, err := json.Marshal(info)
	if err != nil {
		return fmt.Errorf("marshal object meta: %w", err)
	}
	return s.writeAtomic(s.objectMetaPath(bucket, info.Key), func(w io.Writer) error {
		_, err := w.Write(data)
		return err
	})
}

func (s *Store) readObjectMeta(bucket, key string) (*objectstore.ObjectInfo, error) {
	data, err := os.ReadFile(s.objectMetaPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, fmt.Errorf("read object meta: %w", err)
	}
	var info objectstore.ObjectInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("parse object meta: %w", err)
	}
	return &info, nil
}

// PutObject compresses body into the blob file and writes its metadata.
func (s *Store) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := validateKey(key); err != nil {
		return err
	}
	if body == nil {
		body = strings.NewReader("")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bucketExists(bucket) {
		return objectstore.ErrBucketNotFound
	}

	hash := md5.New()
	var written int64
	err := s.writeAtomic(s.blobPath(bucket, key), func(w io.Writer) error {
		enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
		if err != nil {
			return fmt.Errorf("create encoder: %w", err)
		}
		n, err := io.Copy(io.MultiWriter(enc, hash), body)
		if err != nil {
			_ = enc.Close()
			return fmt.Errorf("write object: %w", err)
		}
		written = n
		return enc.Close()
	})
	if err != nil {
		return err
	}

	return s.writeObjectMeta(bucket, objectstore.ObjectInfo{
		Key:          key,
		Size:         written,
		ETag:         hex.EncodeToString(hash.Sum(nil)),
		LastModified: time.Now().UTC(),
	})
}

// GetObject returns a decompressing reader over the object's content.
func (s *Store) GetObject(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}
	if err := validateKey(key); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.bucketExists(bucket) {
		return nil, objectstore.ErrBucketNotFound
	}
	info, err := s.readObjectMeta(bucket, key)
	if err != nil {
		return nil, err
	}
	if info.Size == 0 {
		return io.NopCloser(strings.NewReader("")), nil
	}

	f, err := os.Open(s.blobPath(bucket, key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, objectstore.ErrObjectNotFound
		}
		return nil, fmt.Errorf("open blob: %w", err)
	}
	dec, err := zstd.NewReader(f)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create decoder: %w", err)
	}
	return &blobReader{dec: dec, file: f}, nil
}

// blobReader closes both the decoder and the underlying file.
type blobReader struct {
	dec  *zstd.Decoder
	file *os.File
}

func (r *blobReader) Read(p []byte) (int, error) {
	return r.dec.Read(p)
}

func (r *blobReader) Close() error {
	r.dec.Close()
	return r.file.Close()
}

// DeleteObject removes key. Missing keys are not an error.
func (s *Store) DeleteObject(ctx context.Context, bucket, key string) error {
	return s.DeleteObjects(ctx, bucket, []string{key})
}

// DeleteObjects removes every listed key.
func (s *Store) DeleteObjects(ctx context.Context, bucket string, keys []string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	for _, key := range keys {
		if err := validateKey(key); err != nil {
			return err
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bucketExists(bucket) {
		return objectstore.ErrBucketNotFound
	}

	var errs []error
	for _, key := range keys {
		for _, path := range []string{s.objectMetaPath(bucket, key), s.blobPath(bucket, key)} {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				errs = append(errs, fmt.Errorf("delete %s: %w", key, err))
			}
		}
	}
	return errors.Join(errs...)
}

// CopyObject duplicates the compressed blob without re-encoding it.
func (s *Store) CopyObject(ctx context.Context, bucket, srcKey, dstKey string) error {
	if err := ctxErr(ctx); err != nil {
		return err
	}
	if err := validateKey(srcKey); err != nil {
		return err
	}
	if err := validateKey(dstKey); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.bucketExists(bucket) {
		return objectstore.ErrBucketNotFound
	}
	info, err := s.readObjectMeta(bucket, srcKey)
	if err != nil {
		return err
	}

	src, err := os.Open(s.blobPath(bucket, srcKey))
	if err != nil {
		if os.IsNotExist(err) {
			return objectstore.ErrObjectNotFound
		}
		return fmt.Errorf("open blob: %w", err)
	}
	defer func() { _ = src.Close() }()

	err = s.writeAtomic(s.blobPath(bucket, dstKey), func(w io.Writer) error {
		_, err := io.Copy(w, src)
		return err
	})
	if err != nil {
		return err
	}

	info.Key = dstKey
	info.LastModified = time.Now().UTC()
	return s.writeObjectMeta(bucket, *info)
}

// ListObjects lists objects in a bucket with prefix filter and pagination.
// The walk starts at the deepest directory the prefix names.
func (s *Store) ListObjects(ctx context.Context, bucket string, opts objectstore.ListOptions) (*objectstore.ListPage, error) {
	if err := ctxErr(ctx); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.bucketExists(bucket) {
		return nil, objectstore.ErrBucketNotFound
	}

	metaDir := s.metaDir(bucket)
	root := metaDir
	if idx := strings.LastIndex(opts.Prefix, "/"); idx >= 0 {
		root = filepath.Join(metaDir, filepath.FromSlash(opts.Prefix[:idx+1]))
	}

	var objects []objectstore.ObjectInfo
	err := filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() || !strings.HasSuffix(path, ".json") {
			return nil
		}

		relPath, err := filepath.Rel(metaDir, path)
		if err != nil {
			return nil
		}
		key := filepath.ToSlash(strings.TrimSuffix(relPath, ".json"))
		if !strings.HasPrefix(key, opts.Prefix) {
			return nil
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		var meta objectstore.ObjectInfo
		if err := json.Unmarshal(data, &meta); err != nil {
			return nil
		}
		objects = append(objects, meta)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk meta dir: %w", err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objectstore.Paginate(objects, opts), nil
}
