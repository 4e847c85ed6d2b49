// Package drive presents a per-tenant folder tree over a flat object store.
//
// Folders are never stored. They are derived from "/" in object keys, and an
// otherwise empty folder is kept alive by a zero-byte placeholder object.
package drive

import (
	"context"
	"errors"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/rs/zerolog/log"
)

// Options configures a Drive.
type Options struct {
	// Bucket holds every tenant's objects.
	Bucket string
	// PageSize caps keys per listing request (0 = backend default).
	PageSize int
}

// Drive implements listing, search and mutation for all tenants of one bucket.
// It holds no mutable state and is safe for concurrent use when its client is.
type Drive struct {
	store    objectstore.Client
	bucket   string
	pageSize int
}

// New creates a Drive backed by store.
func New(store objectstore.Client, opts Options) (*Drive, error) {
	if store == nil {
		return nil, errors.New("object store client required")
	}
	if opts.Bucket == "" {
		return nil, errors.New("bucket name required")
	}
	return &Drive{
		store:    store,
		bucket:   opts.Bucket,
		pageSize: opts.PageSize,
	}, nil
}

// Bucket returns the bucket the drive operates on.
func (d *Drive) Bucket() string {
	return d.bucket
}

// ensureBucket creates the bucket on first use. A concurrent creator winning
// the race counts as success.
func (d *Drive) ensureBucket(ctx context.Context) error {
	exists, err := d.store.HeadBucket(ctx, d.bucket)
	if err != nil {
		return &Error{Op: OpProvisionStore, Path: d.bucket, Kind: ErrBucketProvision, Err: err}
	}
	if exists {
		return nil
	}

	if err := d.store.CreateBucket(ctx, d.bucket); err != nil && !errors.Is(err, objectstore.ErrBucketExists) {
		return &Error{Op: OpProvisionStore, Path: d.bucket, Kind: ErrBucketProvision, Err: err}
	}
	log.Info().Str("bucket", d.bucket).Msg("created bucket")
	return nil
}

// listTenant returns every object under the tenant-scoped prefix. A bucket
// that does not exist yet lists as empty.
func (d *Drive) listTenant(ctx context.Context, prefix string) ([]objectstore.ObjectInfo, error) {
	objects, err := objectstore.ListAll(ctx, d.store, d.bucket, prefix, d.pageSize)
	if errors.Is(err, objectstore.ErrBucketNotFound) {
		return nil, nil
	}
	return objects, err
}

// resolve validates tenant and p and returns the cleaned logical path with
// its storage key. ownership turns traversal attempts into ErrPermission.
func resolve(op string, tenant TenantID, p string, ownership bool) (string, string, error) {
	if err := tenant.Validate(); err != nil {
		return "", "", &Error{Op: op, Path: p, Kind: ErrNoTenant, Err: err}
	}
	logical, err := CleanPath(p)
	if err != nil {
		if ownership && errors.Is(err, errTraversal) {
			return "", "", &Error{Op: op, Path: p, Kind: ErrPermission, Err: err}
		}
		return "", "", &Error{Op: op, Path: p, Kind: ErrInvalidPath, Err: err}
	}

	key := ToStorageKey(tenant, logical)
	if ownership {
		if got, err := ToLogicalPath(tenant, key); err != nil || got != logical {
			return "", "", &Error{Op: op, Path: p, Kind: ErrPermission, Err: err}
		}
	}
	return logical, key, nil
}
