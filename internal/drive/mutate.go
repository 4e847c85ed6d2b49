package drive

import (
	"context"
	"errors"
	"io"
	"strings"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/rs/zerolog/log"
)

// Upload stores content at path, replacing any existing file, and returns
// the cleaned logical path. size may be -1 when unknown.
func (d *Drive) Upload(ctx context.Context, tenant TenantID, path string, content io.Reader, size int64) (string, error) {
	logical, key, err := resolve(OpUpload, tenant, path, false)
	if err != nil {
		return "", err
	}
	if logical == "" || strings.HasSuffix(logical, "/") {
		return "", &Error{Op: OpUpload, Path: path, Kind: ErrInvalidPath, Err: errors.New("file path required")}
	}

	if err := d.ensureBucket(ctx); err != nil {
		return "", err
	}
	if err := d.store.PutObject(ctx, d.bucket, key, content, size); err != nil {
		return "", &Error{Op: OpUpload, Path: logical, Kind: ErrUpload, Err: err}
	}

	log.Debug().Str("tenant", string(tenant)).Str("path", logical).Int64("size", size).Msg("uploaded file")
	return logical, nil
}

// UploadInto stores content as fileName inside folder.
func (d *Drive) UploadInto(ctx context.Context, tenant TenantID, folder, fileName string, content io.Reader, size int64) (string, error) {
	dir, err := FolderPath(folder)
	if err != nil {
		return "", &Error{Op: OpUpload, Path: folder, Kind: ErrInvalidPath, Err: err}
	}
	name, err := CleanName(fileName)
	if err != nil {
		return "", &Error{Op: OpUpload, Path: fileName, Kind: ErrInvalidPath, Err: err}
	}
	return d.Upload(ctx, tenant, dir+name, content, size)
}

// Download opens the file at path. The caller closes the reader.
func (d *Drive) Download(ctx context.Context, tenant TenantID, path string) (io.ReadCloser, error) {
	logical, key, err := resolve(OpDownload, tenant, path, false)
	if err != nil {
		return nil, err
	}
	if logical == "" || strings.HasSuffix(logical, "/") {
		return nil, &Error{Op: OpDownload, Path: path, Kind: ErrInvalidPath, Err: errors.New("file path required")}
	}

	rc, err := d.store.GetObject(ctx, d.bucket, key)
	if err != nil {
		return nil, &Error{Op: OpDownload, Path: logical, Kind: ErrDownload, Err: notFoundCause(err)}
	}
	return rc, nil
}

// Delete removes the file at path, or every object under it when path names
// a folder. Nothing is mutated unless every matched key belongs to tenant.
func (d *Drive) Delete(ctx context.Context, tenant TenantID, path string) error {
	logical, key, err := resolve(OpDelete, tenant, path, true)
	if err != nil {
		return err
	}
	if logical == "" {
		return &Error{Op: OpDelete, Path: path, Kind: ErrInvalidPath, Err: errors.New("refusing to delete the root folder")}
	}

	keys, err := d.matchKeys(ctx, OpDelete, tenant, logical, key)
	if err != nil {
		return err
	}
	if err := d.store.DeleteObjects(ctx, d.bucket, keys); err != nil {
		return &Error{Op: OpDelete, Path: logical, Kind: ErrDelete, Err: err}
	}

	log.Debug().Str("tenant", string(tenant)).Str("path", logical).Int("keys", len(keys)).Msg("deleted")
	return nil
}

// matchKeys lists the keys a delete or rename of logical applies to: the
// exact key for a file, everything under the prefix for a folder. A file path
// with no exact match falls back to the folder of the same name.
func (d *Drive) matchKeys(ctx context.Context, op string, tenant TenantID, logical, key string) ([]string, error) {
	kind := ErrDelete
	if op == OpRename {
		kind = ErrRename
	}

	objects, err := d.listTenant(ctx, key)
	if err != nil {
		return nil, &Error{Op: op, Path: logical, Kind: kind, Err: err}
	}

	var exact, nested []string
	for _, obj := range objects {
		if _, err := ToLogicalPath(tenant, obj.Key); err != nil {
			return nil, &Error{Op: op, Path: obj.Key, Kind: ErrPermission, Err: err}
		}
		switch {
		case strings.HasSuffix(key, "/"):
			nested = append(nested, obj.Key)
		case obj.Key == key:
			exact = append(exact, obj.Key)
		case strings.HasPrefix(obj.Key, key+"/"):
			nested = append(nested, obj.Key)
		}
	}

	if len(exact) > 0 {
		return exact, nil
	}
	if len(nested) > 0 {
		return nested, nil
	}
	return nil, &Error{Op: op, Path: logical, Kind: kind, Err: ErrNotFound}
}

// Rename gives the file or folder at path a new final segment within the
// same parent. It copies then deletes; a *RenameError says which step failed.
func (d *Drive) Rename(ctx context.Context, tenant TenantID, path, newName string) error {
	logical, key, err := resolve(OpRename, tenant, path, true)
	if err != nil {
		return err
	}
	if logical == "" {
		return &Error{Op: OpRename, Path: path, Kind: ErrInvalidPath, Err: errors.New("cannot rename the root folder")}
	}
	name, err := CleanName(newName)
	if err != nil {
		return &Error{Op: OpRename, Path: newName, Kind: ErrInvalidPath, Err: err}
	}

	target := renameTarget(logical, name)
	if target == logical {
		return nil
	}

	keys, err := d.matchKeys(ctx, OpRename, tenant, logical, key)
	if err != nil {
		var derr *Error
		if errors.As(err, &derr) && errors.Is(derr.Err, ErrNotFound) {
			return &RenameError{From: logical, To: target, Stage: RenameStageCopy, Err: ErrNotFound}
		}
		return err
	}

	// A bare file path may have resolved to the folder of the same name.
	from, to := logical, target
	if len(keys) > 1 || keys[0] != key {
		from, to = strings.TrimSuffix(logical, "/")+"/", strings.TrimSuffix(target, "/")+"/"
	}
	oldPrefix, newPrefix := ToStorageKey(tenant, from), ToStorageKey(tenant, to)

	for _, k := range keys {
		dst := newPrefix + strings.TrimPrefix(k, oldPrefix)
		if err := d.store.CopyObject(ctx, d.bucket, k, dst); err != nil {
			return &RenameError{From: from, To: to, Stage: RenameStageCopy, Err: notFoundCause(err)}
		}
	}

	if err := d.deleteAll(ctx, keys); err != nil {
		log.Warn().Err(err).Str("tenant", string(tenant)).Str("from", from).Str("to", to).
			Msg("rename copied but old objects remain")
		return &RenameError{From: from, To: to, Stage: RenameStageDelete, Err: err}
	}

	log.Debug().Str("tenant", string(tenant)).Str("from", from).Str("to", to).Int("keys", len(keys)).Msg("renamed")
	return nil
}

func (d *Drive) deleteAll(ctx context.Context, keys []string) error {
	if len(keys) == 1 {
		return d.store.DeleteObject(ctx, d.bucket, keys[0])
	}
	return d.store.DeleteObjects(ctx, d.bucket, keys)
}

// CreateFolder makes an empty folder visible at path by writing its
// placeholder object. Creating an existing folder is a no-op.
func (d *Drive) CreateFolder(ctx context.Context, tenant TenantID, path string) error {
	logical, _, err := resolve(OpCreateFolder, tenant, path, false)
	if err != nil {
		return err
	}
	if logical == "" {
		return &Error{Op: OpCreateFolder, Path: path, Kind: ErrInvalidPath, Err: errors.New("folder path required")}
	}

	folder := strings.TrimSuffix(logical, "/") + "/"
	if err := d.ensureBucket(ctx); err != nil {
		return err
	}
	key := ToStorageKey(tenant, folder+PlaceholderName)
	if err := d.store.PutObject(ctx, d.bucket, key, strings.NewReader(""), 0); err != nil {
		return &Error{Op: OpCreateFolder, Path: folder, Kind: ErrCreateFolder, Err: err}
	}

	log.Debug().Str("tenant", string(tenant)).Str("path", folder).Msg("created folder")
	return nil
}

// CreateFolderIn creates folder name inside parent and returns its path.
func (d *Drive) CreateFolderIn(ctx context.Context, tenant TenantID, parent, name string) (string, error) {
	dir, err := FolderPath(parent)
	if err != nil {
		return "", &Error{Op: OpCreateFolder, Path: parent, Kind: ErrInvalidPath, Err: err}
	}
	clean, err := CleanName(name)
	if err != nil {
		return "", &Error{Op: OpCreateFolder, Path: name, Kind: ErrInvalidPath, Err: err}
	}

	folder := dir + clean + "/"
	if err := d.CreateFolder(ctx, tenant, folder); err != nil {
		return "", err
	}
	return folder, nil
}

// IsNotFound reports whether err means the addressed file or folder is missing.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, objectstore.ErrObjectNotFound)
}
