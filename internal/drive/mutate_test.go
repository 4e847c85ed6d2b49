package drive

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/filedrive/filedrive/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUploadProvisionsBucket(t *testing.T) {
	d, store := newTestDrive(t, 0)
	ctx := context.Background()

	got, err := d.Upload(ctx, "1", "/docs/a.txt", strings.NewReader("hello"), 5)
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", got)
	assert.Equal(t, 1, store.count("create_bucket"))
	assert.Equal(t, "hello", store.content(t, "user-1-files/docs/a.txt"))

	_, err = d.Upload(ctx, "1", "docs/a.txt", strings.NewReader("bye"), 3)
	require.NoError(t, err)
	assert.Equal(t, 1, store.count("create_bucket"))
	assert.Equal(t, "bye", store.content(t, "user-1-files/docs/a.txt"))
}

func TestUploadErrors(t *testing.T) {
	d, store := newTestDrive(t, 0)
	ctx := context.Background()

	for _, p := range []string{"", "docs/", "../a.txt"} {
		_, err := d.Upload(ctx, "1", p, strings.NewReader("x"), 1)
		assert.ErrorIs(t, err, ErrInvalidPath, p)
	}
	_, err := d.Upload(ctx, "", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrNoTenant)

	store.fail["head_bucket"] = errors.New("forbidden")
	_, err = d.Upload(ctx, "1", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrBucketProvision)
	delete(store.fail, "head_bucket")

	store.fail["put"] = errors.New("disk full")
	_, err = d.Upload(ctx, "1", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrUpload)
	assert.Contains(t, err.Error(), "disk full")
}

func TestUploadTimeout(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1")
	store.fail["put"] = objectstore.ErrTimeout

	_, err := d.Upload(context.Background(), "1", "a.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrUpload)
	assert.ErrorIs(t, err, ErrBackendTimeout)
}

func TestUploadInto(t *testing.T) {
	d, store := newTestDrive(t, 0)
	ctx := context.Background()

	got, err := d.UploadInto(ctx, "1", "docs", " report.pdf", strings.NewReader("pdf"), 3)
	require.NoError(t, err)
	assert.Equal(t, "docs/report.pdf", got)

	got, err = d.UploadInto(ctx, "1", "", "top.txt", strings.NewReader("t"), 1)
	require.NoError(t, err)
	assert.Equal(t, "top.txt", got)
	assert.True(t, store.has("user-1-files/top.txt"))

	_, err = d.UploadInto(ctx, "1", "docs", "a/b.txt", strings.NewReader("x"), 1)
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestDownload(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "docs/a.txt")
	ctx := context.Background()

	rc, err := d.Download(ctx, "1", "docs/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "docs/a.txt", testutil.ReadAll(t, rc))

	_, err = d.Download(ctx, "1", "docs/missing.txt")
	assert.ErrorIs(t, err, ErrDownload)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.True(t, IsNotFound(err))

	_, err = d.Download(ctx, "2", "docs/a.txt")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = d.Download(ctx, "1", "docs/")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestDeleteFolderRecursive(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/x", "a/y/z", "ab.txt")

	require.NoError(t, d.Delete(context.Background(), "1", "a/"))
	assert.Equal(t, 1, store.count("delete_batch"))
	assert.Equal(t, 0, store.count("delete"))
	assert.False(t, store.has("user-1-files/a/x"))
	assert.False(t, store.has("user-1-files/a/y/z"))
	assert.True(t, store.has("user-1-files/ab.txt"))
}

func TestDeleteFolderWithoutSlash(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/x", "a/y/z", "ab.txt")

	require.NoError(t, d.Delete(context.Background(), "1", "a"))
	assert.False(t, store.has("user-1-files/a/x"))
	assert.True(t, store.has("user-1-files/ab.txt"))
}

func TestDeleteFileExactKey(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt", "a.txt.bak", "a.txt/inner")

	require.NoError(t, d.Delete(context.Background(), "1", "a.txt"))
	assert.False(t, store.has("user-1-files/a.txt"))
	assert.True(t, store.has("user-1-files/a.txt.bak"))
	assert.True(t, store.has("user-1-files/a.txt/inner"))
}

func TestDeleteNotFound(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt")

	err := d.Delete(context.Background(), "1", "b.txt")
	assert.ErrorIs(t, err, ErrDelete)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.mutations())
}

func TestDeletePermissionBoundary(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "2", "secret.txt")
	ctx := context.Background()

	for _, p := range []string{"../user-2-files/secret.txt", "a/../../user-2-files/secret.txt"} {
		err := d.Delete(ctx, "1", p)
		assert.ErrorIs(t, err, ErrPermission, p)
	}
	assert.Equal(t, 0, store.count("list"))
	assert.Equal(t, 0, store.mutations())
	assert.True(t, store.has("user-2-files/secret.txt"))
}

func TestDeleteRejectsForeignListedKeys(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/x")
	store.inject = []objectstore.ObjectInfo{{Key: "user-2-files/a/x"}}

	err := d.Delete(context.Background(), "1", "a/")
	assert.ErrorIs(t, err, ErrPermission)
	assert.Equal(t, 0, store.mutations())
	assert.True(t, store.has("user-1-files/a/x"))
}

func TestDeleteRootRefused(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt")

	for _, p := range []string{"", "/", "./"} {
		assert.ErrorIs(t, d.Delete(context.Background(), "1", p), ErrInvalidPath, p)
	}
	assert.True(t, store.has("user-1-files/a.txt"))
}

func TestDeleteBackendFailure(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt")
	store.fail["delete_batch"] = errors.New("boom")

	err := d.Delete(context.Background(), "1", "a.txt")
	assert.ErrorIs(t, err, ErrDelete)
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestRenamePreservesParent(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/b/old.txt")

	require.NoError(t, d.Rename(context.Background(), "1", "a/b/old.txt", "new.txt"))
	assert.False(t, store.has("user-1-files/a/b/old.txt"))
	assert.Equal(t, "a/b/old.txt", store.content(t, "user-1-files/a/b/new.txt"))
}

func TestRenameAtRoot(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "old.txt")

	require.NoError(t, d.Rename(context.Background(), "1", "old.txt", "new.txt"))
	assert.True(t, store.has("user-1-files/new.txt"))
	assert.False(t, store.has("user-1-files//new.txt"))
}

func TestRenameFolder(t *testing.T) {
	for _, path := range []string{"a/", "a"} {
		t.Run(path, func(t *testing.T) {
			d, store := newTestDrive(t, 0)
			seed(t, store, "1", "a/x", "a/y/z", "a/.keep", "ab.txt")

			require.NoError(t, d.Rename(context.Background(), "1", path, "renamed"))
			for _, k := range []string{"renamed/x", "renamed/y/z", "renamed/.keep", "ab.txt"} {
				assert.True(t, store.has("user-1-files/"+k), k)
			}
			for _, k := range []string{"a/x", "a/y/z", "a/.keep"} {
				assert.False(t, store.has("user-1-files/"+k), k)
			}
			assert.Equal(t, 1, store.count("delete_batch"))
		})
	}
}

func TestRenameSameNameNoop(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/old.txt")

	require.NoError(t, d.Rename(context.Background(), "1", "a/old.txt", "old.txt"))
	assert.Equal(t, 0, store.mutations())
}

func TestRenameCopyFailure(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "old.txt")
	store.fail["copy"] = errors.New("copy refused")

	err := d.Rename(context.Background(), "1", "old.txt", "new.txt")
	var rerr *RenameError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, RenameStageCopy, rerr.Stage)
	assert.Equal(t, "old.txt", rerr.From)
	assert.Equal(t, "new.txt", rerr.To)
	assert.ErrorIs(t, err, ErrRename)
	assert.True(t, store.has("user-1-files/old.txt"))
	assert.False(t, store.has("user-1-files/new.txt"))
}

func TestRenameDeleteFailure(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "old.txt")
	store.fail["delete"] = objectstore.ErrTimeout

	err := d.Rename(context.Background(), "1", "old.txt", "new.txt")
	var rerr *RenameError
	require.ErrorAs(t, err, &rerr)
	assert.Equal(t, RenameStageDelete, rerr.Stage)
	assert.ErrorIs(t, err, ErrRename)
	assert.ErrorIs(t, err, ErrBackendTimeout)
	assert.True(t, rerr.Timeout())
	assert.True(t, store.has("user-1-files/old.txt"))
	assert.True(t, store.has("user-1-files/new.txt"))
}

func TestRenameNotFound(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt")

	err := d.Rename(context.Background(), "1", "missing.txt", "b.txt")
	assert.ErrorIs(t, err, ErrRename)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, 0, store.mutations())
}

func TestRenameValidation(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt")
	ctx := context.Background()

	assert.ErrorIs(t, d.Rename(ctx, "1", "a.txt", "x/y.txt"), ErrInvalidPath)
	assert.ErrorIs(t, d.Rename(ctx, "1", "a.txt", ".."), ErrInvalidPath)
	assert.ErrorIs(t, d.Rename(ctx, "1", "", "b.txt"), ErrInvalidPath)
	assert.ErrorIs(t, d.Rename(ctx, "1", "../user-2-files/a.txt", "b.txt"), ErrPermission)
	assert.ErrorIs(t, d.Rename(ctx, "", "a.txt", "b.txt"), ErrNoTenant)
	assert.Equal(t, 0, store.mutations())
}

func TestCreateFolder(t *testing.T) {
	d, store := newTestDrive(t, 0)
	ctx := context.Background()

	require.NoError(t, d.CreateFolder(ctx, "1", "new"))
	require.NoError(t, d.CreateFolder(ctx, "1", "new/"))
	assert.True(t, store.has("user-1-files/new/.keep"))

	root, err := d.List(ctx, "1", "")
	require.NoError(t, err)
	assert.Equal(t, []Entry{{ID: "new/", Name: "new/", IsFolder: true}}, root)

	inside, err := d.List(ctx, "1", "new/")
	require.NoError(t, err)
	assert.Empty(t, inside)

	assert.ErrorIs(t, d.CreateFolder(ctx, "1", ""), ErrInvalidPath)
}

func TestCreateFolderIn(t *testing.T) {
	d, store := newTestDrive(t, 0)
	ctx := context.Background()

	got, err := d.CreateFolderIn(ctx, "1", "a/", "b")
	require.NoError(t, err)
	assert.Equal(t, "a/b/", got)
	assert.True(t, store.has("user-1-files/a/b/.keep"))

	got, err = d.CreateFolderIn(ctx, "1", "", "top")
	require.NoError(t, err)
	assert.Equal(t, "top/", got)

	_, err = d.CreateFolderIn(ctx, "1", "a/", "x/y")
	assert.ErrorIs(t, err, ErrInvalidPath)
}

func TestCreateFolderFailure(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1")
	store.fail["put"] = errors.New("read-only")

	err := d.CreateFolder(context.Background(), "1", "x")
	assert.ErrorIs(t, err, ErrCreateFolder)
}

func TestErrorMessages(t *testing.T) {
	err := &Error{Op: OpDelete, Path: "a.txt", Kind: ErrDelete, Err: errors.New("boom")}
	assert.Equal(t, `delete "a.txt": delete failed: boom`, err.Error())
	assert.False(t, err.Timeout())

	rerr := &RenameError{From: "a", To: "b", Stage: RenameStageDelete, Err: errors.New("boom")}
	assert.Equal(t, `rename "a" to "b": delete step failed: boom`, rerr.Error())
}
