package drive

import (
	"context"
	"errors"
	"testing"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(entries []Entry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Name)
	}
	return out
}

func TestListDedupFoldersFirst(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/x.txt", "a/y.txt", "b.txt")

	entries, err := d.List(context.Background(), "1", "")
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, Entry{ID: "a/", Name: "a/", IsFolder: true}, entries[0])
	assert.Equal(t, "b.txt", entries[1].ID)
	assert.Equal(t, "b.txt", entries[1].Name)
	assert.False(t, entries[1].IsFolder)
	assert.Equal(t, int64(len("b.txt")), entries[1].Size)
	assert.False(t, entries[1].LastModified.IsZero())
}

func TestListPlaceholderInvisible(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "f/.keep")

	root, err := d.List(context.Background(), "1", "")
	require.NoError(t, err)
	require.Len(t, root, 1)
	assert.Equal(t, "f/", root[0].Name)
	assert.True(t, root[0].IsFolder)

	inside, err := d.List(context.Background(), "1", "f/")
	require.NoError(t, err)
	assert.NotNil(t, inside)
	assert.Empty(t, inside)
}

func TestListSubfolder(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/b/c.txt", "a/d.txt", "a/.keep", "e.txt")

	for _, path := range []string{"a/", "a", "/a"} {
		entries, err := d.List(context.Background(), "1", path)
		require.NoError(t, err)
		assert.Equal(t, []string{"b/", "d.txt"}, names(entries), path)
		assert.Equal(t, "a/b/", entries[0].ID)
		assert.Equal(t, "a/d.txt", entries[1].ID)
	}
}

func TestListSkipsFolderMarkerKey(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a/", "a/x.txt")

	entries, err := d.List(context.Background(), "1", "a/")
	require.NoError(t, err)
	assert.Equal(t, []string{"x.txt"}, names(entries))
}

func TestProjectLevelStablePartition(t *testing.T) {
	objects := []objectstore.ObjectInfo{
		{Key: "p/b.txt"},
		{Key: "p/z/1"},
		{Key: "p/a.txt"},
		{Key: "p/c/2"},
		{Key: "p/z/3"},
	}
	entries := projectLevel("", "p/", objects)
	assert.Equal(t, []string{"z/", "c/", "b.txt", "a.txt"}, names(entries))
}

func TestListTenantIsolation(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "mine.txt")
	seed(t, store, "10", "theirs.txt")

	entries, err := d.List(context.Background(), "1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"mine.txt"}, names(entries))
}

func TestListSkipsForeignKeys(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "mine.txt")
	store.inject = []objectstore.ObjectInfo{{Key: "user-2-files/secret.txt"}}

	entries, err := d.List(context.Background(), "1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"mine.txt"}, names(entries))
}

func TestListPaginates(t *testing.T) {
	d, store := newTestDrive(t, 2)
	seed(t, store, "1", "a.txt", "b.txt", "c.txt", "d/e.txt", "f.txt")

	entries, err := d.List(context.Background(), "1", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"d/", "a.txt", "b.txt", "c.txt", "f.txt"}, names(entries))
	assert.Equal(t, 3, store.count("list"))
}

func TestListMissingBucketIsEmpty(t *testing.T) {
	d, _ := newTestDrive(t, 0)

	entries, err := d.List(context.Background(), "1", "")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestListErrors(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt")

	_, err := d.List(context.Background(), "", "")
	assert.ErrorIs(t, err, ErrNoTenant)

	_, err = d.List(context.Background(), "1", "../x")
	assert.ErrorIs(t, err, ErrInvalidPath)

	store.fail["list"] = errors.New("connection reset")
	_, err = d.List(context.Background(), "1", "")
	assert.ErrorIs(t, err, ErrList)
	assert.NotErrorIs(t, err, ErrBackendTimeout)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.Equal(t, OpList, derr.Op)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestListTimeout(t *testing.T) {
	d, store := newTestDrive(t, 0)
	seed(t, store, "1", "a.txt")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := d.List(ctx, "1", "")
	assert.ErrorIs(t, err, ErrList)
	assert.ErrorIs(t, err, ErrBackendTimeout)

	var derr *Error
	require.ErrorAs(t, err, &derr)
	assert.True(t, derr.Timeout())
}

func TestBreadcrumbs(t *testing.T) {
	tests := []struct {
		path string
		want []Breadcrumb
	}{
		{"", []Breadcrumb{{RootName, ""}}},
		{"a/b/", []Breadcrumb{{RootName, ""}, {"a", "a/"}, {"b", "a/b/"}}},
		{"a/b", []Breadcrumb{{RootName, ""}, {"a", "a/"}, {"b", "a/b/"}}},
		{"/a//b/", []Breadcrumb{{RootName, ""}, {"a", "a/"}, {"b", "a/b/"}}},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.want, Breadcrumbs(tt.path))
		})
	}
}
