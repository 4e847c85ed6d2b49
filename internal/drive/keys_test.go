package drive

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyRoundTrip(t *testing.T) {
	paths := []string{"", "a.txt", "a/", "a/b/c.txt", "with space/ü.txt", "a/.keep", "x//y"}
	for _, tenant := range []TenantID{"1", "42", "alice"} {
		for _, p := range paths {
			got, err := ToLogicalPath(tenant, ToStorageKey(tenant, p))
			require.NoError(t, err)
			assert.Equal(t, p, got)
		}
	}
}

func TestKeyPrefixIsolation(t *testing.T) {
	pairs := []struct{ owner, other TenantID }{
		{"1", "2"},
		{"1", "10"},
		{"10", "1"},
		{"alice", "alice2"},
	}
	for _, pair := range pairs {
		for _, p := range []string{"", "a.txt", "a/b/"} {
			_, err := ToLogicalPath(pair.owner, ToStorageKey(pair.other, p))
			assert.ErrorIs(t, err, ErrKeyFormat, "owner %s other %s path %q", pair.owner, pair.other, p)
		}
	}
}

func TestTenantPrefix(t *testing.T) {
	assert.Equal(t, "user-7-files/", TenantPrefix("7"))
	assert.Equal(t, "user-7-files/docs/a.txt", ToStorageKey("7", "docs/a.txt"))
}

func TestTenantValidate(t *testing.T) {
	assert.NoError(t, TenantID("1").Validate())
	assert.ErrorIs(t, TenantID("").Validate(), ErrNoTenant)
	assert.ErrorIs(t, TenantID("1/../2").Validate(), ErrNoTenant)

	_, err := ToLogicalPath("", "user--files/a")
	assert.ErrorIs(t, err, ErrKeyFormat)
}

func TestCleanPath(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"", "", false},
		{"/", "", false},
		{"a.txt", "a.txt", false},
		{"/a/b.txt", "a/b.txt", false},
		{"a//b/", "a/b/", false},
		{"./a/./b", "a/b", false},
		{"a/b/", "a/b/", false},
		{"../x", "", true},
		{"a/../../x", "", true},
		{"a\\b", "", true},
		{"a\x00b", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := CleanPath(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidPath)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := CleanPath("a/../b")
	assert.True(t, errors.Is(err, errTraversal))
}

func TestFolderPath(t *testing.T) {
	for in, want := range map[string]string{"": "", "a": "a/", "a/": "a/", "/a//b": "a/b/"} {
		got, err := FolderPath(in)
		require.NoError(t, err)
		assert.Equal(t, want, got, in)
	}
}

func TestCleanName(t *testing.T) {
	got, err := CleanName("  report.pdf ")
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got)

	for _, bad := range []string{"", "   ", ".", "..", "a/b", "a\\b", PlaceholderName} {
		_, err := CleanName(bad)
		assert.ErrorIs(t, err, ErrInvalidPath, "name %q", bad)
	}
}

func TestRenameTarget(t *testing.T) {
	assert.Equal(t, "a/b/new.txt", renameTarget("a/b/old.txt", "new.txt"))
	assert.Equal(t, "new.txt", renameTarget("old.txt", "new.txt"))
	assert.Equal(t, "a/z/", renameTarget("a/b/", "z"))
	assert.Equal(t, "z/", renameTarget("b/", "z"))
}
