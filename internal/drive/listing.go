package drive

import (
	"context"
	"strings"
	"time"

	"github.com/filedrive/filedrive/internal/objectstore"
	"github.com/rs/zerolog/log"
)

// RootName labels the first breadcrumb.
const RootName = "Root"

// Entry is one immediate child of a folder. Folder names and IDs end in "/".
type Entry struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	IsFolder     bool      `json:"is_folder"`
	Size         int64     `json:"size,omitempty"`
	LastModified time.Time `json:"last_modified,omitempty"`
}

// Breadcrumb is one navigable ancestor of the current folder.
type Breadcrumb struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// List returns the immediate children of the folder at path ("" is the root),
// folders first and otherwise in backend key order.
func (d *Drive) List(ctx context.Context, tenant TenantID, path string) ([]Entry, error) {
	if err := tenant.Validate(); err != nil {
		return nil, &Error{Op: OpList, Path: path, Kind: ErrNoTenant, Err: err}
	}
	folder, err := FolderPath(path)
	if err != nil {
		return nil, &Error{Op: OpList, Path: path, Kind: ErrInvalidPath, Err: err}
	}

	prefix := ToStorageKey(tenant, folder)
	objects, err := d.listTenant(ctx, prefix)
	if err != nil {
		return nil, &Error{Op: OpList, Path: folder, Kind: ErrList, Err: err}
	}

	owned := objects[:0:0]
	for _, obj := range objects {
		if _, err := ToLogicalPath(tenant, obj.Key); err != nil {
			log.Warn().Str("tenant", string(tenant)).Str("key", obj.Key).Msg("skipping key outside tenant prefix")
			continue
		}
		owned = append(owned, obj)
	}
	return projectLevel(folder, prefix, owned), nil
}

// projectLevel turns a flat prefix listing into one folder level.
func projectLevel(folder, prefix string, objects []objectstore.ObjectInfo) []Entry {
	var folders, files []Entry
	seen := make(map[string]bool)

	for _, obj := range objects {
		rest := strings.TrimPrefix(obj.Key, prefix)
		if rest == "" || rest == PlaceholderName {
			continue
		}

		name, isFolder := rest, false
		if idx := strings.Index(rest, "/"); idx >= 0 {
			name, isFolder = rest[:idx+1], true
		}
		if seen[name] {
			continue
		}
		seen[name] = true

		if isFolder {
			folders = append(folders, Entry{ID: folder + name, Name: name, IsFolder: true})
			continue
		}
		files = append(files, Entry{
			ID:           folder + name,
			Name:         name,
			Size:         obj.Size,
			LastModified: obj.LastModified,
		})
	}

	return append(append(make([]Entry, 0, len(folders)+len(files)), folders...), files...)
}

// Breadcrumbs returns the navigation trail for path, root first. Empty
// segments are skipped.
func Breadcrumbs(path string) []Breadcrumb {
	crumbs := []Breadcrumb{{Name: RootName, Path: ""}}
	current := ""
	for _, seg := range strings.Split(strings.TrimLeft(path, "/"), "/") {
		if seg == "" {
			continue
		}
		current += seg + "/"
		crumbs = append(crumbs, Breadcrumb{Name: seg, Path: current})
	}
	return crumbs
}
