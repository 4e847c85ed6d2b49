package drive

import (
	"context"
	"strings"
)

// SearchResult is a file or folder whose name matched a query. FolderPath is
// the containing folder ("" at the root).
type SearchResult struct {
	Name       string `json:"name"`
	FolderPath string `json:"folder_path"`
	IsFolder   bool   `json:"is_folder"`
}

// ID returns the logical path of the match.
func (r SearchResult) ID() string {
	return r.FolderPath + r.Name
}

// Search finds every file and folder of tenant whose name contains query,
// ignoring case. A blank query matches nothing and skips the backend.
func (d *Drive) Search(ctx context.Context, tenant TenantID, query string) ([]SearchResult, error) {
	if err := tenant.Validate(); err != nil {
		return nil, &Error{Op: OpSearch, Kind: ErrNoTenant, Err: err}
	}
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return []SearchResult{}, nil
	}

	prefix := TenantPrefix(tenant)
	objects, err := d.listTenant(ctx, prefix)
	if err != nil {
		return nil, &Error{Op: OpSearch, Path: query, Kind: ErrSearch, Err: err}
	}

	keys := make([]string, 0, len(objects))
	for _, obj := range objects {
		if rel, err := ToLogicalPath(tenant, obj.Key); err == nil {
			keys = append(keys, rel)
		}
	}
	return matchPaths(keys, needle), nil
}

// matchPaths scans logical paths for names containing needle, which must
// already be lower-cased. Each folder is reported once, at its first sighting.
func matchPaths(paths []string, needle string) []SearchResult {
	results := []SearchResult{}
	seenFolders := make(map[string]bool)

	for _, p := range paths {
		segments := strings.Split(p, "/")
		last := len(segments) - 1

		parent, malformed := "", false
		for _, seg := range segments[:last] {
			if seg == "" {
				malformed = true
				break
			}
			folder := parent + seg + "/"
			if !seenFolders[folder] && strings.Contains(strings.ToLower(seg), needle) {
				seenFolders[folder] = true
				results = append(results, SearchResult{Name: seg + "/", FolderPath: parent, IsFolder: true})
			}
			parent = folder
		}

		name := segments[last]
		if malformed || name == "" || name == PlaceholderName {
			continue
		}
		if strings.Contains(strings.ToLower(name), needle) {
			results = append(results, SearchResult{Name: name, FolderPath: parent})
		}
	}
	return results
}
