package drive

import (
	"errors"
	"fmt"
	"strings"
)

// PlaceholderName is the zero-byte object that keeps an empty folder visible.
const PlaceholderName = ".keep"

// errTraversal marks a path that tried to climb out of the tenant root.
var errTraversal = errors.New("path traversal not allowed")

// TenantID identifies the user whose files are scoped under one key prefix.
type TenantID string

// Validate reports whether t can be used to build storage keys.
func (t TenantID) Validate() error {
	if t == "" {
		return ErrNoTenant
	}
	if strings.ContainsAny(string(t), "/\\\x00") {
		return fmt.Errorf("%w: invalid tenant %q", ErrNoTenant, string(t))
	}
	return nil
}

// TenantPrefix returns the key prefix that scopes every object of tenant.
func TenantPrefix(tenant TenantID) string {
	return "user-" + string(tenant) + "-files/"
}

// ToStorageKey maps a logical path to its flat storage key. It performs no
// validation; callers clean the path first.
func ToStorageKey(tenant TenantID, logicalPath string) string {
	return TenantPrefix(tenant) + logicalPath
}

// ToLogicalPath strips the tenant prefix from key. A key outside the
// tenant's prefix fails with ErrKeyFormat and must not be shown to tenant.
func ToLogicalPath(tenant TenantID, key string) (string, error) {
	if err := tenant.Validate(); err != nil {
		return "", &Error{Op: OpDecodeKey, Path: key, Kind: ErrKeyFormat, Err: err}
	}
	prefix := TenantPrefix(tenant)
	if !strings.HasPrefix(key, prefix) {
		return "", &Error{Op: OpDecodeKey, Path: key, Kind: ErrKeyFormat}
	}
	return key[len(prefix):], nil
}

// CleanPath normalises a caller-supplied logical path: leading slashes,
// empty segments and "." segments are dropped, a trailing slash is kept.
// ".." segments, backslashes and NUL bytes are rejected. The root is "".
func CleanPath(p string) (string, error) {
	if strings.ContainsRune(p, 0) {
		return "", fmt.Errorf("%w: %q: null bytes not allowed", ErrInvalidPath, p)
	}
	if strings.Contains(p, "\\") {
		return "", fmt.Errorf("%w: %q: backslashes not allowed", ErrInvalidPath, p)
	}

	trailing := strings.HasSuffix(p, "/")
	var parts []string
	for _, seg := range strings.Split(p, "/") {
		switch seg {
		case "", ".":
			continue
		case "..":
			return "", fmt.Errorf("%w: %q: %w", ErrInvalidPath, p, errTraversal)
		}
		parts = append(parts, seg)
	}
	if len(parts) == 0 {
		return "", nil
	}

	cleaned := strings.Join(parts, "/")
	if trailing {
		cleaned += "/"
	}
	return cleaned, nil
}

// FolderPath cleans p and returns it in folder form (trailing slash), or ""
// for the root.
func FolderPath(p string) (string, error) {
	cleaned, err := CleanPath(p)
	if err != nil {
		return "", err
	}
	if cleaned != "" && !strings.HasSuffix(cleaned, "/") {
		cleaned += "/"
	}
	return cleaned, nil
}

// CleanName validates a single path segment used as a new file or folder name.
func CleanName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	switch {
	case trimmed == "":
		return "", fmt.Errorf("%w: empty name", ErrInvalidPath)
	case trimmed == "." || trimmed == "..":
		return "", fmt.Errorf("%w: %q: %w", ErrInvalidPath, name, errTraversal)
	case trimmed == PlaceholderName:
		return "", fmt.Errorf("%w: %q is reserved", ErrInvalidPath, name)
	case strings.ContainsAny(trimmed, "/\\\x00"):
		return "", fmt.Errorf("%w: %q: name must be a single segment", ErrInvalidPath, name)
	}
	return trimmed, nil
}

// parentOf returns the folder containing logicalPath ("" at the root).
func parentOf(logicalPath string) string {
	trimmed := strings.TrimSuffix(logicalPath, "/")
	idx := strings.LastIndex(trimmed, "/")
	if idx < 0 {
		return ""
	}
	return trimmed[:idx+1]
}

// renameTarget replaces only the final segment of logicalPath with name,
// keeping the folder form when logicalPath is a folder.
func renameTarget(logicalPath, name string) string {
	target := parentOf(logicalPath) + name
	if strings.HasSuffix(logicalPath, "/") {
		target += "/"
	}
	return target
}
