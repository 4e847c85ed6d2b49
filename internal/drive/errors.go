package drive

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/filedrive/filedrive/internal/objectstore"
)

// Drive error kinds. Every error returned by a Drive matches exactly one of
// these with errors.Is, plus ErrNotFound and ErrBackendTimeout where they apply.
var (
	ErrBucketProvision = errors.New("bucket provisioning failed")
	ErrUpload          = errors.New("upload failed")
	ErrDownload        = errors.New("download failed")
	ErrNotFound        = errors.New("not found")
	ErrDelete          = errors.New("delete failed")
	ErrPermission      = errors.New("permission denied")
	ErrRename          = errors.New("rename failed")
	ErrSearch          = errors.New("search failed")
	ErrList            = errors.New("listing failed")
	ErrCreateFolder    = errors.New("folder creation failed")
	ErrKeyFormat       = errors.New("key outside tenant prefix")
	ErrBackendTimeout  = errors.New("backend timeout")
	ErrInvalidPath     = errors.New("invalid path")
	ErrNoTenant        = errors.New("tenant required")
)

// Operation names carried by Error.
const (
	OpList           = "list"
	OpSearch         = "search"
	OpUpload         = "upload"
	OpDownload       = "download"
	OpDelete         = "delete"
	OpRename         = "rename"
	OpCreateFolder   = "create folder"
	OpProvisionStore = "provision bucket"
	OpDecodeKey      = "decode key"
)

// Error describes a failed drive operation. Kind is one of the Err* values;
// Err is the underlying cause, if any.
type Error struct {
	Op   string
	Path string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	msg := e.Op
	if e.Path != "" {
		msg += " " + strconv.Quote(e.Path)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() []error {
	return withTimeout([]error{e.Kind}, e.Err)
}

// Timeout reports whether the backend call behind e ran out of time.
func (e *Error) Timeout() bool {
	return e.Err != nil && objectstore.IsTimeout(e.Err)
}

// RenameStage says which half of a copy-then-delete rename failed.
type RenameStage string

const (
	// RenameStageCopy means nothing was moved; the old object is intact.
	RenameStageCopy RenameStage = "copy"
	// RenameStageDelete means the copy landed but the old object still exists.
	RenameStageDelete RenameStage = "delete"
)

// RenameError reports a failed rename. With Stage RenameStageDelete both the
// old and the new object exist and the caller decides on cleanup.
type RenameError struct {
	From  string
	To    string
	Stage RenameStage
	Err   error
}

func (e *RenameError) Error() string {
	return fmt.Sprintf("rename %q to %q: %s step failed: %v", e.From, e.To, e.Stage, e.Err)
}

func (e *RenameError) Unwrap() []error {
	return withTimeout([]error{ErrRename}, e.Err)
}

// Timeout reports whether the backend call behind e ran out of time.
func (e *RenameError) Timeout() bool {
	return e.Err != nil && objectstore.IsTimeout(e.Err)
}

func withTimeout(errs []error, cause error) []error {
	if cause == nil {
		return errs
	}
	errs = append(errs, cause)
	if objectstore.IsTimeout(cause) {
		errs = append(errs, ErrBackendTimeout)
	}
	return errs
}

// notFoundCause tags backend "missing" errors with ErrNotFound so callers can
// match it regardless of which backend produced them.
func notFoundCause(err error) error {
	if errors.Is(err, objectstore.ErrObjectNotFound) || errors.Is(err, objectstore.ErrBucketNotFound) {
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	}
	return err
}
