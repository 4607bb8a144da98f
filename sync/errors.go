package sync

import (
	"errors"
	"fmt"
)

var (
	// ErrObjectNotFound is returned by a Source when the requested key no
	// longer exists in the bucket.
	ErrObjectNotFound = errors.New("object not found")

	// ErrKeyOutsidePrefix is returned when a listed key does not start with
	// the configured prefix.
	ErrKeyOutsidePrefix = errors.New("key is outside the configured prefix")

	// ErrUnsafeKey is returned when a key would resolve to a path outside the
	// local root, or to the root itself.
	ErrUnsafeKey = errors.New("key does not map to a file under the local root")
)

// ListError reports a failed remote enumeration. It aborts the run.
type ListError struct {
	Page int
	Err  error
}

func (e *ListError) Error() string {
	return fmt.Sprintf("list objects (page %d): %v", e.Page, e.Err)
}

func (e *ListError) Unwrap() error { return e.Err }

// FetchError reports a failed transfer of a single object.
type FetchError struct {
	Key  string
	Path string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s -> %s: %v", e.Key, e.Path, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// ManifestReadError reports a manifest that could not be read or decoded.
// ManifestStore.Load recovers from it by returning a default manifest.
type ManifestReadError struct {
	Path string
	Err  error
}

func (e *ManifestReadError) Error() string {
	return fmt.Sprintf("read manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestReadError) Unwrap() error { return e.Err }

// ManifestWriteError reports a manifest that could not be persisted.
type ManifestWriteError struct {
	Path string
	Err  error
}

func (e *ManifestWriteError) Error() string {
	return fmt.Sprintf("write manifest %s: %v", e.Path, e.Err)
}

func (e *ManifestWriteError) Unwrap() error { return e.Err }
