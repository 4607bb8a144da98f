package sync

import (
	"fmt"
	"path/filepath"
	"strings"
)

// NormalizePrefix turns a configured prefix into a directory-style prefix:
// empty stays empty, anything else ends in exactly one slash.
func NormalizePrefix(prefix string) string {
	prefix = strings.TrimPrefix(prefix, "/")
	if prefix == "" {
		return ""
	}
	return strings.TrimSuffix(prefix, "/") + "/"
}

// IsDirMarker reports whether key is a zero-byte pseudo-folder entry.
func IsDirMarker(key string) bool {
	return strings.HasSuffix(key, "/")
}

// relKey strips prefix from a full key.
func relKey(prefix, full string) (string, error) {
	if !strings.HasPrefix(full, prefix) {
		return "", fmt.Errorf("%q: %w", full, ErrKeyOutsidePrefix)
	}
	return strings.TrimLeft(strings.TrimPrefix(full, prefix), "/"), nil
}

// LocalPath derives the local file path for a remote key: the prefix is
// stripped and the remainder joined onto root. Keys outside the prefix, or
// whose remainder would escape root, are rejected.
func LocalPath(root, prefix, key string) (string, error) {
	rel, err := relKey(prefix, key)
	if err != nil {
		return "", err
	}
	rel = filepath.FromSlash(rel)
	if rel == "" || !filepath.IsLocal(rel) {
		return "", fmt.Errorf("%q: %w", key, ErrUnsafeKey)
	}
	return filepath.Join(root, rel), nil
}
