package sync

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/afero"
)

// Temporary download files are named .backup-<random>.part, independent of
// the target name, so a target whose name is near the filesystem limit still
// gets a valid temporary sibling.
const (
	partPrefix  = ".backup-"
	partSuffix  = ".part"
	partPattern = partPrefix + "*" + partSuffix
)

// Fetcher downloads single objects from a Source onto a filesystem.
//
// A Fetcher is not safe for concurrent use.
type Fetcher struct {
	src   Source
	fs    afero.Fs
	swept map[string]struct{}
}

// NewFetcher creates a Fetcher writing through fs.
func NewFetcher(src Source, fs afero.Fs) *Fetcher {
	return &Fetcher{src: src, fs: fs, swept: make(map[string]struct{})}
}

// isPartFile reports whether name is a temporary download file.
func isPartFile(name string) bool {
	return strings.HasPrefix(name, partPrefix) && strings.HasSuffix(name, partSuffix)
}

// sweep removes temporary files left in dir by an interrupted process. Each
// directory is swept once per Fetcher.
func (f *Fetcher) sweep(dir string) {
	if _, ok := f.swept[dir]; ok {
		return
	}
	f.swept[dir] = struct{}{}

	entries, err := afero.ReadDir(f.fs, dir)
	if err != nil {
		return
	}
	for _, e := range entries {
		if !e.IsDir() && isPartFile(e.Name()) {
			_ = f.fs.Remove(filepath.Join(dir, e.Name()))
		}
	}
}

// Fetch streams the object stored under key into localPath, creating parent
// directories as needed. The data lands in a temporary file next to
// localPath which is renamed into place once it is fully written and
// closed; on failure the temporary file is removed and an existing file at
// localPath is left untouched. Temporary files abandoned by a killed process
// are removed the first time their directory is written to again.
func (f *Fetcher) Fetch(ctx context.Context, key, localPath string) (int64, error) {
	n, err := f.fetch(ctx, key, localPath)
	if err != nil {
		return n, &FetchError{Key: key, Path: localPath, Err: err}
	}
	return n, nil
}

func (f *Fetcher) fetch(ctx context.Context, key, localPath string) (int64, error) {
	dir := filepath.Dir(localPath)
	if err := f.fs.MkdirAll(dir, 0o755); err != nil {
		return 0, fmt.Errorf("make parent: %w", err)
	}

	f.sweep(dir)

	tmp, err := afero.TempFile(f.fs, dir, partPattern)
	if err != nil {
		return 0, fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = tmp.Close()
			_ = f.fs.Remove(tmpName)
		}
	}()

	n, err := f.src.Download(ctx, key, tmp)
	if err != nil {
		return n, fmt.Errorf("download: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return n, fmt.Errorf("sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return n, fmt.Errorf("close: %w", err)
	}
	if err := f.fs.Rename(tmpName, localPath); err != nil {
		return n, fmt.Errorf("rename: %w", err)
	}
	committed = true
	return n, nil
}
