package sync

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Stats holds the counters of the last successful run.
type Stats struct {
	TotalFiles         int `json:"totalFiles"`
	NewFilesInThisSync int `json:"newFilesInThisSync"`
	NewFiles           int `json:"newFiles"`
	MissingLocalFiles  int `json:"missingLocalFiles"`
	TotalDownloaded    int `json:"totalDownloaded"`
}

// Manifest is the persisted record of which keys have been downloaded.
//
// The key set only grows: keys are never removed, even when the remote
// object or the local file goes away.
type Manifest struct {
	LastSyncDate *time.Time
	Stats        Stats

	keys []string
	seen map[string]struct{}
}

// NewManifest returns an empty manifest.
func NewManifest() *Manifest {
	return &Manifest{seen: make(map[string]struct{})}
}

// Has reports whether key has been downloaded before.
func (m *Manifest) Has(key string) bool {
	_, ok := m.seen[key]
	return ok
}

// Add records key. It returns false if key was already present.
func (m *Manifest) Add(key string) bool {
	if m.Has(key) {
		return false
	}
	if m.seen == nil {
		m.seen = make(map[string]struct{})
	}
	m.seen[key] = struct{}{}
	m.keys = append(m.keys, key)
	return true
}

// Len returns the number of tracked keys.
func (m *Manifest) Len() int { return len(m.keys) }

// Keys returns the tracked keys in insertion order.
func (m *Manifest) Keys() []string {
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Clone returns a deep copy of m.
func (m *Manifest) Clone() *Manifest {
	c := NewManifest()
	for _, k := range m.keys {
		c.Add(k)
	}
	if m.LastSyncDate != nil {
		t := *m.LastSyncDate
		c.LastSyncDate = &t
	}
	c.Stats = m.Stats
	return c
}

type manifestDoc struct {
	LastSyncDate *string  `json:"lastSyncDate"`
	Files        []string `json:"downloadedFiles"`
	Stats        Stats    `json:"stats"`
}

// manifestTimeFormat matches JavaScript's Date.toISOString, which older
// manifests were written with.
const manifestTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// MarshalJSON encodes the manifest in its on-disk layout.
func (m *Manifest) MarshalJSON() ([]byte, error) {
	doc := manifestDoc{Files: m.Keys(), Stats: m.Stats}
	if m.LastSyncDate != nil {
		s := m.LastSyncDate.UTC().Format(manifestTimeFormat)
		doc.LastSyncDate = &s
	}
	return json.Marshal(doc)
}

// ManifestStore persists a Manifest as a single JSON document.
type ManifestStore struct {
	fs   afero.Fs
	path string
	log  zerolog.Logger
}

// NewManifestStore creates a store for the document at path.
func NewManifestStore(fs afero.Fs, path string, log zerolog.Logger) *ManifestStore {
	return &ManifestStore{fs: fs, path: path, log: log}
}

// Path returns the location of the manifest document.
func (s *ManifestStore) Path() string { return s.path }

// Load reads the manifest. A missing, unreadable or malformed document
// yields an empty manifest; the problem is logged, never returned.
func (s *ManifestStore) Load() *Manifest {
	m, err := s.read()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			s.log.Info().Str("path", s.path).Msg("no manifest found, starting fresh")
		} else {
			s.log.Warn().Err(err).Msg("manifest unusable, starting fresh")
		}
		return NewManifest()
	}
	return m
}

func (s *ManifestStore) read() (*Manifest, error) {
	data, err := afero.ReadFile(s.fs, s.path)
	if err != nil {
		return nil, &ManifestReadError{Path: s.path, Err: err}
	}

	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return nil, &ManifestReadError{Path: s.path, Err: err}
	}
	if fields == nil {
		return nil, &ManifestReadError{Path: s.path, Err: errors.New("document is null")}
	}

	m := NewManifest()

	if raw, ok := fields["lastSyncDate"]; ok && !isNull(raw) {
		var str string
		if err := json.Unmarshal(raw, &str); err != nil {
			s.fieldWarn("lastSyncDate", err)
		} else if t, err := time.Parse(time.RFC3339Nano, str); err != nil {
			s.fieldWarn("lastSyncDate", err)
		} else {
			m.LastSyncDate = &t
		}
	}

	if raw, ok := fields["downloadedFiles"]; ok && !isNull(raw) {
		var entries []json.RawMessage
		if err := json.Unmarshal(raw, &entries); err != nil {
			s.fieldWarn("downloadedFiles", err)
		}
		dropped := 0
		for _, e := range entries {
			var key string
			if err := json.Unmarshal(e, &key); err != nil || key == "" {
				dropped++
				continue
			}
			m.Add(key)
		}
		if dropped > 0 {
			s.log.Warn().Str("path", s.path).Int("dropped", dropped).Msg("ignored non-string entries in downloadedFiles")
		}
	}

	if raw, ok := fields["stats"]; ok && !isNull(raw) {
		if err := json.Unmarshal(raw, &m.Stats); err != nil {
			s.fieldWarn("stats", err)
			m.Stats = Stats{}
		}
	}

	return m, nil
}

func (s *ManifestStore) fieldWarn(field string, err error) {
	s.log.Warn().Err(err).Str("path", s.path).Str("field", field).Msg("invalid manifest field, using default")
}

func isNull(raw json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// Save replaces the document with m. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (s *ManifestStore) Save(m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return &ManifestWriteError{Path: s.path, Err: fmt.Errorf("marshal: %w", err)}
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	if err := s.fs.MkdirAll(dir, 0o755); err != nil {
		return &ManifestWriteError{Path: s.path, Err: fmt.Errorf("create directory: %w", err)}
	}

	tmp := s.path + ".tmp"
	if err := afero.WriteFile(s.fs, tmp, data, 0o644); err != nil {
		_ = s.fs.Remove(tmp)
		return &ManifestWriteError{Path: s.path, Err: fmt.Errorf("write temp file: %w", err)}
	}
	if err := s.fs.Rename(tmp, s.path); err != nil {
		_ = s.fs.Remove(tmp)
		return &ManifestWriteError{Path: s.path, Err: fmt.Errorf("rename: %w", err)}
	}

	s.log.Info().Str("path", s.path).Int("tracked", m.Len()).Msg("manifest saved")
	return nil
}
