package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sksouk/phajay-file-backup/config"
	"github.com/sksouk/phajay-file-backup/sync"
)

// fakeBucket serves a path-style ListObjectsV2 and object GETs for a single
// bucket named "bucket".
func fakeBucket(t *testing.T, objects map[string]string) *httptest.Server {
	t.Helper()
	mod := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/bucket/")
		if key == "" || r.URL.Path == "/bucket" {
			prefix := r.URL.Query().Get("prefix")
			var b strings.Builder
			b.WriteString(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>bucket</Name><IsTruncated>false</IsTruncated>`)
			for k, v := range objects {
				if strings.HasPrefix(k, prefix) {
					fmt.Fprintf(&b, `<Contents><Key>%s</Key><LastModified>%s</LastModified><ETag>"x"</ETag><Size>%d</Size></Contents>`,
						k, mod.Format(time.RFC3339), len(v))
				}
			}
			b.WriteString(`</ListBucketResult>`)
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(b.String()))
			return
		}

		body, ok := objects[key]
		if !ok {
			w.Header().Set("Content-Type", "application/xml")
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>NoSuchKey</Code></Error>`))
			return
		}
		w.Header().Set("Last-Modified", mod.Format(http.TimeFormat))
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func setTestEnv(t *testing.T, endpoint string) (backupDir, manifest string) {
	t.Helper()
	dir := t.TempDir()
	backupDir = filepath.Join(dir, "backup")
	manifest = filepath.Join(dir, "last_sync.json")

	for k, v := range map[string]string{
		"STORE_DRIVER":          config.DriverMinio,
		"S3_ENDPOINT":           endpoint,
		"S3_BUCKET_NAME":        "bucket",
		"S3_PREFIX":             "data",
		"AWS_ACCESS_KEY_ID":     "access",
		"AWS_SECRET_ACCESS_KEY": "secret",
		"AWS_SESSION_TOKEN":     "",
		"AWS_REGION":            "us-east-1",
		"LOCAL_BACKUP_PATH":     backupDir,
		"LAST_SYNC_FILE":        manifest,
		"BACKUP_SCHEDULE":       "",
		"BACKUP_TIMEZONE":       "UTC",
		"RUN_TIMEOUT":           "",
		"LIST_PAGE_SIZE":        "",
		"LOG_LEVEL":             "error",
		"LOG_FORMAT":            "json",
		"METRICS_ADDRESS":       "",
	} {
		if v == "" {
			t.Setenv(k, "")
			require.NoError(t, os.Unsetenv(k))
			continue
		}
		t.Setenv(k, v)
	}
	return backupDir, manifest
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	return executeContext(context.Background(), t, args...)
}

func executeContext(ctx context.Context, t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs(append(args, "--env-file", ""))
	err := cmd.ExecuteContext(ctx)
	return out.String(), err
}

// forbiddenHandler answers every request with an S3 AccessDenied error.
func forbiddenHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/xml")
	w.WriteHeader(http.StatusForbidden)
	_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><Error><Code>AccessDenied</Code></Error>`))
}

func TestRunCommand(t *testing.T) {
	srv := fakeBucket(t, map[string]string{
		"data/a.txt":     "alpha",
		"data/sub/b.txt": "bravo",
		"other/c.txt":    "charlie",
	})
	backupDir, manifest := setTestEnv(t, srv.URL)

	out, err := execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "2 downloaded (10 bytes), 0 failed")
	assert.Contains(t, out, "Downloaded:       2")

	got, err := os.ReadFile(filepath.Join(backupDir, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))

	raw, err := os.ReadFile(manifest)
	require.NoError(t, err)
	var doc struct {
		DownloadedFiles []string `json:"downloadedFiles"`
	}
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.ElementsMatch(t, []string{"data/a.txt", "data/sub/b.txt"}, doc.DownloadedFiles)

	out, err = execute(t, "run")
	require.NoError(t, err)
	assert.Contains(t, out, "Nothing to download")
}

func TestRunCommand_dryRun(t *testing.T) {
	srv := fakeBucket(t, map[string]string{"data/a.txt": "alpha"})
	backupDir, manifest := setTestEnv(t, srv.URL)

	out, err := execute(t, "run", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: 1 new")

	_, err = os.Stat(backupDir)
	assert.True(t, errors.Is(err, os.ErrNotExist))
	_, err = os.Stat(manifest)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestStatusCommand(t *testing.T) {
	srv := fakeBucket(t, map[string]string{"data/a.txt": "alpha", "data/b.txt": "bravo"})
	setTestEnv(t, srv.URL)

	out, err := execute(t, "status")
	require.NoError(t, err)
	assert.Contains(t, out, "Last sync:        never")
	assert.Contains(t, out, "Remote objects:   2")
	assert.Contains(t, out, "Pending:          2")
}

func TestRunCommand_connectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(forbiddenHandler))
	t.Cleanup(srv.Close)
	_, manifest := setTestEnv(t, srv.URL)

	_, err := execute(t, "run")
	assert.ErrorIs(t, err, errConnection)
	_, statErr := os.Stat(manifest)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestServeCommand_initialBackup(t *testing.T) {
	srv := fakeBucket(t, map[string]string{"data/a.txt": "alpha", "data/sub/b.txt": "bravo"})
	backupDir, manifest := setTestEnv(t, srv.URL)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		out, err := executeContext(ctx, t, "serve", "--initial-backup")
		done <- outcome{out, err}
	}()

	require.Eventually(t, func() bool {
		_, err := os.Stat(manifest)
		return err == nil
	}, 10*time.Second, 20*time.Millisecond)
	cancel()

	var res outcome
	select {
	case res = <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not stop after cancellation")
	}
	require.NoError(t, res.err)
	assert.Contains(t, res.out, "Pending:          2")

	got, err := os.ReadFile(filepath.Join(backupDir, "sub", "b.txt"))
	require.NoError(t, err)
	assert.Equal(t, "bravo", string(got))
}

func TestServeCommand_initialBackupFailure(t *testing.T) {
	// The connection check lists a single key and succeeds; the full
	// listing of the backup run is refused.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("max-keys") == "1" {
			w.Header().Set("Content-Type", "application/xml")
			_, _ = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?><ListBucketResult xmlns="http://s3.amazonaws.com/doc/2006-03-01/"><Name>bucket</Name><IsTruncated>false</IsTruncated></ListBucketResult>`))
			return
		}
		forbiddenHandler(w, r)
	}))
	t.Cleanup(srv.Close)
	_, manifest := setTestEnv(t, srv.URL)

	_, err := execute(t, "serve", "--initial-backup")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "initial backup")

	_, statErr := os.Stat(manifest)
	assert.True(t, errors.Is(statErr, os.ErrNotExist))
}

func TestServeCommand_connectionFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(forbiddenHandler))
	t.Cleanup(srv.Close)
	setTestEnv(t, srv.URL)

	_, err := execute(t, "serve")
	assert.ErrorIs(t, err, errConnection)
}

func TestServeCommand_invalidSchedule(t *testing.T) {
	srv := fakeBucket(t, map[string]string{"data/a.txt": "alpha"})
	setTestEnv(t, srv.URL)
	t.Setenv("BACKUP_SCHEDULE", "every now and then")

	_, err := execute(t, "serve")
	assert.ErrorIs(t, err, config.ErrInvalidSchedule)
}

func TestRunCommand_invalidConfig(t *testing.T) {
	setTestEnv(t, "http://127.0.0.1:1")
	t.Setenv("BACKUP_TIMEZONE", "Nowhere/Special")

	_, err := execute(t, "run")
	assert.ErrorIs(t, err, config.ErrInvalidTimezone)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "phajay-file-backup dev")
}

func TestGlobalFlags_overrides(t *testing.T) {
	f := &globalFlags{bucket: "b", prefix: "p/", localPath: "/l", manifestPath: "/m.json", logLevel: "debug"}
	o := f.overrides()
	assert.Equal(t, "b", o.S3.Bucket)
	assert.Equal(t, "p/", o.S3.Prefix)
	assert.Equal(t, "/l", o.Local.BackupPath)
	assert.Equal(t, "/m.json", o.Local.ManifestPath)
	assert.Equal(t, "debug", o.Log.Level)
}

func TestPrintStatus(t *testing.T) {
	last := time.Date(2026, 10, 17, 3, 0, 0, 0, time.UTC)
	loc := time.FixedZone("ICT", 7*3600)

	var buf bytes.Buffer
	printStatus(&buf, &sync.Status{LastSync: &last, TotalRemote: 5, TotalDownloaded: 3, Pending: 2, LocalRoot: "./backup"}, loc)

	assert.Equal(t, `Backup status
  Last sync:        2026-10-17T10:00:00+07:00
  Remote objects:   5
  Downloaded:       3
  Pending:          2
  Local path:       ./backup
`, buf.String())
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, &sync.Result{
		Duration:     1500 * time.Millisecond,
		Fetched:      2,
		BytesFetched: 10,
		Failed:       []sync.Failure{{Key: "data/c.txt", Err: errors.New("timeout")}},
		SaveErr:      errors.New("disk full"),
	})

	out := buf.String()
	assert.Contains(t, out, "Backup finished in 1.5s: 2 downloaded (10 bytes), 1 failed, 0 skipped")
	assert.Contains(t, out, "failed  data/c.txt: timeout")
	assert.Contains(t, out, "manifest not saved: disk full")
}
