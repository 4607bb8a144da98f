package sync

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/spf13/afero"
)

// Reason tags why an object was selected for transfer.
type Reason string

const (
	// ReasonNew marks a key that is not in the manifest.
	ReasonNew Reason = "new"
	// ReasonMissingLocal marks a tracked key whose local file is gone.
	ReasonMissingLocal Reason = "missing_local"
)

// Candidate is a remote object selected for transfer in the current run.
type Candidate struct {
	Object    Object
	Reason    Reason
	LocalPath string
}

// Failure records a candidate whose transfer failed.
type Failure struct {
	Key    string
	Reason Reason
	Err    error
}

// Skip records a listed key that was not considered for transfer.
type Skip struct {
	Key string
	Err error
}

// Result summarises one run.
type Result struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	TotalObjects      int
	Candidates        []Candidate
	NewFiles          int
	MissingLocalFiles int
	Fetched           int
	BytesFetched      int64
	Failed            []Failure
	Skipped           []Skip
	TotalTracked      int

	NoOp          bool
	DryRun        bool
	ManifestSaved bool
	// SaveErr holds the manifest write failure, if any. It does not fail
	// the run.
	SaveErr error
}

// Recorder observes transfers and runs. Implementations must be cheap; they
// are called inline.
type Recorder interface {
	ObserveFetch(reason Reason, bytes int64, err error)
	ObserveRun(res *Result, err error)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(Reason, int64, error) {}
func (nopRecorder) ObserveRun(*Result, error)         {}

// Options configures an Engine.
type Options struct {
	Src       Source         // remote origin
	Store     *ManifestStore // manifest persistence
	Fs        afero.Fs       // local filesystem, defaults to the OS filesystem
	LocalRoot string         // directory objects are materialised under
	PageSize  int32          // listing page size, defaults to DefaultPageSize
	DryRun    bool           // if true, report candidates without fetching or saving
	Timeout   time.Duration  // if non-zero, bounds a whole run
	Clock     clockwork.Clock
	Logger    zerolog.Logger
	Recorder  Recorder
}

// Engine reconciles a remote listing against the manifest and the local
// filesystem and fetches what is new or missing.
//
// An Engine has no internal lock: callers must not start a run while
// another one is in flight.
type Engine struct {
	src     Source
	store   *ManifestStore
	fetcher *Fetcher
	fs      afero.Fs
	root    string
	prefix  string
	opts    Options
	clock   clockwork.Clock
	log     zerolog.Logger
	rec     Recorder
}

// NewEngine creates an Engine from opts.
func NewEngine(opts Options) *Engine {
	if opts.Fs == nil {
		opts.Fs = afero.NewOsFs()
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.Recorder == nil {
		opts.Recorder = nopRecorder{}
	}
	return &Engine{
		src:     opts.Src,
		store:   opts.Store,
		fetcher: NewFetcher(opts.Src, opts.Fs),
		fs:      opts.Fs,
		root:    opts.LocalRoot,
		prefix:  opts.Src.Prefix(),
		opts:    opts,
		clock:   opts.Clock,
		log:     opts.Logger,
		rec:     opts.Recorder,
	}
}

// Run performs one synchronisation pass.
//
// A listing failure or a cancelled context aborts the run and leaves the
// manifest on disk untouched; the partial result is returned alongside the
// error. Individual fetch failures and manifest write failures do not fail
// the run.
func (e *Engine) Run(ctx context.Context) (*Result, error) {
	if e.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.Timeout)
		defer cancel()
	}

	res := &Result{
		RunID:     uuid.NewString(),
		StartedAt: e.clock.Now(),
		DryRun:    e.opts.DryRun,
	}
	log := e.log.With().Str("run_id", res.RunID).Logger()

	err := e.run(ctx, log, res)
	res.Duration = e.clock.Since(res.StartedAt)
	e.rec.ObserveRun(res, err)

	if err != nil {
		log.Error().Err(err).Dur("duration", res.Duration).Msg("sync failed")
		return res, err
	}
	return res, nil
}

func (e *Engine) run(ctx context.Context, log zerolog.Logger, res *Result) error {
	log.Info().Str("prefix", e.prefix).Str("local_root", e.root).Msg("starting sync")

	manifest := e.store.Load()

	objects, err := ListAll(ctx, e.src, e.opts.PageSize)
	if err != nil {
		return err
	}
	res.TotalObjects = len(objects)
	log.Info().Int("objects", len(objects)).Msg("listed remote objects")

	res.Candidates, res.Skipped = e.plan(log, objects, manifest)
	for _, c := range res.Candidates {
		switch c.Reason {
		case ReasonNew:
			res.NewFiles++
		case ReasonMissingLocal:
			res.MissingLocalFiles++
		}
	}
	res.TotalTracked = manifest.Len()

	if len(res.Candidates) == 0 {
		res.NoOp = true
		log.Info().Msg("no files to download, all files are up to date")
		return nil
	}

	log.Info().
		Int("candidates", len(res.Candidates)).
		Int("new", res.NewFiles).
		Int("missing_local", res.MissingLocalFiles).
		Msg("files to download")

	if e.opts.DryRun {
		for _, c := range res.Candidates {
			log.Info().Str("key", c.Object.Key).Str("reason", string(c.Reason)).Str("path", c.LocalPath).Msg("would download")
		}
		return nil
	}

	next := manifest.Clone()
	for _, c := range res.Candidates {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("sync aborted after %d of %d candidates: %w", res.Fetched+len(res.Failed), len(res.Candidates), err)
		}

		n, err := e.fetcher.Fetch(ctx, c.Object.Key, c.LocalPath)
		e.rec.ObserveFetch(c.Reason, n, err)
		if err != nil {
			log.Error().Err(err).Str("key", c.Object.Key).Str("reason", string(c.Reason)).Msg("failed to download")
			res.Failed = append(res.Failed, Failure{Key: c.Object.Key, Reason: c.Reason, Err: err})
			continue
		}

		log.Debug().Str("key", c.Object.Key).Str("path", c.LocalPath).Int64("bytes", n).Msg("downloaded")
		res.Fetched++
		res.BytesFetched += n
		if c.Reason == ReasonNew {
			next.Add(c.Object.Key)
		}
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("sync aborted before saving manifest: %w", err)
	}

	now := e.clock.Now()
	next.LastSyncDate = &now
	next.Stats = Stats{
		TotalFiles:         res.TotalObjects,
		NewFilesInThisSync: res.Fetched,
		NewFiles:           res.NewFiles,
		MissingLocalFiles:  res.MissingLocalFiles,
		TotalDownloaded:    next.Len(),
	}
	res.TotalTracked = next.Len()

	if err := e.store.Save(next); err != nil {
		res.SaveErr = err
		log.Error().Err(err).Msg("could not save manifest, progress of this run is not recorded")
	} else {
		res.ManifestSaved = true
	}

	log.Info().
		Int("downloaded", res.Fetched).
		Int("failed", len(res.Failed)).
		Int64("bytes", res.BytesFetched).
		Int("tracked", res.TotalTracked).
		Msg("sync completed")
	return nil
}

// plan classifies objects in listing order. Keys that cannot be mapped to a
// local path are skipped.
func (e *Engine) plan(log zerolog.Logger, objects []Object, m *Manifest) ([]Candidate, []Skip) {
	var (
		candidates []Candidate
		skipped    []Skip
	)
	for _, obj := range objects {
		path, err := LocalPath(e.root, e.prefix, obj.Key)
		if err != nil {
			log.Warn().Err(err).Str("key", obj.Key).Msg("skipping key")
			skipped = append(skipped, Skip{Key: obj.Key, Err: err})
			continue
		}

		if !m.Has(obj.Key) {
			candidates = append(candidates, Candidate{Object: obj, Reason: ReasonNew, LocalPath: path})
			continue
		}
		if !e.exists(log, path) {
			candidates = append(candidates, Candidate{Object: obj, Reason: ReasonMissingLocal, LocalPath: path})
		}
	}
	return candidates, skipped
}

func (e *Engine) exists(log zerolog.Logger, path string) bool {
	ok, err := afero.Exists(e.fs, path)
	if err != nil {
		log.Debug().Err(err).Str("path", path).Msg("stat failed, treating file as missing")
		return false
	}
	return ok
}
