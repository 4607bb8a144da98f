// Package schedule runs a backup job on a cron schedule and guarantees that
// at most one run is in flight at a time.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// ErrBusy is returned by TriggerNow while another run is in progress.
var ErrBusy = errors.New("a backup run is already in progress")

// RunFunc performs one backup run.
type RunFunc func(ctx context.Context) error

// Options configures a Scheduler.
type Options struct {
	Spec     string         // standard five-field cron expression
	Location *time.Location // timezone the expression is evaluated in, defaults to UTC
	Run      RunFunc
	Clock    clockwork.Clock
	Logger   zerolog.Logger
}

// Scheduler fires Run on its cron schedule. Scheduled ticks and manual
// triggers share one busy flag; a trigger that arrives while a run is in
// progress is skipped.
type Scheduler struct {
	cron     *cron.Cron
	schedule cron.Schedule
	spec     string
	loc      *time.Location
	run      RunFunc
	clock    clockwork.Clock
	log      zerolog.Logger

	busy   atomic.Bool
	ctx    context.Context
	cancel context.CancelFunc
}

// New parses opts.Spec and prepares a stopped Scheduler.
func New(opts Options) (*Scheduler, error) {
	if opts.Run == nil {
		return nil, errors.New("schedule: run function is required")
	}
	if opts.Location == nil {
		opts.Location = time.UTC
	}
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	sched, err := cron.ParseStandard(opts.Spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", opts.Spec, err)
	}

	log := opts.Logger.With().Str("component", "scheduler").Logger()
	cl := cronLogger{log: log}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Scheduler{
		cron: cron.New(
			cron.WithLocation(opts.Location),
			cron.WithLogger(cl),
			cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)),
		),
		schedule: sched,
		spec:     opts.Spec,
		loc:      opts.Location,
		run:      opts.Run,
		clock:    opts.Clock,
		log:      log,
		ctx:      ctx,
		cancel:   cancel,
	}
	s.cron.Schedule(sched, cron.FuncJob(s.tick))
	return s, nil
}

// Start begins firing scheduled runs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info().
		Str("schedule", s.spec).
		Str("timezone", s.loc.String()).
		Time("next", s.Next()).
		Msg("scheduler started")
}

// Stop halts the schedule and waits for an in-flight scheduled run. If ctx
// expires first, the run's context is cancelled and ctx.Err is returned.
func (s *Scheduler) Stop(ctx context.Context) error {
	done := s.cron.Stop()
	select {
	case <-done.Done():
		s.cancel()
		s.log.Info().Msg("scheduler stopped")
		return nil
	case <-ctx.Done():
		s.cancel()
		s.log.Warn().Msg("scheduler stopped before the running backup finished")
		return ctx.Err()
	}
}

// Next reports when the schedule fires next.
func (s *Scheduler) Next() time.Time {
	return s.schedule.Next(s.clock.Now().In(s.loc))
}

// Busy reports whether a run is in progress.
func (s *Scheduler) Busy() bool {
	return s.busy.Load()
}

// TriggerNow runs the job synchronously unless a run is already in progress,
// in which case it returns ErrBusy without running.
func (s *Scheduler) TriggerNow(ctx context.Context) error {
	if !s.busy.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer s.busy.Store(false)
	return s.execute(ctx, "manual")
}

// tick is the cron job. Errors are logged and never propagate.
func (s *Scheduler) tick() {
	if !s.busy.CompareAndSwap(false, true) {
		s.log.Warn().Msg("previous backup still running, skipping scheduled run")
		return
	}
	defer s.busy.Store(false)

	_ = s.execute(s.ctx, "schedule")
	s.log.Info().Time("next", s.Next()).Msg("next backup scheduled")
}

func (s *Scheduler) execute(ctx context.Context, trigger string) error {
	start := s.clock.Now()
	s.log.Info().Str("trigger", trigger).Msg("backup started")

	err := s.run(ctx)
	dur := s.clock.Since(start)
	if err != nil {
		s.log.Error().Err(err).Str("trigger", trigger).Dur("duration", dur).Msg("backup failed")
		return err
	}
	s.log.Info().Str("trigger", trigger).Dur("duration", dur).Msg("backup finished")
	return nil
}

// cronLogger adapts zerolog to cron.Logger. Routine cron chatter goes to
// debug.
type cronLogger struct {
	log zerolog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debug().Fields(keysAndValues).Msg("cron: " + msg)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Error().Err(err).Fields(keysAndValues).Msg("cron: " + msg)
}
