package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sksouk/phajay-file-backup/metrics"
	"github.com/sksouk/phajay-file-backup/schedule"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd(flags *globalFlags) *cobra.Command {
	var initialBackup bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run backups on a cron schedule until interrupted",
		Long: `Run backups on BACKUP_SCHEDULE (standard five-field cron, evaluated in
BACKUP_TIMEZONE). A scheduled run is skipped while the previous one is still
in progress. Failed runs are logged and retried at the next slot.

When METRICS_ADDRESS is set, Prometheus metrics are served on /metrics.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cmd, flags, initialBackup)
		},
	}
	cmd.Flags().BoolVar(&initialBackup, "initial-backup", false, "run a backup immediately after start; a failure aborts startup")
	return cmd
}

func serve(ctx context.Context, cmd *cobra.Command, flags *globalFlags, initialBackup bool) error {
	m := metrics.New(nil)
	a, err := newApp(ctx, flags, appOptions{recorder: m})
	if err != nil {
		return err
	}
	log := a.log

	if !a.engine.TestConnection(ctx) {
		return errConnection
	}
	if st, err := a.engine.Status(ctx); err != nil {
		log.Warn().Err(err).Msg("could not read status")
	} else {
		printStatus(cmd.OutOrStdout(), st, a.cfg.Location())
	}

	sched, err := schedule.New(schedule.Options{
		Spec:     a.cfg.Sync.Schedule,
		Location: a.cfg.Location(),
		Run: func(ctx context.Context) error {
			_, err := a.engine.Run(ctx)
			return err
		},
		Logger: log,
	})
	if err != nil {
		return err
	}
	sched.Start()

	if initialBackup {
		if err := sched.TriggerNow(ctx); err != nil {
			stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			_ = sched.Stop(stopCtx)
			return fmt.Errorf("initial backup: %w", err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	if a.cfg.MetricsAddress != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok\n"))
		})
		srv := &http.Server{
			Addr:              a.cfg.MetricsAddress,
			Handler:           mux,
			ReadHeaderTimeout: 10 * time.Second,
		}

		g.Go(func() error {
			log.Info().Str("address", srv.Addr).Msg("metrics server listening")
			if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		log.Info().Msg("shutting down")
		stopCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := sched.Stop(stopCtx); err != nil {
			log.Warn().Err(err).Msg("backup interrupted during shutdown")
		}
		return nil
	})

	return g.Wait()
}
