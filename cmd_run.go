package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

func newRunCmd(flags *globalFlags) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one backup and exit",
		Long: `Check the connection, download every new or locally missing object once,
update the manifest and print the status before and after.

Interrupting a run leaves the manifest as it was; files already downloaded
are kept and picked up by the next run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, err := newApp(ctx, flags, appOptions{dryRun: dryRun})
			if err != nil {
				return err
			}
			if !a.engine.TestConnection(ctx) {
				return errConnection
			}

			out := cmd.OutOrStdout()
			loc := a.cfg.Location()
			if st, err := a.engine.Status(ctx); err != nil {
				a.log.Warn().Err(err).Msg("could not read status")
			} else {
				printStatus(out, st, loc)
			}

			res, err := a.engine.Run(ctx)
			if err != nil {
				return err
			}
			printResult(out, res)

			if st, err := a.engine.Status(ctx); err != nil {
				a.log.Warn().Err(err).Msg("could not read status")
			} else {
				printStatus(out, st, loc)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list what would be downloaded without writing anything")
	return cmd
}
