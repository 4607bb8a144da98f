package main

import (
	"github.com/spf13/cobra"
)

func newStatusCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the manifest and remote object counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := newApp(ctx, flags, appOptions{})
			if err != nil {
				return err
			}

			st, err := a.engine.Status(ctx)
			if err != nil {
				return err
			}
			printStatus(cmd.OutOrStdout(), st, a.cfg.Location())
			return nil
		},
	}
}
