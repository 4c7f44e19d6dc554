package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/huddlehq/huddle/internal/database"
)

func newMigrateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := a.commandContext(cmd)
			defer cancel()

			db, err := a.connect(ctx)
			if err != nil {
				return err
			}
			applied, err := database.Migrate(ctx, db.Pool())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "database is up to date")
				return nil
			}
			for _, v := range applied {
				fmt.Fprintln(out, "applied", v)
			}
			return nil
		},
	}
}
