package main

import (
	"fmt"

	"github.com/sifan077/TrackPoint/internal/app/repository"
	"github.com/spf13/cobra"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the registrations and clicks_tracking tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, release, err := repository.Open(cmd.Context(), c.cfg.Database, c.log)
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer release()

			if err := repository.Migrate(cmd.Context(), store); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Migrations applied on %s.\n", store.Dialect())
			return nil
		},
	}
}
