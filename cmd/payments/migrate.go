package main

import (
	"fmt"

	"github.com/goliatone/go-payments/database"
	"github.com/spf13/cobra"
)

func migrateCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the embedded SQL migrations for the configured database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			cfg, err := flags.loadConfig(ctx)
			if err != nil {
				return err
			}
			client, err := database.Open(cfg.Database)
			if err != nil {
				return err
			}
			defer func() { _ = client.Close() }()

			if err := database.Migrate(ctx, client, cfg.Database.Driver); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "migrations applied (%s)\n", database.MigrationDialect(cfg.Database.Driver))
			return nil
		},
	}
}
