package main

import (
	"github.com/spf13/cobra"

	"github.com/bossnet/party-signup/internal/database"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply (or with --down, roll back) the database schema",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		down, _ := cmd.Flags().GetBool("down")
		if down {
			return database.MigrateDown(cfg.PostgresURL(), appLog)
		}
		return database.Migrate(cfg.PostgresURL(), appLog)
	},
}

func init() {
	migrateCmd.Flags().Bool("down", false, "roll back every migration (drops all registrations)")
	rootCmd.AddCommand(migrateCmd)
}
