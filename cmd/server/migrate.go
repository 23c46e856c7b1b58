package main

import (
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	Long: `Run AutoMigrate for all tables and create the partial unique index that
keeps at most one active recovery session per user.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		deps, err := bootstrap()
		if err != nil {
			return err
		}
		defer deps.close()

		deps.log.Info("migration finished")
		return nil
	},
}
