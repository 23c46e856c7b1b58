package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/catalog"
)

var seedFile string

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "configs/catalog.yaml", "catalog YAML file")
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Import addiction types, tasks and achievements from YAML",
	Long: `Import the catalog from a YAML file. Entries are matched by name (title for
tasks); existing rows are updated, missing ones are created.

Examples:
  recoveryd seed --file configs/catalog.yaml`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		file, err := catalog.Load(seedFile)
		if err != nil {
			return err
		}

		deps, err := bootstrap()
		if err != nil {
			return err
		}
		defer deps.close()

		result, err := catalog.Seed(cmd.Context(), deps.db, file)
		if err != nil {
			return fmt.Errorf("seed catalog: %w", err)
		}

		deps.log.Info("catalog seeded", "file", seedFile, "created", result.Created, "updated", result.Updated)
		fmt.Fprintf(cmd.OutOrStdout(), "created %d, updated %d\n", result.Created, result.Updated)
		return nil
	},
}
