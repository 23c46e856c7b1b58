package main

import (
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/zyyx2002/recovery-companion-app-sub000/internal/demo"
)

var (
	demoUser string
	demoDays int
)

func init() {
	demoCmd.Flags().StringVar(&demoUser, "user", "", "user UUID (random when empty)")
	demoCmd.Flags().IntVar(&demoDays, "days", 14, "number of days to simulate")
	rootCmd.AddCommand(demoCmd)
}

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Generate demo activity for one user",
	Long: `Simulate a user's recent history (session, daily task completions, mood
check-ins, achievements) through the service layer. Run "recoveryd seed" first.

Examples:
  recoveryd demo --days 30`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		userID := uuid.Nil
		if raw := strings.TrimSpace(demoUser); raw != "" {
			parsed, err := uuid.Parse(raw)
			if err != nil {
				return fmt.Errorf("invalid --user: %w", err)
			}
			userID = parsed
		}

		deps, err := bootstrap()
		if err != nil {
			return err
		}
		defer deps.close()

		summary, err := demo.Generate(cmd.Context(), deps.db, demo.Options{
			UserID:            userID,
			Days:              demoDays,
			Today:             deps.clock.Today(),
			Levels:            deps.levels,
			TaskCountCategory: deps.cfg.Achievements.TaskCountCategory,
		}, deps.log)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "session:      %d\n", summary.SessionID)
		fmt.Fprintf(out, "completions:  %d\n", summary.Completions)
		fmt.Fprintf(out, "checkins:     %d\n", summary.Checkins)
		fmt.Fprintf(out, "points/level: %d / %d\n", summary.TotalPoints, summary.Level)
		fmt.Fprintf(out, "achievements: %s\n", strings.Join(summary.Achievements, ", "))
		return nil
	},
}
