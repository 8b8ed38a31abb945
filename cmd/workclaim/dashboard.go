package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"
)

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Aggregate report: counts by status, per-team capacity, stale blocked items",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		window, _ := cmd.Flags().GetDuration("window")

		return runVerb(cmd, "dashboard", func(a *app, ctx context.Context) (any, error) {
			return a.view.Dashboard(window)
		})
	},
}

func init() {
	dashboardCmd.Flags().Duration("window", 24*time.Hour, "how far back completion-rate looks")
}
