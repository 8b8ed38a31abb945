package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/claimengine"
)

var progressCmd = &cobra.Command{
	Use:   "progress <work_id> <percent>",
	Short: "Update an active item's progress_percent",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		percent, err := parseInt(args[1], "percent")
		if err != nil {
			return runVerb(cmd, "progress", func(a *app, ctx context.Context) (any, error) { return nil, err })
		}
		subStatus, _ := cmd.Flags().GetString("sub-status")

		return runVerb(cmd, "progress", func(a *app, ctx context.Context) (any, error) {
			return a.engine.Progress(ctx, claimengine.ProgressParams{
				WorkID:          args[0],
				ProgressPercent: percent,
				SubStatus:       subStatus,
			})
		})
	},
}

func init() {
	progressCmd.Flags().String("sub-status", "", "free-form sub-status, required to accept a progress regression")
}
