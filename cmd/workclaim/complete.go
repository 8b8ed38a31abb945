package main

import (
	"context"

	"github.com/spf13/cobra"
)

var completeCmd = &cobra.Command{
	Use:   "complete <work_id> <result>",
	Short: "Move an active or blocked item to completed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		velocity, _ := cmd.Flags().GetInt("velocity")

		return runVerb(cmd, "complete", func(a *app, ctx context.Context) (any, error) {
			return a.engine.Complete(ctx, args[0], args[1], velocity)
		})
	},
}

func init() {
	completeCmd.Flags().Int("velocity", 0, "optional velocity points earned")
}
