package main

import (
	"context"

	"github.com/spf13/cobra"
)

var failCmd = &cobra.Command{
	Use:   "fail <work_id> <reason>",
	Short: "Move an active or blocked item to failed",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, "fail", func(a *app, ctx context.Context) (any, error) {
			return a.engine.Fail(ctx, args[0], args[1])
		})
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel <work_id>",
	Short: "Cancel a pending item; an active or blocked item is released back to pending",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, "cancel", func(a *app, ctx context.Context) (any, error) {
			return a.engine.Cancel(ctx, args[0])
		})
	},
}
