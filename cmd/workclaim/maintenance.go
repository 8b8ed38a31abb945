package main

import (
	"context"

	"github.com/spf13/cobra"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance <job-name>",
	Short: "Run one maintenance job now (health_check, archive_completed, rotate_span_log, reality_verify, stale_heartbeat_sweep, rebalance, optimize_work_queue, status_report)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runVerb(cmd, "maintenance."+args[0], func(a *app, ctx context.Context) (any, error) {
			if err := a.scheduler.RunNow(ctx, args[0]); err != nil {
				return nil, err
			}
			return args[0] + ": ok", nil
		})
	},
}
