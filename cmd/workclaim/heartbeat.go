package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/types"
)

var heartbeatCmd = &cobra.Command{
	Use:   "heartbeat <agent_id>",
	Short: "Refresh an agent's last_heartbeat_at, optionally updating status/workload",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		statusFlag, _ := cmd.Flags().GetString("status")
		workloadFlag, _ := cmd.Flags().GetInt("workload")
		workloadSet := cmd.Flags().Changed("workload")

		var status *types.AgentStatus
		if statusFlag != "" {
			s := types.AgentStatus(statusFlag)
			status = &s
		}
		var workload *int
		if workloadSet {
			workload = &workloadFlag
		}

		return runVerb(cmd, "heartbeat", func(a *app, ctx context.Context) (any, error) {
			return a.engine.Heartbeat(ctx, claimengine.HeartbeatParams{
				AgentID:         args[0],
				Status:          status,
				CurrentWorkload: workload,
			})
		})
	},
}

func init() {
	heartbeatCmd.Flags().String("status", "", "optional new status (not offline; use deregister)")
	heartbeatCmd.Flags().Int("workload", 0, "optional new current_workload")
}
