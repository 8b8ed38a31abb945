package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/queueview"
	"github.com/cuemby/workclaim/pkg/types"
)

var listWorkCmd = &cobra.Command{
	Use:   "list-work",
	Short: "Query work items by status/priority/team/agent/work_type",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		status, _ := cmd.Flags().GetString("status")
		priority, _ := cmd.Flags().GetString("priority")
		team, _ := cmd.Flags().GetString("team")
		agent, _ := cmd.Flags().GetString("assigned-agent")
		workType, _ := cmd.Flags().GetString("work-type")

		filter := queueview.Filter{
			Status:          types.WorkStatus(status),
			Priority:        types.Priority(priority),
			Team:            team,
			AssignedAgentID: agent,
			WorkType:        workType,
		}

		return runVerb(cmd, "list_work", func(a *app, ctx context.Context) (any, error) {
			return a.view.ListWork(filter)
		})
	},
}

func init() {
	listWorkCmd.Flags().String("status", "", "filter by status")
	listWorkCmd.Flags().String("priority", "", "filter by priority")
	listWorkCmd.Flags().String("team", "", "filter by team")
	listWorkCmd.Flags().String("assigned-agent", "", "filter by assigned_agent_id")
	listWorkCmd.Flags().String("work-type", "", "filter by work_type")
}
