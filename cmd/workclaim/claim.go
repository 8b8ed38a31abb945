package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/types"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// claimCmd is the create-and-claim shortcut (§6): it mints a pending item
// then immediately targets it in the same CLI invocation. The two steps
// are not atomic with each other (each goes through its own lock
// acquisition): the item is committed as pending in between, so another
// process's next-claim can take it first, in which case the targeted claim
// fails with STATE_CONFLICT.
var claimCmd = &cobra.Command{
	Use:   "claim <work_type> <description>",
	Short: "Create a work item and claim it for an agent in one shot",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		priorityFlag, _ := cmd.Flags().GetString("priority")
		team, _ := cmd.Flags().GetString("team")
		agentFlag, _ := cmd.Flags().GetString("agent")
		estimated, _ := cmd.Flags().GetString("estimated-duration")

		priority := types.Priority(priorityFlag)
		if priority == "" {
			priority = types.PriorityMedium
		}

		return runVerb(cmd, "claim", func(a *app, ctx context.Context) (any, error) {
			agentID := agentFlag
			if agentID == "" {
				agentID = a.agentID
			}
			if agentID == "" {
				return nil, workerr.New("claim", workerr.InvalidArg, fmt.Errorf("agent_id required: pass --agent or set AGENT_ID"))
			}

			workTeam := team
			if workTeam == "" {
				workTeam = a.cfg.AgentTeam
			}

			created, err := a.engine.CreateWork(ctx, claimengine.CreateWorkParams{
				WorkType:          args[0],
				Description:       args[1],
				Priority:          priority,
				Team:              workTeam,
				EstimatedDuration: estimated,
			})
			if err != nil {
				return nil, err
			}

			claimed, err := a.engine.Claim(ctx, claimengine.ClaimParams{
				WorkID:  created.WorkID,
				AgentID: agentID,
			})
			if err != nil {
				return nil, err
			}
			if len(claimed) == 0 {
				return nil, workerr.New("claim", workerr.StateConflict, fmt.Errorf("work_id %q could not be claimed", created.WorkID))
			}
			return claimed[0], nil
		})
	},
}

func init() {
	claimCmd.Flags().String("priority", "medium", "priority: critical|high|medium|low")
	claimCmd.Flags().String("team", "", "team tag for the new work item")
	claimCmd.Flags().String("estimated-duration", "", "optional estimated duration, free-form")
}
