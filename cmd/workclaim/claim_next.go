package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/claimengine"
	"github.com/cuemby/workclaim/pkg/workerr"
)

// claimNextCmd is the pure next-claim operation (§4.4.4): scans the
// pending pool, no work_id given.
var claimNextCmd = &cobra.Command{
	Use:   "claim-next",
	Short: "Claim up to --count pending items matching the given filters",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		workType, _ := cmd.Flags().GetString("work-type")
		team, _ := cmd.Flags().GetString("team")
		count, _ := cmd.Flags().GetInt("count")
		requireNonempty, _ := cmd.Flags().GetBool("require-nonempty")

		return runVerb(cmd, "claim", func(a *app, ctx context.Context) (any, error) {
			if a.agentID == "" {
				return nil, workerr.New("claim", workerr.InvalidArg, fmt.Errorf("agent_id required: pass --agent or set AGENT_ID"))
			}

			return a.engine.Claim(ctx, claimengine.ClaimParams{
				WorkType:        workType,
				Team:            team,
				AgentID:         a.agentID,
				DesiredCount:    count,
				RequireNonempty: requireNonempty,
			})
		})
	},
}

func init() {
	claimNextCmd.Flags().String("work-type", "", "restrict candidates to this work_type")
	claimNextCmd.Flags().String("team", "", "restrict candidates to this team")
	claimNextCmd.Flags().Int("count", 1, "desired number of items to claim")
	claimNextCmd.Flags().Bool("require-nonempty", false, "fail with NO_WORK-equivalent error instead of an empty list when nothing matches")
}
