package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/claimengine"
)

var registerCmd = &cobra.Command{
	Use:   "register <agent_id> <team> <role> <capacity_max>",
	Short: "Register this agent (or re-register it) in the agent registry",
	Args:  cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		capacityMax, err := parseInt(args[3], "capacity_max")
		if err != nil {
			return runVerb(cmd, "register_agent", func(a *app, ctx context.Context) (any, error) { return nil, err })
		}
		specialization, _ := cmd.Flags().GetString("specialization")
		allowTakeover, _ := cmd.Flags().GetBool("allow-takeover")

		return runVerb(cmd, "register_agent", func(a *app, ctx context.Context) (any, error) {
			return a.engine.RegisterAgent(ctx, claimengine.RegisterAgentParams{
				AgentID:        args[0],
				Team:           args[1],
				Role:           args[2],
				CapacityMax:    capacityMax,
				Specialization: specialization,
				AllowTakeover:  allowTakeover,
			})
		})
	},
}

func init() {
	registerCmd.Flags().String("specialization", "", "optional specialization tag")
	registerCmd.Flags().Bool("allow-takeover", false, "allow re-registering an existing agent_id under a different team/role")
}
