package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/cuemby/workclaim/pkg/log"
)

// Version information, set via ldflags during build.
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	os.Exit(execute())
}

// execute runs the root command and returns the process exit code. Every
// verb's RunE returns its code through exitCode rather than letting cobra's
// Execute translate a non-nil error into a blanket exit(1), since §4.8's
// exit-code contract is richer than success/failure.
func execute() int {
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return exitCode
}

// exitCode is set by whichever verb's RunE ran, then read back by execute.
// cobra's Execute only ever returns an error or nil, so the richer exit
// codes §4.8 requires (2..6) are threaded out-of-band through this.
var exitCode int

var rootCmd = &cobra.Command{
	Use:   "workclaim",
	Short: "File-coordinated work-claim CLI",
	Long: `workclaim lets independent agent processes register, claim, and
report progress on units of work through a shared coordination directory,
using only the filesystem and advisory file locks as the cross-host
coordination primitive — no server, no network transport, no consensus.`,
	Version: Version,
}

func init() {
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"workclaim version %s\nCommit: %s\nBuilt: %s\n",
		Version, Commit, BuildTime,
	))

	rootCmd.PersistentFlags().Bool("json", false, "emit a structured JSON envelope instead of text")
	rootCmd.PersistentFlags().String("agent", "", "agent id performing this operation (overrides AGENT_ID)")
	rootCmd.PersistentFlags().Duration("timeout", 0, "per-operation deadline, including lock wait (overrides LOCK_WAIT_SEC)")
	rootCmd.PersistentFlags().String("coordination-dir", "", "coordination directory (overrides COORDINATION_DIR)")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().Bool("log-json", false, "emit logs as JSON instead of text")

	cobra.OnInitialize(initLogging)

	rootCmd.AddCommand(registerCmd)
	rootCmd.AddCommand(heartbeatCmd)
	rootCmd.AddCommand(claimCmd)
	rootCmd.AddCommand(claimNextCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(completeCmd)
	rootCmd.AddCommand(failCmd)
	rootCmd.AddCommand(cancelCmd)
	rootCmd.AddCommand(listWorkCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(maintenanceCmd)
}

func initLogging() {
	level, _ := rootCmd.PersistentFlags().GetString("log-level")
	jsonOut, _ := rootCmd.PersistentFlags().GetBool("log-json")
	log.Init(log.Config{
		Level:      log.Level(level),
		JSONOutput: jsonOut,
		Output:     os.Stderr,
	})
}

// runVerb wires an *app for this invocation, runs fn under it, closes the
// app, and records the process exit code in the package-level exitCode.
// Every verb's RunE is a one-line call to this, keeping app construction and
// envelope emission out of each verb's own file.
func runVerb(cmd *cobra.Command, operation string, fn func(a *app, ctx context.Context) (any, error)) error {
	a, err := newApp(cmd)
	if err != nil {
		exitCode = 1
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
		return nil
	}
	defer a.close()

	exitCode = a.run(cmd, operation, func(ctx context.Context) (any, error) {
		return fn(a, ctx)
	})
	return nil
}
