package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/FireNirva/quants-fleet/pkg/report"
)

var deployEnvironmentCmd = &cobra.Command{
	Use:   "deploy-environment",
	Short: "Run the full Plan -> Provision -> Secure -> Service -> Summarize pipeline for an environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		verbose, _ := cmd.Flags().GetBool("verbose")

		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()
		maybeServeMetrics(cmd)

		if verbose {
			printer := report.NewPrinter(os.Stdout)
			go printer.Follow(f.broker)
		}

		f.orch.DryRun = dryRun
		ctx, cancel := ctxFromCommand(cmd)
		defer cancel()

		result := f.orch.Run(ctx, f.env)
		printRunSummary(result)

		if result.Err != nil {
			return fmt.Errorf("deploy-environment: %w", result.Err)
		}
		return nil
	},
}

func init() {
	deployEnvironmentCmd.Flags().String("config", "", "Environment YAML file (required)")
	deployEnvironmentCmd.Flags().Bool("dry-run", false, "Validate the environment and stop after the plan phase")
	deployEnvironmentCmd.Flags().Bool("verbose", false, "Stream per-phase, per-host events as they happen")
	deployEnvironmentCmd.MarkFlagRequired("config")
}

func printRunSummary(result interface{ Summary() string }) {
	fmt.Println(result.Summary())
}
