package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FireNirva/quants-fleet/pkg/deploy"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

var monitorCmd = serviceCommand("monitor", "Manage the Prometheus/Grafana monitoring stack", types.ServiceKindMonitor, serviceCommandOpts{logs: true})

var monitorAddTargetCmd = &cobra.Command{
	Use:   "add-target JOB TARGET...",
	Short: "Replace a scrape job's targets, or remove the job if no targets are given",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		monitorHost, _ := cmd.Flags().GetString("target")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		work, err := resolveWorkItem(f, types.ServiceKindMonitor, monitorHost)
		if err != nil {
			return err
		}
		d, ok := f.registry.Get(types.ServiceKindMonitor)
		if !ok {
			return fmt.Errorf("monitor add-target: no deployer registered")
		}
		adder, ok := d.(deploy.ScrapeTargetAdder)
		if !ok {
			return fmt.Errorf("monitor add-target: deployer does not support scrape targets")
		}

		job := args[0]
		targets := args[1:]

		ctx, cancel := ctxFromCommand(cmd)
		defer cancel()
		if err := adder.AddScrapeTarget(ctx, work.Target, job, targets, nil); err != nil {
			return fmt.Errorf("monitor add-target: %w", err)
		}
		if len(targets) == 0 {
			fmt.Printf("monitor on %s: job %s removed\n", work.Target, job)
			return nil
		}
		fmt.Printf("monitor on %s: job %s now scraping %v\n", work.Target, job, targets)
		return nil
	},
}

func init() {
	monitorAddTargetCmd.Flags().String("config", "", "Environment YAML file (required)")
	monitorAddTargetCmd.Flags().String("target", "", "Monitor host to register the scrape target on")
	monitorAddTargetCmd.MarkFlagRequired("config")
	monitorCmd.AddCommand(monitorAddTargetCmd)
}
