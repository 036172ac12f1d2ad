package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FireNirva/quants-fleet/pkg/types"
)

var securityCmd = &cobra.Command{
	Use:   "security",
	Short: "Apply or inspect the host-hardening pipeline",
}

var securitySetupCmd = &cobra.Command{
	Use:   "setup",
	Short: "Run the security pipeline against every host in the environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		ctx, cancel := ctxFromCommand(cmd)
		defer cancel()

		var failures []string
		for _, h := range f.env.Hosts {
			if err := f.pipeline.Run(ctx, h, f.env.Security, f.env.VPN); err != nil {
				failures = append(failures, fmt.Sprintf("%s: %v", h.Name, err))
				continue
			}
			fmt.Printf("%s: hardened\n", h.Name)
		}
		if len(failures) > 0 {
			for _, msg := range failures {
				fmt.Println(msg)
			}
			return fmt.Errorf("security setup: %d of %d hosts failed", len(failures), len(f.env.Hosts))
		}
		return nil
	},
}

var securityStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which hardening steps have completed on each host",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		for _, h := range f.env.Hosts {
			markers, err := f.ledger.MarkersForHost(h.Name)
			if err != nil {
				return fmt.Errorf("read markers for %s: %w", h.Name, err)
			}
			fmt.Printf("%s:\n", h.Name)
			if len(markers) == 0 {
				fmt.Println("  (no steps recorded)")
				continue
			}
			for _, m := range markers {
				fmt.Printf("  %-18s %s\n", m.Step, m.AppliedAt.Format(time.RFC3339))
			}
			fmt.Printf("  verified: %v\n", hasStep(markers, types.StepVerify))
		}
		return nil
	},
}

func hasStep(markers []types.SecurityMarker, step types.SecurityStep) bool {
	for _, m := range markers {
		if m.Step == step {
			return true
		}
	}
	return false
}

func init() {
	securityCmd.AddCommand(securitySetupCmd, securityStatusCmd)
	for _, c := range []*cobra.Command{securitySetupCmd, securityStatusCmd} {
		c.Flags().String("config", "", "Environment YAML file (required)")
		c.MarkFlagRequired("config")
	}
}
