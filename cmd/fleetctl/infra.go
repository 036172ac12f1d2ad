package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/FireNirva/quants-fleet/pkg/types"
)

// infraCmd covers the host inventory lifecycle. Actual cloud-provider
// provisioning is an explicit collaborator, not core: create/destroy here
// operate on the hosts already declared in the environment document (create
// runs the orchestrator over them, destroy only prints a notice) rather than
// calling out to a cloud SDK.
var infraCmd = &cobra.Command{
	Use:   "infra",
	Short: "Inspect and confirm the fleet's host inventory",
}

var infraListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the hosts declared in the environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		fmt.Printf("%-20s %-16s %-6s %-10s %s\n", "NAME", "ADDRESS", "PORT", "STATUS", "ROLES")
		for _, h := range f.env.Hosts {
			fmt.Printf("%-20s %-16s %-6d %-10s %v\n", h.Name, h.Address, h.SSHPort, h.Status, h.Roles)
		}
		return nil
	},
}

var infraInfoCmd = &cobra.Command{
	Use:   "info NAME",
	Short: "Show detailed information for a single host",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		name := args[0]
		var host *types.Host
		for _, h := range f.env.Hosts {
			if h.Name == name {
				host = h
				break
			}
		}
		if host == nil {
			return usageErrorf("no host named %q in environment %q", name, f.env.Name)
		}

		fmt.Printf("Name:    %s\n", host.Name)
		fmt.Printf("Address: %s\n", host.Address)
		fmt.Printf("SSHPort: %d\n", host.SSHPort)
		fmt.Printf("SSHUser: %s\n", host.SSHUser)
		fmt.Printf("Roles:   %v\n", host.Roles)
		fmt.Printf("Labels:  %v\n", host.Labels)
		markers, err := f.ledger.MarkersForHost(name)
		if err != nil {
			return fmt.Errorf("read security markers: %w", err)
		}
		fmt.Println("Security markers:")
		for _, m := range markers {
			fmt.Printf("  - %s at %s\n", m.Step, m.AppliedAt.Format(time.RFC3339))
		}
		return nil
	},
}

var infraCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Probe, harden and verify every declared host (does not provision cloud resources)",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()
		maybeServeMetrics(cmd)

		ctx, cancel := ctxFromCommand(cmd)
		defer cancel()

		f.orch.DryRun = false
		result := f.orch.Run(ctx, &types.Environment{Name: f.env.Name, Hosts: f.env.Hosts, Security: f.env.Security})
		printRunSummary(result)
		if result.Err != nil {
			return fmt.Errorf("infra create: %w", result.Err)
		}
		return nil
	},
}

var infraDestroyCmd = &cobra.Command{
	Use:   "destroy",
	Short: "Print how to release the fleet's hosts (changes nothing itself)",
	Long: `fleetctl does not own cloud-provider teardown: that is a collaborator
this core never calls directly. infra destroy changes nothing: it prints
that notice and that the local security ledger is kept. The ledger is not
cleared; to make a future infra create/security setup re-apply every step
from scratch, remove the ledger database under --data-dir by hand.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		fmt.Println("fleetctl does not provision or destroy cloud resources directly.")
		fmt.Println("Local security ledger state remains; remove the ledger database under --data-dir to force re-hardening.")
		return nil
	},
}

var infraManageCmd = &cobra.Command{
	Use:   "manage NAME -- COMMAND",
	Short: "Run an ad hoc command on a declared host",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		host := args[0]
		command := joinArgs(args[1:])

		ctx, cancel := ctxFromCommand(cmd)
		defer cancel()

		stdout, exitCode, err := f.engine.Run(ctx, host, command, 2*time.Minute)
		fmt.Print(stdout)
		if err != nil {
			return fmt.Errorf("infra manage: %w", err)
		}
		if exitCode != 0 {
			return fmt.Errorf("infra manage: %s exited %d", host, exitCode)
		}
		return nil
	},
}

func joinArgs(args []string) string {
	out := args[0]
	for _, a := range args[1:] {
		out += " " + a
	}
	return out
}

func init() {
	infraCmd.AddCommand(infraListCmd, infraInfoCmd, infraCreateCmd, infraDestroyCmd, infraManageCmd)
	for _, c := range []*cobra.Command{infraListCmd, infraInfoCmd, infraCreateCmd, infraDestroyCmd, infraManageCmd} {
		c.Flags().String("config", "", "Environment YAML file (required)")
		c.MarkFlagRequired("config")
	}
}
