package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/FireNirva/quants-fleet/pkg/types"
)

// serviceCommandOpts selects which optional subcommands serviceCommand adds
// on top of the always-present deploy/status/restart trio. Each top-level
// service in the CLI grammar exposes a slightly different verb set.
type serviceCommandOpts struct {
	logs      bool
	startStop bool
}

// serviceCommand builds the subcommand tree shared by monitor,
// data-collector, and freqtrade: each top-level verb is a thin call into
// the same deploy.Registry, keyed by the service kind passed in here.
func serviceCommand(use, short string, kind types.ServiceKind, opts serviceCommandOpts) *cobra.Command {
	root := &cobra.Command{Use: use, Short: short}

	deployCmd := &cobra.Command{
		Use:   "deploy",
		Short: fmt.Sprintf("Deploy the %s service to its target host", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			target, _ := cmd.Flags().GetString("target")
			f, err := buildFleet(cmd, configPath)
			if err != nil {
				return err
			}
			defer f.Close()

			work, err := resolveWorkItem(f, kind, target)
			if err != nil {
				return err
			}
			ctx, cancel := ctxFromCommand(cmd)
			defer cancel()
			if err := f.registry.Deploy(ctx, work); err != nil {
				return fmt.Errorf("%s deploy: %w", use, err)
			}
			fmt.Printf("%s: deployed to %s\n", use, work.Target)
			return nil
		},
	}

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: fmt.Sprintf("Report the %s service's health", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			target, _ := cmd.Flags().GetString("target")
			f, err := buildFleet(cmd, configPath)
			if err != nil {
				return err
			}
			defer f.Close()

			work, err := resolveWorkItem(f, kind, target)
			if err != nil {
				return err
			}
			d, ok := f.registry.Get(kind)
			if !ok {
				return fmt.Errorf("%s status: no deployer registered", use)
			}
			ctx, cancel := ctxFromCommand(cmd)
			defer cancel()
			report, err := d.HealthCheck(ctx, work.Target)
			if err != nil {
				return fmt.Errorf("%s status: %w", use, err)
			}
			fmt.Printf("%s on %s: %s (%s)\n", use, work.Target, report.Status, report.Message)
			for name, check := range report.Checks {
				fmt.Printf("  %-20s healthy=%v %s\n", name, check.Healthy, check.Message)
			}
			return nil
		},
	}

	restartCmd := &cobra.Command{
		Use:   "restart",
		Short: fmt.Sprintf("Restart the %s service", use),
		RunE: func(cmd *cobra.Command, args []string) error {
			configPath, _ := cmd.Flags().GetString("config")
			target, _ := cmd.Flags().GetString("target")
			f, err := buildFleet(cmd, configPath)
			if err != nil {
				return err
			}
			defer f.Close()

			work, err := resolveWorkItem(f, kind, target)
			if err != nil {
				return err
			}
			d, ok := f.registry.Get(kind)
			if !ok {
				return fmt.Errorf("%s restart: no deployer registered", use)
			}
			ctx, cancel := ctxFromCommand(cmd)
			defer cancel()
			if err := d.Stop(ctx, work.Target); err != nil {
				return fmt.Errorf("%s restart: stop: %w", use, err)
			}
			if err := d.Start(ctx, work.Target); err != nil {
				return fmt.Errorf("%s restart: start: %w", use, err)
			}
			fmt.Printf("%s on %s: restarted\n", use, work.Target)
			return nil
		},
	}

	root.AddCommand(deployCmd, statusCmd, restartCmd)
	for _, c := range []*cobra.Command{deployCmd, statusCmd, restartCmd} {
		c.Flags().String("config", "", "Environment YAML file (required)")
		c.Flags().String("target", "", "Host name to act on (defaults to the host declared for this service in the environment)")
		c.MarkFlagRequired("config")
	}

	if opts.startStop {
		startCmd := &cobra.Command{
			Use:   "start",
			Short: fmt.Sprintf("Start the %s service's containers", use),
			RunE: func(cmd *cobra.Command, args []string) error {
				configPath, _ := cmd.Flags().GetString("config")
				target, _ := cmd.Flags().GetString("target")
				f, err := buildFleet(cmd, configPath)
				if err != nil {
					return err
				}
				defer f.Close()

				work, err := resolveWorkItem(f, kind, target)
				if err != nil {
					return err
				}
				d, ok := f.registry.Get(kind)
				if !ok {
					return fmt.Errorf("%s start: no deployer registered", use)
				}
				ctx, cancel := ctxFromCommand(cmd)
				defer cancel()
				if err := d.Start(ctx, work.Target); err != nil {
					return fmt.Errorf("%s start: %w", use, err)
				}
				fmt.Printf("%s on %s: started\n", use, work.Target)
				return nil
			},
		}
		stopCmd := &cobra.Command{
			Use:   "stop",
			Short: fmt.Sprintf("Stop the %s service's containers", use),
			RunE: func(cmd *cobra.Command, args []string) error {
				configPath, _ := cmd.Flags().GetString("config")
				target, _ := cmd.Flags().GetString("target")
				f, err := buildFleet(cmd, configPath)
				if err != nil {
					return err
				}
				defer f.Close()

				work, err := resolveWorkItem(f, kind, target)
				if err != nil {
					return err
				}
				d, ok := f.registry.Get(kind)
				if !ok {
					return fmt.Errorf("%s stop: no deployer registered", use)
				}
				ctx, cancel := ctxFromCommand(cmd)
				defer cancel()
				if err := d.Stop(ctx, work.Target); err != nil {
					return fmt.Errorf("%s stop: %w", use, err)
				}
				fmt.Printf("%s on %s: stopped\n", use, work.Target)
				return nil
			},
		}
		for _, c := range []*cobra.Command{startCmd, stopCmd} {
			c.Flags().String("config", "", "Environment YAML file (required)")
			c.Flags().String("target", "", "Host name to act on")
			c.MarkFlagRequired("config")
		}
		root.AddCommand(startCmd, stopCmd)
	}

	if opts.logs {
		logsCmd := &cobra.Command{
			Use:   "logs",
			Short: fmt.Sprintf("Tail the %s service's logs", use),
			RunE: func(cmd *cobra.Command, args []string) error {
				configPath, _ := cmd.Flags().GetString("config")
				target, _ := cmd.Flags().GetString("target")
				lines, _ := cmd.Flags().GetInt("lines")
				f, err := buildFleet(cmd, configPath)
				if err != nil {
					return err
				}
				defer f.Close()

				work, err := resolveWorkItem(f, kind, target)
				if err != nil {
					return err
				}
				d, ok := f.registry.Get(kind)
				if !ok {
					return fmt.Errorf("%s logs: no deployer registered", use)
				}
				ctx, cancel := ctxFromCommand(cmd)
				defer cancel()
				out, err := d.GetLogs(ctx, work.Target, lines)
				if err != nil {
					return fmt.Errorf("%s logs: %w", use, err)
				}
				fmt.Print(out)
				return nil
			},
		}
		logsCmd.Flags().String("config", "", "Environment YAML file (required)")
		logsCmd.Flags().String("target", "", "Host name to act on")
		logsCmd.Flags().Int("lines", 200, "Number of trailing log lines to fetch")
		logsCmd.MarkFlagRequired("config")
		root.AddCommand(logsCmd)
	}

	return root
}

// resolveWorkItem finds the ServiceWorkItem declared for kind in f.env,
// optionally overridden by an explicit --target host.
func resolveWorkItem(f *fleet, kind types.ServiceKind, target string) (types.ServiceWorkItem, error) {
	for _, w := range f.env.Services {
		if w.Kind != kind {
			continue
		}
		if target == "" || w.Target == target {
			return *w, nil
		}
	}
	if target != "" {
		return types.ServiceWorkItem{Kind: kind, Target: target}, nil
	}
	return types.ServiceWorkItem{}, usageErrorf("no %s service declared in the environment; pass --target", kind)
}
