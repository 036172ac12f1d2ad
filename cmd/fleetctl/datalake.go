package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/FireNirva/quants-fleet/pkg/datalake"
	"github.com/FireNirva/quants-fleet/pkg/retention"
	"github.com/FireNirva/quants-fleet/pkg/stats"
	"github.com/FireNirva/quants-fleet/pkg/transfer"
	"github.com/FireNirva/quants-fleet/pkg/types"
)

var dataLakeCmd = &cobra.Command{
	Use:   "data-lake",
	Short: "Sync, inspect, and garbage-collect the local data lake's profiles",
}

// selectProfiles resolves the PROFILE positional arg / --all flag against
// f.env.DataLake, dereferencing the *types.Profile pointers the config
// loader produces into the value type the datalake/stats/retention
// packages operate on.
func selectProfiles(f *fleet, args []string, all bool) ([]types.Profile, error) {
	if all {
		out := make([]types.Profile, 0, len(f.env.DataLake))
		for _, p := range f.env.DataLake {
			out = append(out, *p)
		}
		return out, nil
	}
	if len(args) != 1 {
		return nil, usageErrorf("specify a PROFILE name or pass --all")
	}
	for _, p := range f.env.DataLake {
		if p.Name == args[0] {
			return []types.Profile{*p}, nil
		}
	}
	return nil, usageErrorf("no data-lake profile named %q", args[0])
}

var dataLakeSyncCmd = &cobra.Command{
	Use:   "sync [PROFILE]",
	Short: "Pull new data for one or every profile and run retention GC",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		all, _ := cmd.Flags().GetBool("all")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		sshUser, _ := cmd.Flags().GetString("ssh-user")

		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		profiles, err := selectProfiles(f, args, all)
		if err != nil {
			return err
		}
		if dryRun {
			for i := range profiles {
				profiles[i].DryRun = true
			}
		}

		coord := datalake.NewCoordinator(sshUser)
		ctx, cancel := ctxFromCommand(cmd)
		defer cancel()

		results, syncErr := coord.SyncAll(ctx, profiles)
		for _, r := range results {
			fmt.Printf("%-20s %-8s files=%-6d bytes=%-12s freed=%s\n",
				r.Profile, r.Status, r.FilesSynced, retention.FormatBytes(r.BytesSynced), retention.FormatBytes(r.RetentionFreedBytes))
		}
		if syncErr != nil {
			return fmt.Errorf("data-lake sync: %w", syncErr)
		}
		return nil
	},
}

var dataLakeStatsCmd = &cobra.Command{
	Use:   "stats [PROFILE]",
	Short: "Show local directory and last-sync statistics for one or every profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		all, _ := cmd.Flags().GetBool("all")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		profiles, err := selectProfiles(f, args, all)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			s, err := stats.GetProfileStats(p)
			if err != nil {
				fmt.Printf("%s: error: %v\n", p.Name, err)
				continue
			}
			fmt.Printf("%s:\n", p.Name)
			fmt.Printf("  files:      %d\n", s.Dir.FileCount)
			fmt.Printf("  size:       %s\n", retention.FormatBytes(s.Dir.TotalBytes))
			fmt.Printf("  last sync:  %s (status=%s)\n", s.LastSyncTime.Format("2006-01-02T15:04:05"), s.LastStatus)

			usage, err := stats.GetDiskUsage(p.LocalPath)
			if err == nil {
				fmt.Printf("  disk used:  %.1f%% (%s free)\n", usage.UsedPercent, retention.FormatBytes(int64(usage.FreeBytes)))
			}
		}
		return nil
	},
}

var dataLakeCleanupCmd = &cobra.Command{
	Use:   "cleanup [PROFILE]",
	Short: "Run retention garbage collection for one or every profile",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		all, _ := cmd.Flags().GetBool("all")
		dryRun, _ := cmd.Flags().GetBool("dry-run")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		profiles, err := selectProfiles(f, args, all)
		if err != nil {
			return err
		}
		for _, p := range profiles {
			result, err := retention.Run(p.LocalPath, p.RetentionDays, dryRun || p.DryRun)
			if err != nil {
				return fmt.Errorf("data-lake cleanup %s: %w", p.Name, err)
			}
			fmt.Printf("%s: freed %s\n", p.Name, retention.FormatBytes(result.FreedBytes))
			for _, e := range result.Entries {
				if e.Deleted {
					fmt.Printf("  - removed %s (%s)\n", e.Path, retention.FormatBytes(e.Freed))
				}
			}
		}
		return nil
	},
}

var dataLakeValidateCmd = &cobra.Command{
	Use:   "validate [PROFILE]",
	Short: "Check that one or every profile's local path and checkpoint are readable",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		all, _ := cmd.Flags().GetBool("all")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		profiles, err := selectProfiles(f, args, all)
		if err != nil {
			return err
		}
		var bad int
		for _, p := range profiles {
			if _, err := stats.GetProfileStats(p); err != nil {
				fmt.Printf("%s: INVALID: %v\n", p.Name, err)
				bad++
				continue
			}
			fmt.Printf("%s: OK\n", p.Name)
		}
		if bad > 0 {
			return fmt.Errorf("data-lake validate: %d of %d profiles invalid", bad, len(profiles))
		}
		return nil
	},
}

var dataLakeTestConnectionCmd = &cobra.Command{
	Use:   "test-connection [PROFILE]",
	Short: "Confirm SSH connectivity to one or every profile's remote host",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		all, _ := cmd.Flags().GetBool("all")
		sshUser, _ := cmd.Flags().GetString("ssh-user")
		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		profiles, err := selectProfiles(f, args, all)
		if err != nil {
			return err
		}
		ctx, cancel := ctxFromCommand(cmd)
		defer cancel()

		var bad int
		for _, p := range profiles {
			req := transfer.Request{
				RemoteHost: p.RemoteHost,
				SSHUser:    sshUser,
				SSHKeyPath: p.SSHKeyPath,
				SSHPort:    p.SSHPort,
			}
			if err := transfer.TestConnection(ctx, req); err != nil {
				fmt.Printf("%s: FAILED: %v\n", p.Name, err)
				bad++
				continue
			}
			fmt.Printf("%s: OK\n", p.Name)
		}
		if bad > 0 {
			return fmt.Errorf("data-lake test-connection: %d of %d profiles unreachable", bad, len(profiles))
		}
		return nil
	},
}

var dataLakeDaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Run sync on a cron schedule until interrupted, detached from deploy-environment",
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		schedule, _ := cmd.Flags().GetString("schedule")
		sshUser, _ := cmd.Flags().GetString("ssh-user")

		f, err := buildFleet(cmd, configPath)
		if err != nil {
			return err
		}
		defer f.Close()

		profiles, err := selectProfiles(f, nil, true)
		if err != nil {
			return err
		}

		coord := datalake.NewCoordinator(sshUser)
		daemon, err := datalake.NewDaemon(coord, profiles, schedule)
		if err != nil {
			return usageErrorf("invalid --schedule %q: %v", schedule, err)
		}

		daemon.Start()
		fmt.Printf("data-lake daemon running on schedule %q for %d profile(s); press ctrl-c to stop\n", schedule, len(profiles))

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		<-ctx.Done()
		<-daemon.Stop().Done()
		return nil
	},
}

func init() {
	dataLakeCmd.AddCommand(dataLakeSyncCmd, dataLakeStatsCmd, dataLakeCleanupCmd, dataLakeValidateCmd, dataLakeTestConnectionCmd, dataLakeDaemonCmd)
	dataLakeDaemonCmd.Flags().String("config", "", "Environment YAML file (required)")
	dataLakeDaemonCmd.Flags().String("schedule", "*/15 * * * *", "Standard 5-field cron expression")
	dataLakeDaemonCmd.MarkFlagRequired("config")
	for _, c := range []*cobra.Command{dataLakeSyncCmd, dataLakeStatsCmd, dataLakeCleanupCmd, dataLakeValidateCmd, dataLakeTestConnectionCmd} {
		c.Flags().String("config", "", "Environment YAML file (required)")
		c.Flags().Bool("all", false, "Operate on every declared profile instead of a single PROFILE")
		c.MarkFlagRequired("config")
	}
	dataLakeSyncCmd.Flags().Bool("dry-run", false, "Log what would transfer and what retention would free without changing anything")
	dataLakeCleanupCmd.Flags().Bool("dry-run", false, "Report what retention would free without deleting anything")
}
