package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/easzlab/rvcm/pkg/nat"
	"github.com/easzlab/rvcm/pkg/probe"
	"github.com/easzlab/rvcm/pkg/syncer"
)

func newSyncCommand(a *app) *cobra.Command {
	var watch, apply bool
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Reconcile the forwarding table with the rules in the config file",
		Long: "Create or update the rules listed under `rules:` in the config file and, with " +
			"`prune: true`, remove every other rule. With --watch the table is reconciled again " +
			"whenever the config file changes.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.client()
			reconciler := nat.NewReconciler(a.natService(client), a.logger.Named("reconciler"))
			s := syncer.NewSyncer(a.configMgr, reconciler, client, apply, a.logger.Named("syncer"))

			if watch {
				a.logger.Info("starting rvcm sync",
					zap.String("version", version),
					zap.String("config", a.configMgr.ConfigFileUsed()),
				)
				return s.Run(cmd.Context())
			}

			result, err := s.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if !result.Changed() {
				fmt.Fprintln(out, "nothing to sync")
				return nil
			}
			for _, rule := range result.Created {
				fmt.Fprintf(out, "creating %s\n", rule)
			}
			for _, rule := range result.Updated {
				fmt.Fprintf(out, "updating %s\n", rule)
			}
			for _, rule := range result.Removed {
				fmt.Fprintf(out, "removing %s\n", rule)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&watch, "watch", false, "keep running and reconcile on every config file change")
	cmd.Flags().BoolVar(&apply, "apply", false, "apply changes after every pass that saved")
	return cmd
}

func newCheckCommand(a *app) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check [name]",
		Short: "Probe whether the targets of enabled TCP rules accept connections",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client := a.client()
			table, err := a.natService(client).Fetch(cmd.Context())
			if err != nil {
				return err
			}
			prefix, err := lanPrefix(cmd.Context(), a.configMgr.GetConfig().Router.Host, client)
			if err != nil {
				return err
			}

			rules := table.Rules
			if len(args) == 1 {
				rules = table.Find(args[0])
			}

			prober := probe.NewProber(probe.NewTCPChecker(timeout), a.logger.Named("probe"))
			out := cmd.OutOrStdout()
			results := prober.Run(cmd.Context(), prefix, rules)
			if len(results) == 0 {
				fmt.Fprintln(out, "nothing to check")
				return nil
			}
			for _, result := range results {
				state := "reachable"
				switch {
				case result.Skipped:
					state = "skipped (udp)"
				case result.Err != nil:
					state = "unreachable: " + result.Err.Error()
				}
				fmt.Fprintf(out, "%-21s %-21s %s\n", result.Rule.Name, result.Address, state)
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&timeout, "timeout", 3*time.Second, "connect timeout per target")
	return cmd
}
