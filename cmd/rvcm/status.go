package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/easzlab/rvcm/pkg/calls"
	"github.com/easzlab/rvcm/pkg/status"
)

func newInfoCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Print router status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			info, err := status.Fetch(cmd.Context(), a.client())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			return render(out, format, info, func() error {
				_, err := fmt.Fprintln(out, info.Pretty())
				return err
			})
		},
	}
	addOutputFlag(cmd, &format)
	return cmd
}

const callRowFormat = "%-4v %-9s %-9s %-13s %-16s %-16s %-16s %8v %-19s\n"

func newCallsCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "calls",
		Short: "Print VoIP call history",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			history, err := calls.Fetch(cmd.Context(), a.client())
			if err != nil {
				return err
			}

			records := make([]calls.Record, 0, len(history))
			for _, call := range history {
				records = append(records, call.Record())
			}

			out := cmd.OutOrStdout()
			return render(out, format, records, func() error {
				fmt.Fprintf(out, callRowFormat,
					"LINE", "DIRECTION", "STATUS", "CALLING-PHONE", "CALLING-IP",
					"CALLED-PHONE", "CALLED-IP", "DURATION", "STAMP")
				for _, r := range records {
					fmt.Fprintf(out, callRowFormat,
						r.Line, r.Direction, r.Status, r.CallingPhone, r.CallingIP,
						r.CalledPhone, r.CalledIP, r.Duration, r.Stamp)
				}
				return nil
			})
		},
	}
	addOutputFlag(cmd, &format)
	return cmd
}
