package main

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/easzlab/rvcm/pkg/nat"
	"github.com/easzlab/rvcm/pkg/router"
	"github.com/easzlab/rvcm/pkg/status"
)

// ruleView is a rule with its resolved LAN address, as listed by `rvcm nat`.
type ruleView struct {
	nat.Rule `yaml:",inline"`
	IP       string `json:"ip" yaml:"ip"`
}

const natRowFormat = "%-21s %-10s %-10s %-10s %-10s %-10s %-5s %s\n"

func newNATCommand(a *app) *cobra.Command {
	var format string
	cmd := &cobra.Command{
		Use:   "nat",
		Short: "Print the port forwarding table",
		Args:  cobra.NoArgs,
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

			views := make([]ruleView, 0, table.Len())
			for _, rule := range table.Rules {
				views = append(views, ruleView{Rule: rule, IP: prefix + strconv.Itoa(rule.TargetHost)})
			}

			out := cmd.OutOrStdout()
			return render(out, format, views, func() error {
				fmt.Fprintf(out, natRowFormat, "NAME", "STATUS", "S-MIN-PRT", "S-MAX-PRT", "D-MIN-PRT", "D-MAX-PRT", "PROTO", "IP")
				for _, v := range views {
					state := "inactive"
					if v.Enabled {
						state = "active"
					}
					fmt.Fprintf(out, natRowFormat, v.Name, state,
						strconv.Itoa(v.PublicPortMin), strconv.Itoa(v.PublicPortMax),
						strconv.Itoa(v.PrivatePortMin), strconv.Itoa(v.PrivatePortMax),
						v.Protocol, v.IP)
				}
				return nil
			})
		},
	}
	addOutputFlag(cmd, &format)
	return cmd
}

// lanPrefix derives the LAN network prefix from the router host, falling back
// to the LAN address on the status page when host is a name.
func lanPrefix(ctx context.Context, host string, getter status.Getter) (string, error) {
	if prefix, ok := router.LANPrefix(host); ok {
		return prefix, nil
	}
	info, err := status.Fetch(ctx, getter)
	if err != nil {
		return "", err
	}
	prefix, ok := router.LANPrefix(info.LocalIP)
	if !ok {
		return "", fmt.Errorf("router reports non-IPv4 LAN address %q", info.LocalIP)
	}
	return prefix, nil
}

func newCreateCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "create <name> <min-pub-port> <max-pub-port> <min-dest-port> <max-dest-port> <target> [tcp|udp|both]",
		Short: "Create a forwarding rule (disabled)",
		Long: "Append a forwarding rule to the table. The rule is always created disabled; " +
			"enable it with `rvcm enable` and commit with `rvcm apply`.",
		Args: cobra.RangeArgs(6, 7),
		RunE: func(cmd *cobra.Command, args []string) error {
			names := []string{"min-pub-port", "max-pub-port", "min-dest-port", "max-dest-port", "target"}
			numbers := make([]int, len(names))
			for i, name := range names {
				n, err := strconv.Atoi(args[i+1])
				if err != nil {
					return fmt.Errorf("invalid %s %q", name, args[i+1])
				}
				numbers[i] = n
			}

			protocol := nat.ProtocolBoth
			if len(args) == 7 {
				p, err := nat.ParseProtocol(args[6])
				if err != nil {
					return err
				}
				protocol = p
			}

			rule, err := a.natService(a.client()).Create(cmd.Context(), nat.Rule{
				Name:           args[0],
				Protocol:       protocol,
				PublicPortMin:  numbers[0],
				PublicPortMax:  numbers[1],
				PrivatePortMin: numbers[2],
				PrivatePortMax: numbers[3],
				TargetHost:     numbers[4],
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "creating %s\n", rule)
			return nil
		},
	}
}

func newEnableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable every rule with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := a.natService(a.client()).Enable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "enable", "enabling", changed)
			return nil
		},
	}
}

func newDisableCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable (but keep) every rule with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			changed, err := a.natService(a.client()).Disable(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "disable", "disabling", changed)
			return nil
		},
	}
}

func newUpdateCommand(a *app) *cobra.Command {
	var (
		minPub, maxPub, minDest, maxDest, target int
		protocol                                 string
	)
	cmd := &cobra.Command{
		Use:   "update <name>",
		Short: "Change fields of every rule with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var update nat.RuleUpdate
			flags := cmd.Flags()
			if flags.Changed("min-pub-port") {
				update.PublicPortMin = &minPub
			}
			if flags.Changed("max-pub-port") {
				update.PublicPortMax = &maxPub
			}
			if flags.Changed("min-dest-port") {
				update.PrivatePortMin = &minDest
			}
			if flags.Changed("max-dest-port") {
				update.PrivatePortMax = &maxDest
			}
			if flags.Changed("target") {
				update.TargetHost = &target
			}
			if flags.Changed("protocol") {
				p, err := nat.ParseProtocol(protocol)
				if err != nil {
					return err
				}
				update.Protocol = &p
			}
			if update.IsEmpty() {
				return fmt.Errorf("at least one field to update is required")
			}

			changed, err := a.natService(a.client()).Update(cmd.Context(), args[0], update)
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "update", "updating", changed)
			return nil
		},
	}

	cmd.Flags().IntVar(&minPub, "min-pub-port", 0, "lowest public port")
	cmd.Flags().IntVar(&maxPub, "max-pub-port", 0, "highest public port")
	cmd.Flags().IntVar(&minDest, "min-dest-port", 0, "lowest destination port")
	cmd.Flags().IntVar(&maxDest, "max-dest-port", 0, "highest destination port")
	cmd.Flags().IntVar(&target, "target", 0, "last octet of the destination LAN address")
	cmd.Flags().StringVar(&protocol, "protocol", "", "tcp, udp or both")
	return cmd
}

func newRenameCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "rename <name> <new-name>",
		Short: "Rename every rule with the given name",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			renamed, err := a.natService(a.client()).Rename(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "rename", "renaming", renamed)
			return nil
		},
	}
}

func newRemoveCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Remove every rule with the given name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			removed, err := a.natService(a.client()).Remove(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			report(cmd.OutOrStdout(), "remove", "removing", removed)
			return nil
		},
	}
}

func newApplyCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Commit saved changes on the router",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.client().Apply(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "changes applied")
			return nil
		},
	}
}

// report echoes changed rules, or the "nothing to <verb>" notice.
func report(w io.Writer, verb, progressive string, rules []nat.Rule) {
	if len(rules) == 0 {
		fmt.Fprintf(w, "nothing to %s\n", verb)
		return
	}
	for _, rule := range rules {
		fmt.Fprintf(w, "%s %s\n", progressive, rule)
	}
}
