package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ifconverge/pkg/audit"
	"github.com/newtron-network/ifconverge/pkg/cli"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "View audit logs",
	Long: `View the audit log of converged resources.

Every resource a run touches is logged with its host, user, action, the
commands and sysfs writes issued for it, and whether it succeeded.

Examples:
  ifconverge audit list --resource bond0
  ifconverge audit list --last 24h --changed
  ifconverge audit list --failures`,
}

var (
	auditHost     string
	auditUser     string
	auditResource string
	auditKind     string
	auditLast     string
	auditLimit    int
	auditFailures bool
	auditChanged  bool
)

var auditListCmd = &cobra.Command{
	Use:   "list",
	Short: "List audit events",
	RunE: func(cmd *cobra.Command, args []string) error {
		filter := audit.Filter{
			Host:        auditHost,
			User:        auditUser,
			Resource:    auditResource,
			Kind:        auditKind,
			Limit:       auditLimit,
			FailureOnly: auditFailures,
			ChangedOnly: auditChanged,
		}

		// Parse --last duration
		if auditLast != "" {
			duration, err := time.ParseDuration(auditLast)
			if err != nil {
				return fmt.Errorf("invalid duration: %s", auditLast)
			}
			filter.StartTime = time.Now().Add(-duration)
		}

		events, err := audit.Query(filter)
		if err != nil {
			return fmt.Errorf("querying audit log: %w", err)
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			return json.NewEncoder(w).Encode(events)
		}

		if len(events) == 0 {
			fmt.Fprintln(w, "No audit events found")
			return nil
		}

		t := cli.NewTableTo(w, "TIMESTAMP", "USER", "HOST", "RESOURCE", "ACTION", "CHANGES", "STATUS")
		for _, event := range events {
			status := cli.Green("ok")
			if !event.Success {
				status = cli.Red("failed")
			}
			if event.DryRun {
				status = cli.Yellow("dry-run")
			}
			t.Row(
				event.Timestamp.Format("2006-01-02 15:04:05"),
				event.User,
				event.Host,
				event.Resource,
				string(event.Action),
				strconv.Itoa(len(event.Changes)),
				status,
			)
		}
		t.Flush()
		return nil
	},
}

func init() {
	auditListCmd.Flags().StringVar(&auditHost, "host-name", "", "Filter by host")
	auditListCmd.Flags().StringVar(&auditUser, "user", "", "Filter by user")
	auditListCmd.Flags().StringVar(&auditResource, "resource", "", "Filter by resource (interface name or route key)")
	auditListCmd.Flags().StringVar(&auditKind, "kind", "", "Filter by kind (interface, route)")
	auditListCmd.Flags().StringVar(&auditLast, "last", "", "Show events from last duration (e.g., 24h)")
	auditListCmd.Flags().IntVar(&auditLimit, "limit", 100, "Maximum events to show")
	auditListCmd.Flags().BoolVar(&auditFailures, "failures", false, "Show only failed resources")
	auditListCmd.Flags().BoolVar(&auditChanged, "changed", false, "Show only resources that issued changes")

	auditCmd.AddCommand(auditListCmd)
}
