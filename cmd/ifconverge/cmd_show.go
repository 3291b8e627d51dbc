package main

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/cli"
	"github.com/newtron-network/ifconverge/pkg/converge"
	"github.com/newtron-network/ifconverge/pkg/netif"
)

var showCmd = &cobra.Command{
	Use:   "show [interface...]",
	Short: "Show discovered interfaces",
	Long: `Discover interfaces with 'ip address show' and /sys/class/net and print
them. Bonds include their driver attributes and slaves.

Examples:
  ifconverge show
  ifconverge show bond0 bond0.100
  ifconverge --host 192.0.2.5 show --json`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := openHost()
		if err != nil {
			return err
		}
		defer h.Close()

		e := converge.New(h, "show", converge.Options{Hostname: targetName()})
		recs, err := e.Discover(context.Background())
		if err != nil {
			return err
		}

		if len(args) > 0 {
			want := make(map[string]bool, len(args))
			for _, a := range args {
				want[a] = true
			}
			var picked []*netif.InterfaceRecord
			for _, r := range recs {
				if want[r.Name] {
					picked = append(picked, r)
					delete(want, r.Name)
				}
			}
			if len(want) > 0 {
				missing := slices.Sorted(maps.Keys(want))
				return fmt.Errorf("interface not found: %s", strings.Join(missing, ", "))
			}
			recs = picked
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(recs)
		}

		t := cli.NewTableTo(w, "NAME", "TYPE", "STATE", "MTU", "MAC", "ADDRESSES", "DETAIL")
		for _, r := range recs {
			mtu := ""
			if r.MTU > 0 {
				mtu = strconv.Itoa(r.MTU)
			}
			t.Row(r.Name, string(r.Type), stateColor(r.AdminState), cli.OrDash(mtu),
				cli.OrDash(r.MAC), cli.OrDash(strings.Join(r.IPAddresses, ",")), cli.OrDash(detail(r)))
		}
		t.Flush()
		return nil
	},
}

func stateColor(s netif.AdminState) string {
	switch s {
	case netif.StateUp:
		return cli.Green(string(s))
	case netif.StateDown:
		return cli.Red(string(s))
	}
	return cli.Dim(string(s))
}

// detail summarises the type-specific fields of r.
func detail(r *netif.InterfaceRecord) string {
	switch {
	case r.Type == netif.TypeVLAN:
		return fmt.Sprintf("vlan %d on %s", r.VLANID, r.Parent)
	case r.Bond != nil:
		return fmt.Sprintf("%s miimon=%d lacp=%s hash=%s slaves=%s",
			r.Bond.Mode, r.Bond.Miimon, r.Bond.LACPRate, r.Bond.XmitHashPolicy,
			cli.OrDash(strings.Join(r.Bond.Slaves, ",")))
	}
	return ""
}

// printSummary prints the per-resource outcome table and the change list.
func printSummary(cmd *cobra.Command, s *converge.Summary) error {
	w := cmd.OutOrStdout()
	if jsonOutput {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(s)
	}

	t := cli.NewTableTo(w, "RESOURCE", "KIND", "ACTION", "OUTCOME", "DETAIL")
	for _, rep := range s.Reports() {
		t.Row(rep.Resource, rep.Kind, string(rep.Action), cli.Outcome(rep.Outcome()), cli.OrDash(failures(rep)))
	}
	t.Flush()

	if s.Changes.IsEmpty() {
		fmt.Fprintln(w, "\nNo changes.")
		return nil
	}
	fmt.Fprintf(w, "\nChanges (%d):\n", len(s.Changes.Changes))
	fmt.Fprint(w, s.Changes.String())
	printDryRunNotice(w)
	return nil
}

func failures(rep *changeset.Report) string {
	var parts []string
	for _, pr := range rep.Failed() {
		parts = append(parts, pr.Property+": "+pr.Error)
	}
	return strings.Join(parts, "; ")
}
