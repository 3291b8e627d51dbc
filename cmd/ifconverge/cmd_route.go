package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/cli"
	"github.com/newtron-network/ifconverge/pkg/route"
	"github.com/newtron-network/ifconverge/pkg/util"
)

var routeMetric int

var routeCmd = &cobra.Command{
	Use:   "route",
	Short: "Inspect routes",
}

var routeShowCmd = &cobra.Command{
	Use:   "show <prefix>",
	Short: "Show the route for a prefix and metric",
	Long: `Look up the route for (prefix, metric) with 'ip route list'.

Examples:
  ifconverge route show 0.0.0.0/0
  ifconverge route show 10.0.0.0/8 --metric 100`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		prefix := args[0]
		if prefix != "default" {
			network, err := util.CanonicalNetwork(prefix)
			if err != nil {
				return err
			}
			prefix = network
		}

		h, err := openHost()
		if err != nil {
			return err
		}
		defer h.Close()

		// Lookups never mutate, so a dry-run mutator is enough.
		p := route.NewProvider(h, changeset.NewMutator(h, changeset.New(targetName(), "route-show", true), false))
		r, err := p.Lookup(context.Background(), prefix, routeMetric)
		if err != nil {
			return err
		}
		if r == nil {
			return fmt.Errorf("no route for %s", route.Key(prefix, routeMetric))
		}

		w := cmd.OutOrStdout()
		if jsonOutput {
			enc := json.NewEncoder(w)
			enc.SetIndent("", "  ")
			return enc.Encode(r)
		}
		t := cli.NewTableTo(w, "PREFIX", "METRIC", "NEXTHOP", "DEVICE")
		t.Row(r.Prefix, strconv.Itoa(r.Metric), cli.OrDash(r.Nexthop), cli.OrDash(r.Device))
		t.Flush()
		return nil
	},
}

func init() {
	routeShowCmd.Flags().IntVar(&routeMetric, "metric", 0, "Route metric")
	routeCmd.AddCommand(routeShowCmd)
}
