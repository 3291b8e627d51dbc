package main

import (
	"strconv"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ifconverge/pkg/cli"
	"github.com/newtron-network/ifconverge/pkg/netif"
)

var classifyCmd = &cobra.Command{
	Use:   "classify <name>...",
	Short: "Show the type an interface name classifies as",
	Long: `Print the interface type derived from each name, with the VLAN tag and
parent for VLAN names. Nothing on the host is read.

Examples:
  ifconverge classify eth0 bond0 bond0.100 vlan20`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		t := cli.NewTableTo(cmd.OutOrStdout(), "NAME", "TYPE", "VLANID", "PARENT")
		for _, name := range args {
			typ := netif.Classify(name)
			vid, parent := "", ""
			if typ == netif.TypeVLAN {
				if id, ok := netif.VLANIDFromName(name); ok {
					vid = strconv.Itoa(id)
				}
				parent, _ = netif.VLANParentFromName(name)
			}
			t.Row(name, string(typ), cli.OrDash(vid), cli.OrDash(parent))
		}
		t.Flush()
		return nil
	},
}
