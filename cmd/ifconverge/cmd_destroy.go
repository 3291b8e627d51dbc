package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ifconverge/pkg/converge"
)

var destroyCmd = &cobra.Command{
	Use:   "destroy <interface>...",
	Short: "Delete bond and VLAN interfaces",
	Long: `Delete bond and VLAN interfaces. Physical and loopback interfaces are
left alone, as are interfaces that do not exist.

Examples:
  ifconverge destroy bond0.100
  ifconverge destroy bond0.100 bond0 -x`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := runEngine(cmd, "destroy", "", "", func(ctx context.Context, e *converge.Engine) (*converge.Summary, error) {
			return e.Destroy(ctx, args)
		})
		if err != nil {
			return err
		}
		return summaryErr(s)
	},
}
