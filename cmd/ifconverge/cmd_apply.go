package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newtron-network/ifconverge/pkg/converge"
	"github.com/newtron-network/ifconverge/pkg/manifest"
	"github.com/newtron-network/ifconverge/pkg/metrics"
	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/statepub"
	"github.com/newtron-network/ifconverge/pkg/util"
)

var (
	manifestPath    string
	metricsTextfile string
	redisAddr       string
	redisDB         int
)

var applyCmd = &cobra.Command{
	Use:   "apply",
	Short: "Converge the host to a manifest",
	Long: `Converge interfaces and routes to the desired state in a manifest.

Absent routes are removed first, then absent interfaces (VLANs before the
bonds they ride on), then present interfaces (bond slaves and VLAN parents
first), then present routes. A failing resource never stops the others.

Examples:
  ifconverge apply -f net.yaml                  # Preview
  ifconverge apply -f net.yaml -x               # Execute
  ifconverge apply -f net.yaml -x --redis localhost:6379`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path := manifestPath
		if path == "" {
			path = userSettings.Manifest
		}
		if path == "" {
			return fmt.Errorf("no manifest: use -f or 'ifconverge settings set manifest <path>'")
		}
		plan, err := manifest.Load(path)
		if err != nil {
			return err
		}

		textfile := metricsTextfile
		if textfile == "" {
			textfile = userSettings.MetricsTextfile
		}
		addr := redisAddr
		if addr == "" {
			addr = userSettings.RedisAddr
		}

		s, err := runEngine(cmd, "apply", textfile, addr, func(ctx context.Context, e *converge.Engine) (*converge.Summary, error) {
			return e.Apply(ctx, plan)
		})
		if err != nil {
			return err
		}
		return summaryErr(s)
	},
}

func init() {
	applyCmd.Flags().StringVarP(&manifestPath, "file", "f", "", "Manifest file (default from settings)")
	applyCmd.Flags().StringVar(&metricsTextfile, "metrics-textfile", "", "Write Prometheus metrics to this file")
	applyCmd.Flags().StringVar(&redisAddr, "redis", "", "Publish observed state to this Redis server after executing")
	applyCmd.Flags().IntVar(&redisDB, "redis-db", 0, "Redis database number")
}

// runEngine builds an engine for the target host, runs fn and prints the
// summary. Metrics are written to textfile and state is published to
// redisAddr when those are set.
func runEngine(cmd *cobra.Command, operation, textfile, redisAddr string,
	fn func(context.Context, *converge.Engine) (*converge.Summary, error)) (*converge.Summary, error) {
	ctx := context.Background()

	h, err := openHost()
	if err != nil {
		return nil, err
	}
	defer h.Close()

	opts := converge.Options{
		Execute:  executeMode,
		Netif:    netif.Options{BondBracket: userSettings.GetBondBracket()},
		Hostname: targetName(),
		User:     currentUser(),
	}
	if textfile != "" {
		if opts.Metrics, err = metrics.New(); err != nil {
			return nil, err
		}
	}
	if redisAddr != "" && executeMode {
		pub, err := statepub.New(ctx, redisAddr, redisDB)
		if err != nil {
			return nil, err
		}
		defer pub.Close()
		opts.Publisher = pub
	}

	s, err := fn(ctx, converge.New(h, operation, opts))
	if err != nil {
		return nil, err
	}
	if err := printSummary(cmd, s); err != nil {
		return nil, err
	}

	if textfile != "" {
		if err := opts.Metrics.WriteTextfile(textfile); err != nil {
			util.Warnf("Writing metrics: %v", err)
		}
	}
	if s.PublishErr != nil {
		util.Warnf("Publishing state: %v", s.PublishErr)
	}
	return s, nil
}

// summaryErr turns resource failures into the command's exit status.
func summaryErr(s *converge.Summary) error {
	if failed := s.Failed(); len(failed) > 0 {
		return fmt.Errorf("%d of %d resources failed", len(failed), len(s.Reports()))
	}
	return nil
}
