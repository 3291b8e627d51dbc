// Package metrics counts what a convergence run did and writes the result
// in the node-exporter textfile format. The tool exits after each run, so
// nothing is served over HTTP.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/newtron-network/ifconverge/pkg/changeset"
)

// Collector holds the convergence metrics of one run.
type Collector struct {
	registry *prometheus.Registry

	Changes         *prometheus.CounterVec
	PropertyResults *prometheus.CounterVec
	Resources       *prometheus.GaugeVec
	LastRunSeconds  prometheus.Gauge
	LastRunTime     prometheus.Gauge
}

// New registers the convergence metrics on a fresh registry.
func New() (*Collector, error) {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		Changes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifconverge_changes_total",
			Help: "Mutations recorded by the run, by kind (command or write).",
		}, []string{"kind"}),
		PropertyResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ifconverge_property_results_total",
			Help: "Properties handled by the run, by property and result.",
		}, []string{"property", "result"}),
		Resources: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "ifconverge_resources",
			Help: "Resources converged by the last run, by kind and outcome.",
		}, []string{"kind", "outcome"}),
		LastRunSeconds: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ifconverge_last_run_seconds",
			Help: "Wall-clock duration of the last run.",
		}),
		LastRunTime: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ifconverge_last_run_timestamp_seconds",
			Help: "Unix time the last run finished.",
		}),
	}

	for name, col := range map[string]prometheus.Collector{
		"ifconverge_changes_total":              c.Changes,
		"ifconverge_property_results_total":     c.PropertyResults,
		"ifconverge_resources":                  c.Resources,
		"ifconverge_last_run_seconds":           c.LastRunSeconds,
		"ifconverge_last_run_timestamp_seconds": c.LastRunTime,
	} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register %s: %w", name, err)
		}
	}
	return c, nil
}

// Gatherer returns the registry backing the collector.
func (c *Collector) Gatherer() prometheus.Gatherer {
	if c == nil {
		return nil
	}
	return c.registry
}

// ObserveReport counts one resource report.
func (c *Collector) ObserveReport(rep *changeset.Report) {
	if c == nil || rep == nil {
		return
	}
	c.Resources.WithLabelValues(rep.Kind, rep.Outcome()).Inc()
	for _, pr := range rep.Results {
		c.PropertyResults.WithLabelValues(pr.Property, result(pr)).Inc()
	}
}

// ObserveChanges counts the mutations in cs.
func (c *Collector) ObserveChanges(cs *changeset.ChangeSet) {
	if c == nil || cs == nil {
		return
	}
	for kind, n := range cs.Counts() {
		c.Changes.WithLabelValues(string(kind)).Add(float64(n))
	}
}

// ObserveRun records the duration and finish time of the run.
func (c *Collector) ObserveRun(d time.Duration, finished time.Time) {
	if c == nil {
		return
	}
	c.LastRunSeconds.Set(d.Seconds())
	c.LastRunTime.Set(float64(finished.Unix()))
}

// WriteTextfile writes every metric to path for the node-exporter textfile
// collector. The file is replaced atomically.
func (c *Collector) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, c.registry); err != nil {
		return fmt.Errorf("writing metrics textfile %s: %w", path, err)
	}
	return nil
}

func result(pr changeset.PropertyResult) string {
	switch {
	case pr.Err != nil:
		return "failed"
	case pr.Changed:
		return "changed"
	default:
		return "unchanged"
	}
}
