// Package converge drives one run: discover the host once, converge every
// resource of a plan in dependency order, then report, audit, count and
// optionally publish the result.
package converge

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/newtron-network/ifconverge/pkg/audit"
	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/host"
	"github.com/newtron-network/ifconverge/pkg/manifest"
	"github.com/newtron-network/ifconverge/pkg/metrics"
	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/route"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// Publisher exports observed interface state after an executed run.
type Publisher interface {
	Publish(ctx context.Context, records []*netif.InterfaceRecord) error
}

// Options configure an Engine.
type Options struct {
	// Execute applies changes. Without it the run only records them.
	Execute bool
	Netif   netif.Options

	// Hostname and User label the change set and audit events.
	Hostname string
	User     string

	// Audit receives one event per resource. Nil uses the package
	// default logger of audit.
	Audit     audit.Logger
	Metrics   *metrics.Collector
	Publisher Publisher
}

// Engine converges one host. An Engine serves a single run.
type Engine struct {
	opts    Options
	changes *changeset.ChangeSet
	ifaces  *netif.Provider
	routes  *route.Provider

	discovered bool
}

// New returns an Engine for operation on h.
func New(h *host.Host, operation string, opts Options) *Engine {
	cs := changeset.New(opts.Hostname, operation, !opts.Execute)
	mut := changeset.NewMutator(h, cs, opts.Execute)
	return &Engine{
		opts:    opts,
		changes: cs,
		ifaces:  netif.NewProvider(h, mut, opts.Netif),
		routes:  route.NewProvider(h, mut),
	}
}

// ChangeSet returns the journal of every mutation the run recorded.
func (e *Engine) ChangeSet() *changeset.ChangeSet {
	return e.changes
}

// Interfaces returns the interface provider.
func (e *Engine) Interfaces() *netif.Provider {
	return e.ifaces
}

// Routes returns the route provider.
func (e *Engine) Routes() *route.Provider {
	return e.routes
}

// Discover reads every interface on the host into the observed cache.
func (e *Engine) Discover(ctx context.Context) ([]*netif.InterfaceRecord, error) {
	recs, err := e.ifaces.Discover(ctx)
	if err != nil {
		return nil, err
	}
	e.discovered = true
	return recs, nil
}

func (e *Engine) ensureDiscovered(ctx context.Context) error {
	if e.discovered {
		return nil
	}
	_, err := e.Discover(ctx)
	return err
}

// Apply converges plan. Absent routes go first, then absent interfaces in
// reverse dependency order, present interfaces in dependency order and
// finally present routes. A resource failure never stops the others; the
// returned error is only set when the host could not be read at all.
func (e *Engine) Apply(ctx context.Context, plan *manifest.Plan) (*Summary, error) {
	start := time.Now()
	if err := e.ensureDiscovered(ctx); err != nil {
		return nil, err
	}
	s := e.newSummary()

	var present, absent []*route.Desired
	for _, r := range plan.Routes {
		if r.Ensure == netif.EnsureAbsent {
			absent = append(absent, r)
		} else {
			present = append(present, r)
		}
	}

	for _, r := range absent {
		s.Routes = append(s.Routes, e.track(func() *changeset.Report { return e.routes.Converge(ctx, r) }))
	}

	ordered := Order(plan.Interfaces)
	for _, d := range slices.Backward(ordered) {
		if d.Ensure == netif.EnsureAbsent {
			s.Interfaces = append(s.Interfaces, e.track(func() *changeset.Report { return e.ifaces.Converge(ctx, d) }))
		}
	}
	for _, d := range ordered {
		if d.Ensure != netif.EnsureAbsent {
			s.Interfaces = append(s.Interfaces, e.track(func() *changeset.Report { return e.ifaces.Converge(ctx, d) }))
		}
	}

	for _, r := range present {
		s.Routes = append(s.Routes, e.track(func() *changeset.Report { return e.routes.Converge(ctx, r) }))
	}

	e.finish(ctx, s, start)
	return s, nil
}

// Destroy removes the named bonds and vlans.
func (e *Engine) Destroy(ctx context.Context, names []string) (*Summary, error) {
	start := time.Now()
	if err := e.ensureDiscovered(ctx); err != nil {
		return nil, err
	}
	s := e.newSummary()
	for _, name := range names {
		s.Interfaces = append(s.Interfaces, e.track(func() *changeset.Report { return e.ifaces.Destroy(ctx, name) }))
	}
	e.finish(ctx, s, start)
	return s, nil
}

func (e *Engine) newSummary() *Summary {
	return &Summary{
		Host:      e.opts.Hostname,
		Operation: e.changes.Operation,
		DryRun:    !e.opts.Execute,
		Changes:   e.changes,
	}
}

// track runs one resource, then audits and counts its report.
func (e *Engine) track(run func() *changeset.Report) *changeset.Report {
	start := time.Now()
	rep := run()
	dur := time.Since(start)

	log := util.WithField(rep.Kind, rep.Resource)
	if err := rep.Err(); err != nil {
		log.Warnf("%s: %v", rep.Outcome(), err)
	} else {
		log.Debugf("%s (%s)", rep.Outcome(), rep.Action)
	}

	e.opts.Metrics.ObserveReport(rep)

	event := audit.NewEvent(e.opts.User, e.opts.Hostname, e.changes.Operation).
		FromReport(rep, e.changes.ForResource(rep.Resource)).
		WithDuration(dur).
		WithDryRun(!e.opts.Execute)
	var err error
	if e.opts.Audit != nil {
		err = e.opts.Audit.Log(event)
	} else {
		err = audit.Log(event)
	}
	if err != nil {
		log.Warnf("Writing audit event: %v", err)
	}
	return rep
}

func (e *Engine) finish(ctx context.Context, s *Summary, start time.Time) {
	s.Duration = time.Since(start)
	e.opts.Metrics.ObserveChanges(e.changes)
	e.opts.Metrics.ObserveRun(s.Duration, time.Now())

	if e.opts.Publisher == nil {
		return
	}
	if !e.opts.Execute {
		util.Logger.Debug("Dry run, not publishing state")
		return
	}
	recs, err := e.Discover(ctx)
	if err == nil {
		err = e.opts.Publisher.Publish(ctx, recs)
	}
	if err != nil {
		s.PublishErr = fmt.Errorf("publishing state: %w", err)
		util.Logger.Warn(s.PublishErr)
	}
}

// Summary is the outcome of one run.
type Summary struct {
	Host       string               `json:"host"`
	Operation  string               `json:"operation"`
	DryRun     bool                 `json:"dry_run"`
	Interfaces []*changeset.Report  `json:"interfaces"`
	Routes     []*changeset.Report  `json:"routes"`
	Changes    *changeset.ChangeSet `json:"changes"`
	Duration   time.Duration        `json:"duration"`
	PublishErr error                `json:"-"`
}

// Reports returns interface reports followed by route reports.
func (s *Summary) Reports() []*changeset.Report {
	return slices.Concat(s.Interfaces, s.Routes)
}

// Failed returns the reports that carry at least one error.
func (s *Summary) Failed() []*changeset.Report {
	var out []*changeset.Report
	for _, r := range s.Reports() {
		if len(r.Failed()) > 0 {
			out = append(out, r)
		}
	}
	return out
}

// Changed reports whether the run recorded any mutation.
func (s *Summary) Changed() bool {
	return !s.Changes.IsEmpty()
}

// Err joins every resource failure and any publish failure.
func (s *Summary) Err() error {
	var errs []error
	for _, r := range s.Failed() {
		errs = append(errs, r.Err())
	}
	if s.PublishErr != nil {
		errs = append(errs, s.PublishErr)
	}
	return errors.Join(errs...)
}
