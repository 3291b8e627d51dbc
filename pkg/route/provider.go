package route

import (
	"context"
	"fmt"

	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/host"
	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// ReportKind is the resource kind route reports carry.
const ReportKind = "route"

// Provider looks routes up on a host and converges them.
type Provider struct {
	host *host.Host
	mut  *changeset.Mutator
}

// NewProvider returns a Provider that mutates h through mut.
func NewProvider(h *host.Host, mut *changeset.Mutator) *Provider {
	return &Provider{host: h, mut: mut}
}

// Lookup returns the route for (prefix, metric), or nil when there is none.
func (p *Provider) Lookup(ctx context.Context, prefix string, metric int) (*RouteRecord, error) {
	out, err := p.host.Run(ctx, "ip", "route", "list", prefix)
	if err != nil {
		return nil, fmt.Errorf("listing routes for %s: %w", prefix, err)
	}
	r, ok := ParseRoutes(out, prefix, metric)
	if !ok {
		util.WithRoute(Key(prefix, metric)).Debug("Not found")
		return nil, nil
	}
	return r, nil
}

// Create adds the route.
func (p *Provider) Create(ctx context.Context, r RouteRecord) error {
	return p.ip(ctx, r, "add")
}

// Destroy deletes the route.
func (p *Provider) Destroy(ctx context.Context, r RouteRecord) error {
	return p.ip(ctx, r, "delete")
}

// Flush rewrites an existing route in place.
func (p *Provider) Flush(ctx context.Context, r RouteRecord) error {
	return p.ip(ctx, r, "change")
}

func (p *Provider) ip(ctx context.Context, r RouteRecord, verb string) error {
	util.WithRoute(r.Key()).Debugf("ip route %s", verb)
	return p.mut.Command(ctx, r.Key(), "ensure", "ip", r.args(verb)...)
}

// Converge brings one route to its desired state. Command failures are
// reported on the route and never abort other resources.
func (p *Provider) Converge(ctx context.Context, d *Desired) *changeset.Report {
	rep := changeset.NewReport(d.Key(), ReportKind)

	obs, err := p.Lookup(ctx, d.Prefix, d.Metric)
	if err != nil {
		rep.Record("ensure", false, util.MarkCritical(err))
		return rep
	}

	switch {
	case d.Ensure == netif.EnsureAbsent && obs != nil:
		rep.Action = changeset.ActionDestroy
		err := p.Destroy(ctx, *obs)
		rep.Record("ensure", err == nil, err)
	case d.Ensure == netif.EnsureAbsent:
	case obs == nil:
		rep.Action = changeset.ActionCreate
		err := p.Create(ctx, d.RouteRecord)
		rep.Record("ensure", err == nil, err)
	case !d.InSync(obs):
		rep.Action = changeset.ActionUpdate
		target := d.merged(obs)
		util.WithRoute(d.Key()).Debugf("drift: dev %q via %q -> dev %q via %q",
			obs.Device, obs.Nexthop, target.Device, target.Nexthop)
		err := p.Flush(ctx, target)
		rep.Record(driftProperty(d, obs), err == nil, err)
	}
	return rep
}

func driftProperty(d *Desired, obs *RouteRecord) string {
	switch {
	case d.manageDevice && obs.Device != d.Device && d.manageNexthop && obs.Nexthop != d.Nexthop:
		return "device,nexthop"
	case d.manageDevice && obs.Device != d.Device:
		return "device"
	default:
		return "nexthop"
	}
}
