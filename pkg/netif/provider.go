package netif

import (
	"context"
	"fmt"

	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/host"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// Options tune how a Provider mutates interfaces.
type Options struct {
	// BondBracket takes an up bond down around slave and lacp_rate
	// changes and restores it afterwards.
	BondBracket bool
}

// DefaultOptions returns the options used when none are configured.
func DefaultOptions() Options {
	return Options{BondBracket: true}
}

// Provider owns the observed state of one host's interfaces for the
// duration of a run and converges desired state against it.
type Provider struct {
	host     *host.Host
	sys      *SysFS
	mut      *changeset.Mutator
	observed *ObservedState
	opts     Options

	// Names created or destroyed during this run. When previewing, the
	// kernel never sees these changes, so existence checks consult them
	// first.
	created   map[string]bool
	destroyed map[string]bool
	modprobed bool
}

// NewProvider returns a Provider that mutates h through mut.
func NewProvider(h *host.Host, mut *changeset.Mutator, opts Options) *Provider {
	return &Provider{
		host:      h,
		sys:       NewSysFS(h.FS),
		mut:       mut,
		observed:  NewObservedState(),
		opts:      opts,
		created:   make(map[string]bool),
		destroyed: make(map[string]bool),
	}
}

// Observed returns the provider's observed-state cache.
func (p *Provider) Observed() *ObservedState {
	return p.observed
}

// SysFS returns the sysfs accessor the provider reads and writes through.
func (p *Provider) SysFS() *SysFS {
	return p.sys
}

// Discover lists every interface with `ip address show`, enriches bonds
// from sysfs and replaces the cache with the result.
func (p *Provider) Discover(ctx context.Context) ([]*InterfaceRecord, error) {
	out, err := p.host.Run(ctx, "ip", "address", "show")
	if err != nil {
		return nil, fmt.Errorf("discovering interfaces: %w", err)
	}

	p.observed = NewObservedState()
	for rec := range Parse(out) {
		if rec.Type == TypeBonding {
			cfg, err := p.sys.ReadBond(rec.Name)
			if err != nil {
				util.WithInterface(rec.Name).Warnf("Reading bonding attributes: %v", err)
			}
			rec.Bond = cfg
		}
		p.observed.Put(rec)
	}

	util.Debugf("Discovered %d interfaces", len(p.observed.Records()))
	return p.observed.Records(), nil
}

// Exists reports whether the cache holds name as present. It never
// triggers discovery.
func (p *Provider) Exists(name string) bool {
	return p.observed.Present(name)
}

func (p *Provider) interfaceExists(name string) bool {
	switch {
	case p.destroyed[name]:
		return false
	case p.created[name]:
		return true
	}
	return p.sys.InterfaceExists(name)
}

func (p *Provider) bondExists(name string) bool {
	switch {
	case p.destroyed[name]:
		return false
	case p.created[name]:
		return true
	}
	return p.sys.BondExists(name)
}

// changes returns how many mutations the run has recorded so far.
func (p *Provider) changes() int {
	return len(p.mut.Changes.Changes)
}

func (p *Provider) ip(ctx context.Context, resource string, prop Property, args ...string) error {
	return p.mut.Command(ctx, resource, string(prop), "ip", args...)
}
