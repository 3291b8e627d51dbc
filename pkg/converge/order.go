package converge

import (
	"github.com/newtron-network/ifconverge/pkg/netif"
)

// Order sorts desired interfaces so that each one follows the interfaces
// it depends on: a vlan after its parent, a bond after its slaves.
// Dependencies outside ds are ignored. Interfaces without a dependency
// relation keep their manifest order.
func Order(ds []*netif.Desired) []*netif.Desired {
	byName := make(map[string]*netif.Desired, len(ds))
	for _, d := range ds {
		byName[d.Name] = d
	}

	out := make([]*netif.Desired, 0, len(ds))
	done := make(map[string]bool, len(ds))
	visiting := make(map[string]bool)

	var visit func(d *netif.Desired)
	visit = func(d *netif.Desired) {
		if done[d.Name] || visiting[d.Name] {
			return
		}
		visiting[d.Name] = true
		for _, dep := range requires(d) {
			if r, ok := byName[dep]; ok {
				visit(r)
			}
		}
		delete(visiting, d.Name)
		done[d.Name] = true
		out = append(out, d)
	}

	for _, d := range ds {
		visit(d)
	}
	return out
}

func requires(d *netif.Desired) []string {
	var deps []string
	if d.Type == netif.TypeVLAN && d.Parent != "" {
		deps = append(deps, d.Parent)
	}
	if d.Bond != nil && d.Manages(netif.PropBondSlaves) {
		deps = append(deps, d.Bond.Slaves...)
	}
	return deps
}
