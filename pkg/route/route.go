// Package route converges static routes through `ip route`.
package route

import (
	"fmt"
	"net/netip"
	"sort"
	"strconv"
	"strings"

	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// MaxMetric is the largest accepted route metric.
const MaxMetric = 255

// RouteRecord is one route. Routes are keyed by (Prefix, Metric).
type RouteRecord struct {
	Prefix  string `json:"prefix"`
	Metric  int    `json:"metric"`
	Device  string `json:"device,omitempty"`
	Nexthop string `json:"nexthop,omitempty"`
}

// Key identifies the route, e.g. "10.0.0.0/8 100".
func (r RouteRecord) Key() string {
	return Key(r.Prefix, r.Metric)
}

// Key builds a route key from its parts.
func Key(prefix string, metric int) string {
	return prefix + " " + strconv.Itoa(metric)
}

// args renders `ip route <verb>` arguments for r.
func (r RouteRecord) args(verb string) []string {
	args := []string{"route", verb, r.Prefix}
	if r.Nexthop != "" {
		args = append(args, "via", r.Nexthop)
	}
	if r.Device != "" {
		args = append(args, "dev", r.Device)
	}
	return append(args, "metric", strconv.Itoa(r.Metric))
}

// Desired is a validated desired route.
type Desired struct {
	RouteRecord
	Ensure        netif.Ensure
	manageDevice  bool
	manageNexthop bool
}

// NewDesired validates props (manifest keys to values) for the route to
// prefix. Device and nexthop are only converged when given.
func NewDesired(prefix string, props map[string]any) (*Desired, error) {
	v := &util.ValidationBuilder{}
	d := &Desired{RouteRecord: RouteRecord{Prefix: prefix}, Ensure: netif.EnsurePresent}

	if network, err := util.CanonicalNetwork(prefix); err != nil {
		v.AddErrorf("route %s: %v", prefix, err)
	} else {
		d.Prefix = network
	}

	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		var s string
		if props[key] != nil {
			s = strings.TrimSpace(fmt.Sprint(props[key]))
		}
		switch key {
		case "prefix":
		case "ensure":
			switch netif.Ensure(s) {
			case netif.EnsurePresent, netif.EnsureAbsent:
				d.Ensure = netif.Ensure(s)
			default:
				v.AddErrorf("route %s: ensure must be present or absent, got %q", prefix, s)
			}
		case "metric":
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 || n > MaxMetric {
				v.AddErrorf("route %s: metric must be 0-%d, got %q", prefix, MaxMetric, s)
				continue
			}
			d.Metric = n
		case "device":
			if s == "" {
				v.AddErrorf("route %s: device is empty", prefix)
				continue
			}
			d.Device = s
			d.manageDevice = true
		case "nexthop":
			addr, err := netip.ParseAddr(s)
			if err != nil || addr.Zone() != "" {
				v.AddErrorf("route %s: nexthop: %q is not an IP address", prefix, s)
				continue
			}
			d.Nexthop = addr.String()
			d.manageNexthop = true
		default:
			v.AddErrorf("route %s: unknown property %q", prefix, key)
		}
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return d, nil
}

// InSync reports whether obs matches every managed field of d.
func (d *Desired) InSync(obs *RouteRecord) bool {
	if d.manageDevice && obs.Device != d.Device {
		return false
	}
	if d.manageNexthop && obs.Nexthop != d.Nexthop {
		return false
	}
	return true
}

// merged is obs with d's managed fields applied.
func (d *Desired) merged(obs *RouteRecord) RouteRecord {
	r := *obs
	if d.manageDevice {
		r.Device = d.Device
	}
	if d.manageNexthop {
		r.Nexthop = d.Nexthop
	}
	return r
}

// ParseRoutes finds the route for (prefix, metric) in `ip route list
// <prefix>` output. The first line whose metric matches wins; a line
// without a metric has metric 0. "default" stands for the queried prefix.
func ParseRoutes(raw, prefix string, metric int) (*RouteRecord, bool) {
	for _, line := range strings.Split(raw, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		r := &RouteRecord{Prefix: fields[0]}
		if r.Prefix == "default" {
			r.Prefix = prefix
		}
		valid := true
		for i := 1; i+1 < len(fields); i++ {
			val := fields[i+1]
			switch fields[i] {
			case "via":
				r.Nexthop = val
				i++
			case "dev":
				r.Device = val
				i++
			case "metric":
				n, err := strconv.Atoi(val)
				valid = err == nil
				r.Metric = n
				i++
			}
		}
		if valid && r.Metric == metric {
			return r, true
		}
	}
	return nil, false
}
