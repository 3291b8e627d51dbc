// Package manifest loads the desired-state YAML file: the interfaces and
// routes a run should converge.
package manifest

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/route"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// File is the raw manifest. Entries stay maps so unknown keys are
// reported instead of silently dropped.
//
//	interfaces:
//	  - name: bond0
//	    bond_slaves: [eth1, eth2]
//	    ipaddress: [192.0.2.10/24]
//	  - name: bond0.100
//	    mtu: 9000
//	routes:
//	  - prefix: 0.0.0.0/0
//	    nexthop: 192.0.2.1
//	    device: bond0
type File struct {
	Interfaces []map[string]any `yaml:"interfaces"`
	Routes     []map[string]any `yaml:"routes"`
}

// Plan is a fully validated manifest.
type Plan struct {
	Interfaces []*netif.Desired
	Routes     []*route.Desired
}

// Load reads and validates the manifest at path.
func Load(path string) (*Plan, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}
	plan, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return plan, nil
}

// Parse validates manifest YAML. Every problem is collected into one
// *util.ValidationError so nothing runs until the whole file is valid.
func Parse(data []byte) (*Plan, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing manifest YAML: %w", err)
	}

	v := &util.ValidationBuilder{}
	plan := &Plan{}

	seen := map[string]bool{}
	for i, entry := range f.Interfaces {
		name, _ := entry["name"].(string)
		if name == "" {
			v.AddErrorf("interfaces[%d]: name is required", i)
			continue
		}
		if seen[name] {
			v.AddErrorf("interfaces[%d]: duplicate interface %s", i, name)
			continue
		}
		seen[name] = true

		props := make(map[string]any, len(entry))
		for k, val := range entry {
			if k != "name" {
				props[k] = val
			}
		}
		d, err := netif.NewDesired(name, props)
		if err != nil {
			v.Merge(err)
			continue
		}
		plan.Interfaces = append(plan.Interfaces, d)
	}

	seenRoutes := map[string]bool{}
	for i, entry := range f.Routes {
		prefix, _ := entry["prefix"].(string)
		if prefix == "" {
			v.AddErrorf("routes[%d]: prefix is required", i)
			continue
		}
		d, err := route.NewDesired(prefix, entry)
		if err != nil {
			v.Merge(err)
			continue
		}
		if seenRoutes[d.Key()] {
			v.AddErrorf("routes[%d]: duplicate route %s", i, d.Key())
			continue
		}
		seenRoutes[d.Key()] = true
		plan.Routes = append(plan.Routes, d)
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	return plan, nil
}
