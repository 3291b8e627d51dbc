package netif

import (
	"fmt"
	"path"
	"strings"

	"github.com/newtron-network/ifconverge/pkg/host"
)

// SysClassNet is where the kernel exposes network devices.
const SysClassNet = "/sys/class/net"

// bondAttrFiles maps bonding properties to their sysfs attribute file.
var bondAttrFiles = map[Property]string{
	PropBondMode:           "mode",
	PropBondMiimon:         "miimon",
	PropBondLACPRate:       "lacp_rate",
	PropBondXmitHashPolicy: "xmit_hash_policy",
}

// bondAttrOrder is the order bond attributes are read and written in.
var bondAttrOrder = []Property{PropBondMode, PropBondMiimon, PropBondLACPRate, PropBondXmitHashPolicy}

// SysFS reads and writes bonding attributes and link state under
// /sys/class/net. Errors are returned as-is; callers decide severity.
type SysFS struct {
	fs   host.FileSystem
	root string
}

// NewSysFS returns a SysFS on fs rooted at SysClassNet.
func NewSysFS(fs host.FileSystem) *SysFS {
	return &SysFS{fs: fs, root: SysClassNet}
}

// MastersPath is the bonding_masters control file.
func (s *SysFS) MastersPath() string {
	return path.Join(s.root, "bonding_masters")
}

// BondAttrPath is the sysfs file for one attribute of a bond.
func (s *SysFS) BondAttrPath(bond, attr string) string {
	return path.Join(s.root, bond, "bonding", attr)
}

// ReadBondAttr returns the first whitespace token of a bond attribute.
// Attributes like mode read as "802.3ad 4".
func (s *SysFS) ReadBondAttr(bond, attr string) (string, error) {
	data, err := s.fs.ReadFile(s.BondAttrPath(bond, attr))
	if err != nil {
		return "", fmt.Errorf("reading %s of bond %s: %w", attr, bond, err)
	}
	fields := strings.Fields(string(data))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

// WriteBondAttr writes value to a bond attribute.
func (s *SysFS) WriteBondAttr(bond, attr, value string) error {
	if err := s.fs.WriteFile(s.BondAttrPath(bond, attr), []byte(value)); err != nil {
		return fmt.Errorf("writing %s=%s on bond %s: %w", attr, value, bond, err)
	}
	return nil
}

// BondSlaves returns the slaves of a bond. A non-bond has none.
func (s *SysFS) BondSlaves(bond string) ([]string, error) {
	if !s.BondExists(bond) {
		return []string{}, nil
	}
	data, err := s.fs.ReadFile(s.BondAttrPath(bond, "slaves"))
	if err != nil {
		return nil, fmt.Errorf("reading slaves of bond %s: %w", bond, err)
	}
	slaves := strings.Fields(string(data))
	if slaves == nil {
		slaves = []string{}
	}
	return slaves, nil
}

// BondExists reports whether name is a bonding master.
func (s *SysFS) BondExists(name string) bool {
	return s.fs.IsDir(path.Join(s.root, name, "bonding"))
}

// InterfaceExists reports whether the kernel knows the interface.
func (s *SysFS) InterfaceExists(name string) bool {
	return s.fs.Exists(path.Join(s.root, name))
}

// OperState returns the operational state ("up", "down", "lowerlayerdown"...).
func (s *SysFS) OperState(name string) (string, error) {
	data, err := s.fs.ReadFile(path.Join(s.root, name, "operstate"))
	if err != nil {
		return "", fmt.Errorf("reading operstate of %s: %w", name, err)
	}
	return strings.TrimSpace(string(data)), nil
}

// MastersExist reports whether the bonding driver is loaded.
func (s *SysFS) MastersExist() bool {
	return s.fs.Exists(s.MastersPath())
}

// ReadMasters lists the bonds the driver currently knows.
func (s *SysFS) ReadMasters() ([]string, error) {
	data, err := s.fs.ReadFile(s.MastersPath())
	if err != nil {
		return nil, fmt.Errorf("reading bonding_masters: %w", err)
	}
	return strings.Fields(string(data)), nil
}

// ReadBond reads the bond attributes and slaves of a bond into a
// BondConfig. It returns the first error but fills what it could read.
func (s *SysFS) ReadBond(bond string) (*BondConfig, error) {
	cfg := &BondConfig{Slaves: []string{}}
	var firstErr error
	keep := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	for _, p := range bondAttrOrder {
		v, err := s.ReadBondAttr(bond, bondAttrFiles[p])
		if err != nil {
			keep(err)
			continue
		}
		if err := cfg.set(p, v); err != nil {
			keep(fmt.Errorf("bond %s: %w", bond, err))
		}
	}

	slaves, err := s.BondSlaves(bond)
	if err != nil {
		keep(err)
	} else {
		cfg.Slaves = slaves
	}
	return cfg, firstErr
}
