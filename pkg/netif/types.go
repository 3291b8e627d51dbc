// Package netif discovers, diffs and converges Linux network interfaces
// (ethernet, bonding, VLAN, loopback) through ip(8), modprobe(8) and
// /sys/class/net.
package netif

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
)

// InterfaceType is derived from an interface name by Classify.
type InterfaceType string

const (
	TypeEthernet InterfaceType = "ethernet"
	TypeLoopback InterfaceType = "loopback"
	TypeBonding  InterfaceType = "bonding"
	TypeVLAN     InterfaceType = "vlan"
	TypeUnknown  InterfaceType = "unknown"
)

// AdminState is the administrative link state.
type AdminState string

const (
	StateUp      AdminState = "up"
	StateDown    AdminState = "down"
	StateUnknown AdminState = "unknown"
)

// Ensure is the desired presence of a resource.
type Ensure string

const (
	EnsurePresent Ensure = "present"
	EnsureAbsent  Ensure = "absent"
)

// Property names a managed interface property. The names match the
// manifest keys.
type Property string

const (
	PropIPAddress          Property = "ipaddress"
	PropMAC                Property = "mac"
	PropMTU                Property = "mtu"
	PropState              Property = "state"
	PropBondMode           Property = "bond_mode"
	PropBondMiimon         Property = "bond_miimon"
	PropBondLACPRate       Property = "bond_lacp_rate"
	PropBondXmitHashPolicy Property = "bond_xmit_hash_policy"
	PropBondSlaves         Property = "bond_slaves"
	PropParent             Property = "parent"
	PropVLANID             Property = "vlanid"
)

// PropertyOrder is the order properties are converged in. Bond attributes
// come first, mode before everything else, since some bonding drivers
// reject slaves before the mode is set.
var PropertyOrder = []Property{
	PropBondMode,
	PropBondMiimon,
	PropBondLACPRate,
	PropBondXmitHashPolicy,
	PropBondSlaves,
	PropIPAddress,
	PropMTU,
	PropMAC,
	PropState,
	PropParent,
	PropVLANID,
}

// Bonding option values accepted in desired state.
var (
	BondModes = []string{
		"balance-rr", "active-backup", "balance-xor", "broadcast",
		"802.3ad", "balance-tlb", "balance-alb",
	}
	LACPRates        = []string{"slow", "fast"}
	XmitHashPolicies = []string{"layer2", "layer3+4"}
)

// MaxMiimon is the largest accepted bond_miimon, in milliseconds.
const MaxMiimon = 1000

const (
	defaultBondMode   = "802.3ad"
	defaultBondMiimon = 100
	defaultLACPRate   = "slow"
	defaultXmitPolicy = "layer3+4"
)

// BondConfig holds the bonding-only fields of an InterfaceRecord.
type BondConfig struct {
	Mode           string   `json:"mode,omitempty"`
	Miimon         int      `json:"miimon"`
	LACPRate       string   `json:"lacp_rate,omitempty"`
	XmitHashPolicy string   `json:"xmit_hash_policy,omitempty"`
	Slaves         []string `json:"slaves"`
}

// InterfaceRecord is the observed or desired state of one interface.
type InterfaceRecord struct {
	Name        string        `json:"name"`
	Type        InterfaceType `json:"type"`
	Present     bool          `json:"present"`
	AdminState  AdminState    `json:"state"`
	MTU         int           `json:"mtu,omitempty"`
	MAC         string        `json:"mac,omitempty"`
	IPAddresses []string      `json:"ipaddress"`
	Parent      string        `json:"parent,omitempty"`
	VLANID      int           `json:"vlanid,omitempty"`
	Bond        *BondConfig   `json:"bond,omitempty"`
}

// Clone returns a deep copy of r.
func (r *InterfaceRecord) Clone() *InterfaceRecord {
	if r == nil {
		return nil
	}
	c := *r
	c.IPAddresses = slices.Clone(r.IPAddresses)
	if r.Bond != nil {
		b := *r.Bond
		b.Slaves = slices.Clone(r.Bond.Slaves)
		c.Bond = &b
	}
	return &c
}

// Value renders a property of r as text, for logs and change previews.
func (r *InterfaceRecord) Value(p Property) string {
	bond := r.Bond
	if bond == nil {
		bond = &BondConfig{}
	}
	switch p {
	case PropIPAddress:
		return strings.Join(r.IPAddresses, ",")
	case PropMAC:
		return r.MAC
	case PropMTU:
		return strconv.Itoa(r.MTU)
	case PropState:
		return string(r.AdminState)
	case PropBondMode:
		return bond.Mode
	case PropBondMiimon:
		return strconv.Itoa(bond.Miimon)
	case PropBondLACPRate:
		return bond.LACPRate
	case PropBondXmitHashPolicy:
		return bond.XmitHashPolicy
	case PropBondSlaves:
		return strings.Join(bond.Slaves, ",")
	case PropParent:
		return r.Parent
	case PropVLANID:
		return strconv.Itoa(r.VLANID)
	}
	return ""
}

// set parses a bonding attribute value read from sysfs.
func (b *BondConfig) set(p Property, v string) error {
	switch p {
	case PropBondMode:
		b.Mode = v
	case PropBondMiimon:
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("miimon %q is not a number", v)
		}
		b.Miimon = n
	case PropBondLACPRate:
		b.LACPRate = v
	case PropBondXmitHashPolicy:
		b.XmitHashPolicy = v
	default:
		return fmt.Errorf("%s is not a bond attribute", p)
	}
	return nil
}
