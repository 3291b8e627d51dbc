package netif

import (
	"fmt"
	"math"
	"slices"
	"sort"
	"strconv"

	"github.com/newtron-network/ifconverge/pkg/util"
)

// Desired is a validated desired state for one interface. Only managed
// properties are converged; the rest are left as found.
type Desired struct {
	InterfaceRecord
	Ensure  Ensure
	managed map[Property]bool
}

// Manages reports whether p is converged for this interface.
func (d *Desired) Manages(p Property) bool {
	return d.managed[p]
}

// Managed returns the managed properties in convergence order.
func (d *Desired) Managed() []Property {
	var out []Property
	for _, p := range PropertyOrder {
		if d.managed[p] {
			out = append(out, p)
		}
	}
	return out
}

// NewDesired validates props (manifest keys to values) for the interface
// name and fills in defaults. All problems are reported together as one
// *util.ValidationError.
func NewDesired(name string, props map[string]any) (*Desired, error) {
	if name == "" {
		return nil, util.NewValidationError("interface name is required")
	}

	t := Classify(name)
	d := &Desired{
		InterfaceRecord: InterfaceRecord{
			Name:        name,
			Type:        t,
			Present:     true,
			AdminState:  StateUp,
			IPAddresses: []string{},
		},
		Ensure:  EnsurePresent,
		managed: map[Property]bool{PropState: true, PropIPAddress: true},
	}

	switch t {
	case TypeBonding:
		d.Bond = &BondConfig{
			Mode:           defaultBondMode,
			Miimon:         defaultBondMiimon,
			LACPRate:       defaultLACPRate,
			XmitHashPolicy: defaultXmitPolicy,
			Slaves:         []string{},
		}
		for _, p := range []Property{PropBondMode, PropBondMiimon, PropBondLACPRate, PropBondXmitHashPolicy, PropBondSlaves} {
			d.managed[p] = true
		}
	case TypeVLAN:
		d.VLANID, _ = VLANIDFromName(name)
		d.Parent, _ = VLANParentFromName(name)
		d.managed[PropParent] = true
		d.managed[PropVLANID] = true
	case TypeEthernet, TypeLoopback, TypeUnknown:
	}

	v := &util.ValidationBuilder{}
	keys := make([]string, 0, len(props))
	for k := range props {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := d.set(key, props[key]); err != nil {
			v.AddErrorf("%s: %v", name, err)
		}
	}

	if t == TypeVLAN {
		switch {
		case d.Parent == "":
			v.AddErrorf("%s: vlan requires a parent", name)
		case !Vlanable(Classify(d.Parent)):
			v.AddErrorf("%s: parent %s (%s) cannot carry vlans", name, d.Parent, Classify(d.Parent))
		}
		// Discovery reads the tag back from the name, so the two must agree.
		switch tag, ok := VLANIDFromName(name); {
		case !ok:
			v.AddErrorf("%s: vlan name must end in its tag (name.<tag> or vlan<tag>)", name)
		case d.VLANID != tag:
			v.AddErrorf("%s: vlanid %d does not match the tag %d in the name", name, d.VLANID, tag)
		default:
			if err := util.ValidateVLANID(d.VLANID); err != nil {
				v.AddErrorf("%s: %v", name, err)
			}
		}
	}

	if err := v.Build(); err != nil {
		return nil, err
	}
	d.Present = d.Ensure == EnsurePresent
	return d, nil
}

func (d *Desired) set(key string, raw any) error {
	p := Property(key)
	switch {
	case isBondProperty(p) && d.Type != TypeBonding:
		return fmt.Errorf("%s only applies to bonding interfaces, not %s", key, d.Type)
	case (p == PropParent || p == PropVLANID) && d.Type != TypeVLAN:
		return fmt.Errorf("%s only applies to vlan interfaces, not %s", key, d.Type)
	}

	switch p {
	case "ensure":
		s, err := asString(raw)
		if err != nil {
			return fmt.Errorf("ensure: %w", err)
		}
		switch Ensure(s) {
		case EnsurePresent, EnsureAbsent:
			d.Ensure = Ensure(s)
		default:
			return fmt.Errorf("ensure must be present or absent, got %q", s)
		}
		return nil

	case PropIPAddress:
		addrs, err := asStringList(raw)
		if err != nil {
			return fmt.Errorf("ipaddress: %w", err)
		}
		canon := make([]string, 0, len(addrs))
		for _, a := range addrs {
			c, err := util.CanonicalCIDR(a)
			if err != nil {
				return err
			}
			if !slices.Contains(canon, c) {
				canon = append(canon, c)
			}
		}
		d.IPAddresses = canon

	case PropMAC:
		s, err := asString(raw)
		if err != nil {
			return fmt.Errorf("mac: %w", err)
		}
		if s == "" {
			return nil
		}
		mac, err := util.NormalizeMAC(s)
		if err != nil {
			return err
		}
		d.MAC = mac

	case PropMTU:
		n, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("mtu: %w", err)
		}
		if err := util.ValidateMTU(n); err != nil {
			return err
		}
		d.MTU = n

	case PropState:
		s, err := asString(raw)
		if err != nil {
			return fmt.Errorf("state: %w", err)
		}
		switch AdminState(s) {
		case StateUp, StateDown, StateUnknown:
			d.AdminState = AdminState(s)
		default:
			return fmt.Errorf("state must be up, down or unknown, got %q", s)
		}

	case PropBondMode:
		s, err := asString(raw)
		if err != nil {
			return fmt.Errorf("bond_mode: %w", err)
		}
		if !slices.Contains(BondModes, s) {
			return fmt.Errorf("bond_mode %q is not one of %v", s, BondModes)
		}
		d.Bond.Mode = s

	case PropBondMiimon:
		n, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("bond_miimon: %w", err)
		}
		if n < 0 || n > MaxMiimon {
			return fmt.Errorf("bond_miimon %d out of range (0-%d)", n, MaxMiimon)
		}
		d.Bond.Miimon = n

	case PropBondLACPRate:
		s, err := asString(raw)
		if err != nil {
			return fmt.Errorf("bond_lacp_rate: %w", err)
		}
		if !slices.Contains(LACPRates, s) {
			return fmt.Errorf("bond_lacp_rate %q is not one of %v", s, LACPRates)
		}
		d.Bond.LACPRate = s

	case PropBondXmitHashPolicy:
		s, err := asString(raw)
		if err != nil {
			return fmt.Errorf("bond_xmit_hash_policy: %w", err)
		}
		if !slices.Contains(XmitHashPolicies, s) {
			return fmt.Errorf("bond_xmit_hash_policy %q is not one of %v", s, XmitHashPolicies)
		}
		d.Bond.XmitHashPolicy = s

	case PropBondSlaves:
		slaves, err := asStringList(raw)
		if err != nil {
			return fmt.Errorf("bond_slaves: %w", err)
		}
		for _, s := range slaves {
			if t := Classify(s); !Bondable(t) {
				return fmt.Errorf("slave %s is %s, only ethernet interfaces can be enslaved", s, t)
			}
		}
		d.Bond.Slaves = slaves

	case PropParent:
		s, err := asString(raw)
		if err != nil {
			return fmt.Errorf("parent: %w", err)
		}
		d.Parent = s

	case PropVLANID:
		n, err := asInt(raw)
		if err != nil {
			return fmt.Errorf("vlanid: %w", err)
		}
		d.VLANID = n

	default:
		return fmt.Errorf("unknown property %q", key)
	}

	d.managed[p] = true
	return nil
}

func isBondProperty(p Property) bool {
	switch p {
	case PropBondMode, PropBondMiimon, PropBondLACPRate, PropBondXmitHashPolicy, PropBondSlaves:
		return true
	}
	return false
}

func asString(v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	case nil:
		return "", nil
	default:
		return "", fmt.Errorf("expected a string, got %T", v)
	}
}

func asInt(v any) (int, error) {
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case uint64:
		return int(x), nil
	case float64:
		if x != math.Trunc(x) {
			return 0, fmt.Errorf("expected an integer, got %v", x)
		}
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, fmt.Errorf("expected an integer, got %q", x)
		}
		return n, nil
	default:
		return 0, fmt.Errorf("expected an integer, got %T", v)
	}
}

// asStringList accepts a list or a comma-separated string.
func asStringList(v any) ([]string, error) {
	switch x := v.(type) {
	case nil:
		return []string{}, nil
	case string:
		if l := util.SplitCommaSeparated(x); l != nil {
			return l, nil
		}
		return []string{}, nil
	case []string:
		return slices.Clone(x), nil
	case []any:
		out := make([]string, 0, len(x))
		for _, e := range x {
			s, err := asString(e)
			if err != nil {
				return nil, err
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("expected a list, got %T", v)
	}
}
