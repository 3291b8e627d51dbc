package netif

import (
	"context"
	"errors"
	"slices"
	"strconv"

	"github.com/newtron-network/ifconverge/pkg/util"
)

// InSync reports whether the observed record already satisfies the
// desired value of prop.
func InSync(obs *InterfaceRecord, d *Desired, prop Property) bool {
	switch prop {
	case PropIPAddress:
		return util.SameSet(obs.IPAddresses, d.IPAddresses)
	case PropMAC:
		if d.MAC == "" {
			return true
		}
		mac, err := util.NormalizeMAC(obs.MAC)
		return err == nil && mac == d.MAC
	case PropMTU:
		return d.MTU == 0 || obs.MTU == d.MTU
	case PropState:
		return d.AdminState == StateUnknown || obs.AdminState == d.AdminState
	case PropBondSlaves:
		if d.Bond == nil {
			return true
		}
		return obs.Bond != nil && util.SameSet(obs.Bond.Slaves, d.Bond.Slaves)
	case PropBondMode, PropBondMiimon, PropBondLACPRate, PropBondXmitHashPolicy:
		if d.Bond == nil {
			return true
		}
		return obs.Bond != nil && obs.Value(prop) == d.Value(prop)
	case PropParent:
		return obs.Parent == d.Parent
	case PropVLANID:
		return obs.VLANID == d.VLANID
	}
	return true
}

// set converges one property of rec towards d and advances rec.
func (p *Provider) set(ctx context.Context, rec *InterfaceRecord, d *Desired, prop Property) error {
	switch prop {
	case PropIPAddress:
		return p.setIPAddress(ctx, rec, d.IPAddresses)
	case PropMAC:
		return p.setMAC(ctx, rec, d.MAC)
	case PropMTU:
		return p.setMTU(ctx, rec, d.MTU)
	case PropState:
		return p.setState(ctx, rec, d.AdminState)
	case PropBondMode, PropBondMiimon, PropBondXmitHashPolicy:
		return p.setBondAttr(ctx, rec, prop, d.Value(prop))
	case PropBondLACPRate:
		restore, err := p.bracketBond(ctx, rec)
		attrErr := p.setBondAttr(ctx, rec, prop, d.Value(prop))
		return errors.Join(err, attrErr, restore())
	case PropBondSlaves:
		return p.syncSlaves(ctx, rec, d.Bond.Slaves)
	case PropParent, PropVLANID:
		return &util.ImmutableError{
			Resource: rec.Name,
			Property: string(prop),
			Current:  rec.Value(prop),
			Desired:  d.Value(prop),
		}
	}
	return nil
}

func (p *Provider) setIPAddress(ctx context.Context, rec *InterfaceRecord, desired []string) error {
	current := slices.Clone(rec.IPAddresses)
	var errs []error

	for _, addr := range util.Difference(desired, rec.IPAddresses) {
		if err := p.ip(ctx, rec.Name, PropIPAddress, "address", "add", addr, "dev", rec.Name); err != nil {
			if len(desired) > 0 && addr == desired[0] {
				rec.IPAddresses = current
				return errors.Join(append(errs, util.MarkCritical(err))...)
			}
			errs = append(errs, err)
			continue
		}
		current = append(current, addr)
	}

	for _, addr := range util.Difference(rec.IPAddresses, desired) {
		if err := p.ip(ctx, rec.Name, PropIPAddress, "address", "delete", addr, "dev", rec.Name); err != nil {
			errs = append(errs, err)
			continue
		}
		current = slices.DeleteFunc(current, func(a string) bool { return a == addr })
	}

	rec.IPAddresses = current
	return errors.Join(errs...)
}

func (p *Provider) setMAC(ctx context.Context, rec *InterfaceRecord, mac string) error {
	if mac == "" {
		return nil
	}
	if err := p.ip(ctx, rec.Name, PropMAC, "link", "set", "dev", rec.Name, "address", mac); err != nil {
		return err
	}
	rec.MAC = mac
	return nil
}

func (p *Provider) setMTU(ctx context.Context, rec *InterfaceRecord, mtu int) error {
	if mtu == 0 {
		return nil
	}
	if err := p.ip(ctx, rec.Name, PropMTU, "link", "set", "dev", rec.Name, "mtu", strconv.Itoa(mtu)); err != nil {
		return err
	}
	rec.MTU = mtu
	return nil
}

// setState never applies StateUnknown.
func (p *Provider) setState(ctx context.Context, rec *InterfaceRecord, state AdminState) error {
	switch state {
	case StateUp, StateDown:
	default:
		return nil
	}
	if err := p.ip(ctx, rec.Name, PropState, "link", "set", "dev", rec.Name, string(state)); err != nil {
		return err
	}
	rec.AdminState = state
	return nil
}

func (p *Provider) setBondAttr(ctx context.Context, rec *InterfaceRecord, prop Property, value string) error {
	if !p.bondExists(rec.Name) {
		return util.MarkCritical(util.NewMissingResourceError(string(prop), "bond", rec.Name))
	}
	attr := bondAttrFiles[prop]
	if err := p.mut.Write(rec.Name, string(prop), p.sys.BondAttrPath(rec.Name, attr), value); err != nil {
		util.WithInterface(rec.Name).Warnf("Setting %s: %v", attr, err)
		return err
	}
	if rec.Bond == nil {
		rec.Bond = &BondConfig{Slaves: []string{}}
	}
	return rec.Bond.set(prop, value)
}

// bracketBond takes an up bond down when the policy asks for it. The
// returned func restores the prior state and is always safe to call.
func (p *Provider) bracketBond(ctx context.Context, rec *InterfaceRecord) (func() error, error) {
	if !p.opts.BondBracket || rec.AdminState != StateUp {
		return func() error { return nil }, nil
	}
	if err := p.setState(ctx, rec, StateDown); err != nil {
		util.WithInterface(rec.Name).Warnf("Could not take bond down: %v", err)
		return func() error { return nil }, err
	}
	return func() error { return p.setState(ctx, rec, StateUp) }, nil
}

// syncSlaves moves the bond's slave set to desired, removals first. A
// slave that is missing or not bondable is skipped and reported; a failed
// write is reported and the remaining slaves are still processed.
func (p *Provider) syncSlaves(ctx context.Context, rec *InterfaceRecord, desired []string) error {
	if !p.bondExists(rec.Name) {
		return util.MarkCritical(util.NewMissingResourceError(string(PropBondSlaves), "bond", rec.Name))
	}
	if rec.Bond == nil {
		rec.Bond = &BondConfig{Slaves: []string{}}
	}

	toRemove := util.Difference(rec.Bond.Slaves, desired)
	toAdd := util.Difference(desired, rec.Bond.Slaves)
	if len(toRemove) == 0 && len(toAdd) == 0 {
		return nil
	}

	var errs []error
	restore, err := p.bracketBond(ctx, rec)
	if err != nil {
		errs = append(errs, err)
	}

	// Operational state of each slave before it was touched, read once.
	operUp := make(map[string]bool)
	slaves := slices.Clone(rec.Bond.Slaves)

	for _, s := range toRemove {
		moved, err := p.moveSlave(ctx, rec.Name, s, false, operUp)
		if err != nil {
			errs = append(errs, err)
		}
		if moved {
			slaves = slices.DeleteFunc(slaves, func(n string) bool { return n == s })
		}
	}
	for _, s := range toAdd {
		moved, err := p.moveSlave(ctx, rec.Name, s, true, operUp)
		if err != nil {
			errs = append(errs, err)
		}
		if moved {
			slaves = append(slaves, s)
		}
	}

	rec.Bond.Slaves = slaves
	if err := restore(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

func (p *Provider) moveSlave(ctx context.Context, bond, slave string, add bool, operUp map[string]bool) (bool, error) {
	log := util.WithInterface(bond).WithField("slave", slave)

	if !p.interfaceExists(slave) {
		log.Warn("Slave does not exist, skipping")
		return false, util.NewMissingResourceError(bond, "slave", slave)
	}
	if add {
		if t := Classify(slave); !Bondable(t) {
			log.Warnf("Slave is %s, skipping", t)
			return false, util.NewValidationError(slave + " is " + string(t) + ", only ethernet interfaces can be enslaved")
		}
	}

	wasUp, ok := operUp[slave]
	if !ok {
		wasUp = p.slaveUp(slave)
		operUp[slave] = wasUp
	}

	var errs []error
	if wasUp {
		if err := p.ip(ctx, bond, PropBondSlaves, "link", "set", "dev", slave, "down"); err != nil {
			errs = append(errs, err)
		}
	}

	token := "-" + slave
	if add {
		token = "+" + slave
	}
	werr := p.mut.Write(bond, string(PropBondSlaves), p.sys.BondAttrPath(bond, "slaves"), token)
	if werr != nil {
		log.Warnf("Writing %s: %v", token, werr)
		errs = append(errs, werr)
	}

	if wasUp {
		if err := p.ip(ctx, bond, PropBondSlaves, "link", "set", "dev", slave, "up"); err != nil {
			errs = append(errs, err)
		}
	}
	return werr == nil, errors.Join(errs...)
}

// slaveUp reads the operational state of a slave. An unreadable state is
// treated as down.
func (p *Provider) slaveUp(name string) bool {
	state, err := p.sys.OperState(name)
	if err != nil {
		util.WithInterface(name).Infof("Reading operstate: %v", err)
		return false
	}
	return state == "up"
}
