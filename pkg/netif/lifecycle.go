package netif

import (
	"context"
	"strconv"

	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// ReportKind is the resource kind interface reports carry.
const ReportKind = "interface"

// propEnsure labels report entries for creating or deleting the link.
const propEnsure = "ensure"

// Converge brings one interface to its desired state: destroy when it
// should be absent, create when it is missing, otherwise converge every
// managed property that is out of sync.
func (p *Provider) Converge(ctx context.Context, d *Desired) *changeset.Report {
	exists := p.Exists(d.Name)
	switch {
	case d.Ensure == EnsureAbsent && exists:
		return p.Destroy(ctx, d.Name)
	case d.Ensure == EnsureAbsent:
		return changeset.NewReport(d.Name, ReportKind)
	case !exists:
		return p.Create(ctx, d)
	}

	rep := changeset.NewReport(d.Name, ReportKind)
	rec, _ := p.observed.Get(d.Name)
	for _, prop := range d.Managed() {
		if rep.Aborted {
			break
		}
		if InSync(rec, d, prop) {
			continue
		}
		rep.Action = changeset.ActionUpdate
		p.apply(ctx, rep, rec, d, prop)
	}
	return rep
}

func (p *Provider) apply(ctx context.Context, rep *changeset.Report, rec *InterfaceRecord, d *Desired, prop Property) {
	before := p.changes()
	util.WithInterface(rec.Name).Debugf("%s: %q -> %q", prop, rec.Value(prop), d.Value(prop))
	err := p.set(ctx, rec, d, prop)
	rep.Record(string(prop), p.changes() > before, err)
}

// Create fabricates a bond or vlan and applies its properties. Ethernet,
// loopback and unknown interfaces are never created.
func (p *Provider) Create(ctx context.Context, d *Desired) *changeset.Report {
	rep := changeset.NewReport(d.Name, ReportKind)
	log := util.WithInterface(d.Name)

	var rec *InterfaceRecord
	switch d.Type {
	case TypeBonding:
		rec = p.createBond(ctx, rep, d)
	case TypeVLAN:
		rec = p.createVLAN(ctx, rep, d)
	case TypeEthernet, TypeLoopback, TypeUnknown:
		log.Warnf("Cannot create %s interface, configure it once it exists", d.Type)
		return rep
	}
	rep.Action = changeset.ActionCreate
	if rec == nil {
		return rep
	}
	log.Infof("Created %s", d.Type)

	for _, prop := range d.Managed() {
		if rep.Aborted {
			break
		}
		if InSync(rec, d, prop) {
			continue
		}
		p.apply(ctx, rep, rec, d, prop)
	}
	return rep
}

func (p *Provider) createBond(ctx context.Context, rep *changeset.Report, d *Desired) *InterfaceRecord {
	log := util.WithInterface(d.Name)
	masters := p.sys.MastersPath()

	if !p.modprobed && !p.sys.MastersExist() {
		err := p.mut.Command(ctx, d.Name, propEnsure, "modprobe", "bonding",
			"mode="+d.Bond.Mode,
			"miimon="+strconv.Itoa(d.Bond.Miimon),
			"lacp_rate="+d.Bond.LACPRate,
			"xmit_hash_policy="+d.Bond.XmitHashPolicy,
		)
		if err != nil {
			rep.Record(propEnsure, false, util.MarkCritical(err))
			return nil
		}
		p.modprobed = true

		// The driver creates default bonds on load; remove them.
		defaults, err := p.sys.ReadMasters()
		if err != nil {
			log.Infof("Listing default bonds: %v", err)
		}
		for _, b := range defaults {
			if err := p.mut.Write(d.Name, propEnsure, masters, "-"+b); err != nil {
				log.Infof("Removing default bond %s: %v", b, err)
				continue
			}
			p.observed.Clear(b)
			p.destroyed[b] = true
			delete(p.created, b)
		}
	}

	if err := p.mut.Write(d.Name, propEnsure, masters, "+"+d.Name); err != nil {
		rep.Record(propEnsure, false, util.MarkCritical(err))
		return nil
	}
	rep.Record(propEnsure, true, nil)
	p.markCreated(d.Name)

	rec := &InterfaceRecord{
		Name:        d.Name,
		Type:        TypeBonding,
		Present:     true,
		AdminState:  StateDown,
		IPAddresses: []string{},
		Bond:        &BondConfig{Slaves: []string{}},
	}
	p.observed.Put(rec)
	return rec
}

func (p *Provider) createVLAN(ctx context.Context, rep *changeset.Report, d *Desired) *InterfaceRecord {
	if !p.interfaceExists(d.Parent) {
		rep.Record(propEnsure, false, util.MarkCritical(util.NewMissingResourceError(d.Name, "parent", d.Parent)))
		return nil
	}

	err := p.ip(ctx, d.Name, propEnsure,
		"link", "add", "name", d.Name, "link", d.Parent, "type", "vlan", "id", strconv.Itoa(d.VLANID))
	if err != nil {
		rep.Record(propEnsure, false, util.MarkCritical(err))
		return nil
	}
	rep.Record(propEnsure, true, nil)
	p.markCreated(d.Name)

	rec := &InterfaceRecord{
		Name:        d.Name,
		Type:        TypeVLAN,
		Present:     true,
		AdminState:  StateDown,
		IPAddresses: []string{},
		Parent:      d.Parent,
		VLANID:      d.VLANID,
	}
	p.observed.Put(rec)
	return rec
}

func (p *Provider) markCreated(name string) {
	p.created[name] = true
	delete(p.destroyed, name)
}

// Destroy removes a bond or vlan: it is forced down, a bond releases its
// slaves, then the link is deleted and the cache entry cleared. Absent
// interfaces and ethernet, loopback or unknown ones are left alone.
func (p *Provider) Destroy(ctx context.Context, name string) *changeset.Report {
	rep := changeset.NewReport(name, ReportKind)
	log := util.WithInterface(name)

	if !p.interfaceExists(name) {
		log.Debug("Not present, nothing to destroy")
		return rep
	}

	t := Classify(name)
	var linkType string
	switch t {
	case TypeBonding:
		linkType = "bond"
	case TypeVLAN:
		linkType = "vlan"
	case TypeEthernet, TypeLoopback, TypeUnknown:
		log.Warnf("Cannot destroy %s interface", t)
		return rep
	}
	rep.Action = changeset.ActionDestroy

	rec, ok := p.observed.Get(name)
	if !ok {
		rec = &InterfaceRecord{Name: name, Type: t, Present: true, AdminState: StateUnknown, IPAddresses: []string{}}
	}
	if t == TypeBonding && rec.Bond == nil {
		slaves, err := p.sys.BondSlaves(name)
		if err != nil {
			log.Warnf("Listing slaves: %v", err)
		}
		rec.Bond = &BondConfig{Slaves: slaves}
	}

	before := p.changes()
	err := p.ip(ctx, name, PropState, "link", "set", "dev", name, "down")
	if err == nil {
		rec.AdminState = StateDown
	}
	rep.Record(string(PropState), p.changes() > before, err)

	if t == TypeBonding && len(rec.Bond.Slaves) > 0 {
		before = p.changes()
		err := p.syncSlaves(ctx, rec, nil)
		rep.Record(string(PropBondSlaves), p.changes() > before, err)
	}

	if err := p.ip(ctx, name, propEnsure, "link", "delete", "dev", name, "type", linkType); err != nil {
		rep.Record(propEnsure, false, util.MarkCritical(err))
		return rep
	}
	rep.Record(propEnsure, true, nil)

	p.observed.Clear(name)
	p.destroyed[name] = true
	delete(p.created, name)
	log.Infof("Destroyed %s", t)
	return rep
}
