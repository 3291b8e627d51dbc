package netif

import (
	"iter"
	"regexp"
	"slices"
	"strconv"
	"strings"

	"github.com/newtron-network/ifconverge/pkg/util"
)

var (
	headerRe = regexp.MustCompile(`^(\d+):\s+(\S+?):\s+<([^>]*)>\s+mtu\s+(\d+)`)
	stateRe  = regexp.MustCompile(`\sstate\s+(\S+)`)
	inetRe   = regexp.MustCompile(`^\s+inet6?\s(\S+)\s`)
	etherRe  = regexp.MustCompile(`^\s+link/ether\s(\S+)`)
)

type parseState int

const (
	awaitingHeader parseState = iota
	accumulating
)

// Parse turns `ip address show` output into one record per header line, in
// input order. Lines that match nothing are skipped. The sequence re-scans
// raw every time it is ranged over.
func Parse(raw string) iter.Seq[*InterfaceRecord] {
	return func(yield func(*InterfaceRecord) bool) {
		state := awaitingHeader
		var cur *InterfaceRecord

		for line := range strings.Lines(raw) {
			line = strings.TrimRight(line, "\r\n")

			if rec, ok := parseHeader(line); ok {
				if state == accumulating && !yield(cur) {
					return
				}
				cur = rec
				state = accumulating
				continue
			}
			if state == awaitingHeader {
				continue
			}
			parseDetail(cur, line)
		}

		if state == accumulating {
			yield(cur)
		}
	}
}

func parseHeader(line string) (*InterfaceRecord, bool) {
	m := headerRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	mtu, err := strconv.Atoi(m[4])
	if err != nil {
		return nil, false
	}

	name, parent, _ := strings.Cut(m[2], "@")
	if parent == "NONE" {
		parent = ""
	}

	rec := &InterfaceRecord{
		Name:        name,
		Type:        Classify(name),
		Present:     true,
		MTU:         mtu,
		AdminState:  adminState(strings.Split(m[3], ","), line[len(m[0]):]),
		IPAddresses: []string{},
	}

	switch rec.Type {
	case TypeVLAN:
		rec.VLANID, _ = VLANIDFromName(name)
		rec.Parent = parent
		if rec.Parent == "" {
			rec.Parent, _ = VLANParentFromName(name)
		}
	case TypeBonding:
		rec.Bond = &BondConfig{Slaves: []string{}}
	case TypeEthernet, TypeLoopback, TypeUnknown:
	}
	return rec, true
}

// adminState maps the state token when present, else the UP flag.
func adminState(flags []string, rest string) AdminState {
	if m := stateRe.FindStringSubmatch(rest); m != nil {
		switch m[1] {
		case "UP", "UNKNOWN":
			return StateUp
		case "DOWN":
			return StateDown
		default:
			return StateUnknown
		}
	}
	if slices.Contains(flags, "UP") {
		return StateUp
	}
	return StateDown
}

func parseDetail(rec *InterfaceRecord, line string) {
	if m := inetRe.FindStringSubmatch(line); m != nil {
		// Kernel-assigned IPv6 link-local addresses are not managed.
		if strings.Contains(line, " scope link") && strings.HasPrefix(strings.TrimSpace(line), "inet6") {
			return
		}
		addr := m[1]
		if c, err := util.CanonicalCIDR(addr); err == nil {
			addr = c
		}
		rec.IPAddresses = append(rec.IPAddresses, addr)
		return
	}
	if m := etherRe.FindStringSubmatch(line); m != nil {
		rec.MAC = strings.ToLower(m[1])
	}
}
