package netif

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	bondNameRe     = regexp.MustCompile(`^bond\d+$`)
	bondVLANNameRe = regexp.MustCompile(`^bond\d+\.\d+$`)
	ethernetNameRe = regexp.MustCompile(`^[[:alpha:]]*([[:alpha:]]\d+)+$`)
	vlanSuffixRe   = regexp.MustCompile(`vlan(\d+)$`)
)

// Classify derives the interface type from its name. The same rules are
// used for discovered and desired interfaces.
func Classify(name string) InterfaceType {
	switch {
	case name == "lo":
		return TypeLoopback
	case bondNameRe.MatchString(name):
		return TypeBonding
	case bondVLANNameRe.MatchString(name):
		return TypeVLAN
	case strings.Contains(name, ".") || strings.Contains(name, "vlan"):
		return TypeVLAN
	case ethernetNameRe.MatchString(name):
		return TypeEthernet
	default:
		return TypeUnknown
	}
}

// Bondable reports whether an interface of type t may be enslaved to a bond.
func Bondable(t InterfaceType) bool {
	return t == TypeEthernet
}

// Vlanable reports whether an interface of type t may carry VLANs.
func Vlanable(t InterfaceType) bool {
	switch t {
	case TypeEthernet, TypeBonding:
		return true
	default:
		return false
	}
}

// VLANIDFromName returns the tag encoded in a VLAN interface name: the
// numeric suffix after the last dot (eth0.100) or after "vlan" (vlan100).
func VLANIDFromName(name string) (int, bool) {
	if i := strings.LastIndex(name, "."); i >= 0 {
		id, err := strconv.Atoi(name[i+1:])
		return id, err == nil
	}
	if m := vlanSuffixRe.FindStringSubmatch(name); m != nil {
		id, err := strconv.Atoi(m[1])
		return id, err == nil
	}
	return 0, false
}

// VLANParentFromName returns the text before the last dot of a VLAN name.
func VLANParentFromName(name string) (string, bool) {
	i := strings.LastIndex(name, ".")
	if i <= 0 {
		return "", false
	}
	return name[:i], true
}
