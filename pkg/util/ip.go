package util

import (
	"fmt"
	"net/netip"
	"regexp"
	"strings"
)

// MTU and VLAN ID bounds enforced on desired state.
const (
	MinMTU    = 68
	MaxMTU    = 9000
	MinVLANID = 1
	MaxVLANID = 4095
)

// One separator style per address: colons, dashes, or none.
var macRegexp = regexp.MustCompile(`^(?:[0-9A-Fa-f]{2}(?::[0-9A-Fa-f]{2}){5}|[0-9A-Fa-f]{2}(?:-[0-9A-Fa-f]{2}){5}|[0-9A-Fa-f]{12})$`)

// ValidateMTU checks if MTU is within valid range
func ValidateMTU(mtu int) error {
	if mtu < MinMTU || mtu > MaxMTU {
		return fmt.Errorf("MTU must be between %d and %d, got %d", MinMTU, MaxMTU, mtu)
	}
	return nil
}

// ValidateVLANID checks if a VLAN tag is within valid range
func ValidateVLANID(id int) error {
	if id < MinVLANID || id > MaxVLANID {
		return fmt.Errorf("VLAN ID must be between %d and %d, got %d", MinVLANID, MaxVLANID, id)
	}
	return nil
}

// ValidateCIDR checks that s is an IP address with an explicit prefix length
func ValidateCIDR(s string) error {
	_, err := CanonicalCIDR(s)
	return err
}

// CanonicalCIDR returns s in the form ip(8) prints it: lower-case,
// zero-compressed IPv6, host bits kept. Prefix lengths with leading zeros
// are rejected.
func CanonicalCIDR(s string) (string, error) {
	if !strings.Contains(s, "/") {
		return "", fmt.Errorf("%q: prefix length is not specified", s)
	}
	p, err := netip.ParsePrefix(s)
	if err != nil {
		return "", fmt.Errorf("%q is not an IP address with prefix length", s)
	}
	return p.String(), nil
}

// CanonicalNetwork is CanonicalCIDR for a network prefix: host bits must
// be zero, as `ip route` requires.
func CanonicalNetwork(s string) (string, error) {
	c, err := CanonicalCIDR(s)
	if err != nil {
		return "", err
	}
	p := netip.MustParsePrefix(c)
	if p.Masked() != p {
		return "", fmt.Errorf("%q has host bits set (network is %s)", s, p.Masked())
	}
	return c, nil
}

// NormalizeMAC converts the accepted MAC forms (colon, dash or no separator)
// to lower-case colon notation.
func NormalizeMAC(s string) (string, error) {
	if !macRegexp.MatchString(s) {
		return "", fmt.Errorf("%q is not a MAC address", s)
	}
	hex := strings.ToLower(strings.NewReplacer(":", "", "-", "").Replace(s))
	if len(hex) != 12 {
		return "", fmt.Errorf("%q is not a MAC address", s)
	}
	parts := make([]string, 6)
	for i := range parts {
		parts[i] = hex[i*2 : i*2+2]
	}
	return strings.Join(parts, ":"), nil
}

// SplitIPMask splits a CIDR notation into IP and mask length string.
// Returns the input unchanged and "" if there is no mask.
func SplitIPMask(cidr string) (string, string) {
	ip, mask, ok := strings.Cut(cidr, "/")
	if !ok {
		return cidr, ""
	}
	return ip, mask
}
