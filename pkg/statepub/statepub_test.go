package statepub

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/ifconverge/pkg/netif"
)

func TestFields(t *testing.T) {
	tests := []struct {
		name string
		rec  *netif.InterfaceRecord
		want map[string]string
	}{
		{
			name: "ethernet",
			rec: &netif.InterfaceRecord{
				Name: "eth0", Type: netif.TypeEthernet, AdminState: netif.StateUp,
				MTU: 1500, MAC: "52:54:00:12:34:56", IPAddresses: []string{"192.0.2.10/24", "2001:db8::1/64"},
			},
			want: map[string]string{
				"type": "ethernet", "admin_state": "up", "mtu": "1500",
				"mac": "52:54:00:12:34:56", "ipaddress": "192.0.2.10/24,2001:db8::1/64",
			},
		},
		{
			name: "vlan without addresses",
			rec: &netif.InterfaceRecord{
				Name: "bond0.100", Type: netif.TypeVLAN, AdminState: netif.StateDown,
				Parent: "bond0", VLANID: 100, IPAddresses: []string{},
			},
			want: map[string]string{
				"type": "vlan", "admin_state": "down", "ipaddress": "",
				"parent": "bond0", "vlanid": "100",
			},
		},
		{
			name: "bond",
			rec: &netif.InterfaceRecord{
				Name: "bond0", Type: netif.TypeBonding, AdminState: netif.StateUp,
				Bond: &netif.BondConfig{Mode: "802.3ad", Miimon: 100, LACPRate: "slow", XmitHashPolicy: "layer3+4", Slaves: []string{"eth1", "eth2"}},
			},
			want: map[string]string{
				"type": "bonding", "admin_state": "up", "ipaddress": "",
				"bond_mode": "802.3ad", "bond_miimon": "100", "bond_lacp_rate": "slow",
				"bond_xmit_hash_policy": "layer3+4", "bond_slaves": "eth1,eth2",
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Fields(tt.rec)); diff != "" {
				t.Errorf("Fields() (-want +got):\n%s", diff)
			}
		})
	}
}

func TestKey(t *testing.T) {
	if got := Key("bond0.100"); got != "IFCONVERGE_STATE|bond0.100" {
		t.Errorf("Key() = %q", got)
	}
}
