package manifest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/util"
)

const validManifest = `
interfaces:
  - name: eth1
    mtu: 9000
  - name: bond0
    bond_mode: active-backup
    bond_slaves: [eth1, eth2]
    ipaddress:
      - 192.0.2.10/24
  - name: bond0.100
    ipaddress: 198.51.100.1/24
  - name: vlan7
    ensure: absent
    parent: eth3
routes:
  - prefix: 0.0.0.0/0
    nexthop: 192.0.2.1
    device: bond0
  - prefix: 10.0.0.0/8
    metric: 50
    device: bond0.100
`

func TestParse(t *testing.T) {
	plan, err := Parse([]byte(validManifest))
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}

	if len(plan.Interfaces) != 4 || len(plan.Routes) != 2 {
		t.Fatalf("got %d interfaces, %d routes", len(plan.Interfaces), len(plan.Routes))
	}

	bond := plan.Interfaces[1]
	if bond.Bond.Mode != "active-backup" || bond.Bond.Miimon != 100 {
		t.Errorf("bond0 = %+v", bond.Bond)
	}
	if diff := cmp.Diff([]string{"eth1", "eth2"}, bond.Bond.Slaves); diff != "" {
		t.Errorf("slaves (-want +got):\n%s", diff)
	}
	if plan.Interfaces[0].MTU != 9000 {
		t.Errorf("eth1 mtu = %d", plan.Interfaces[0].MTU)
	}
	if diff := cmp.Diff([]string{"198.51.100.1/24"}, plan.Interfaces[2].IPAddresses); diff != "" {
		t.Errorf("bond0.100 ipaddress (-want +got):\n%s", diff)
	}
	if plan.Interfaces[3].Ensure != netif.EnsureAbsent {
		t.Errorf("vlan7 ensure = %s", plan.Interfaces[3].Ensure)
	}

	if plan.Routes[0].Key() != "0.0.0.0/0 0" || plan.Routes[1].Key() != "10.0.0.0/8 50" {
		t.Errorf("route keys = %s, %s", plan.Routes[0].Key(), plan.Routes[1].Key())
	}
}

func TestParse_AccumulatesErrors(t *testing.T) {
	bad := `
interfaces:
  - name: eth0
    mtu: 9001
  - mtu: 1500
  - name: bond0
    bond_slaves: [bond1]
  - name: eth0
routes:
  - prefix: 10.0.0.0
  - prefix: 10.1.0.0/16
    metric: 300
`
	_, err := Parse([]byte(bad))
	var ve *util.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("Parse() error = %v, want *util.ValidationError", err)
	}
	for _, want := range []string{"MTU", "name is required", "bond1", "duplicate interface eth0", "prefix length", "metric"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error does not mention %q:\n%v", want, err)
		}
	}
	if len(ve.Errors) != 6 {
		t.Errorf("got %d errors, want 6: %v", len(ve.Errors), ve.Errors)
	}
}

func TestParse_BadYAML(t *testing.T) {
	if _, err := Parse([]byte("interfaces: [name: eth0")); err == nil {
		t.Error("Parse() should fail on malformed YAML")
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "net.yaml")
	if err := os.WriteFile(path, []byte(validManifest), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("Load() error = %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Load() should fail on a missing file")
	}
}
