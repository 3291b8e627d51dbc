package route

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/spf13/afero"

	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/host"
	"github.com/newtron-network/ifconverge/pkg/netif"
	"github.com/newtron-network/ifconverge/pkg/util"
)

type fakeRunner struct {
	calls   []string
	outputs map[string]string
	fail    map[string]bool
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	argv := append([]string{name}, args...)
	key := strings.Join(argv, " ")
	r.calls = append(r.calls, key)
	if r.fail[key] {
		return "RTNETLINK answers: No such process", util.NewCommandError(argv, "RTNETLINK answers: No such process", errors.New("exit status 2"))
	}
	return r.outputs[key], nil
}

func newTestProvider(r *fakeRunner, execute bool) (*Provider, *changeset.ChangeSet) {
	h := host.New(r, host.NewAferoFS(afero.NewMemMapFs()))
	cs := changeset.New("test", "converge", !execute)
	return NewProvider(h, changeset.NewMutator(h, cs, execute)), cs
}

func commands(cs *changeset.ChangeSet) []string {
	var out []string
	for _, c := range cs.Changes {
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

func TestParseRoutes(t *testing.T) {
	raw := strings.Join([]string{
		"10.1.0.0/16 via 10.0.0.254 dev eth0 proto static metric 100",
		"10.1.0.0/16 via 10.0.0.253 dev eth1 proto static",
		"",
		"10.1.0.0/16 dev eth2 metric bogus",
	}, "\n")

	tests := []struct {
		metric int
		want   *RouteRecord
	}{
		{100, &RouteRecord{Prefix: "10.1.0.0/16", Metric: 100, Device: "eth0", Nexthop: "10.0.0.254"}},
		{0, &RouteRecord{Prefix: "10.1.0.0/16", Metric: 0, Device: "eth1", Nexthop: "10.0.0.253"}},
		{50, nil},
	}
	for _, tt := range tests {
		got, ok := ParseRoutes(raw, "10.1.0.0/16", tt.metric)
		if ok != (tt.want != nil) {
			t.Fatalf("metric %d: ok = %v", tt.metric, ok)
		}
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("metric %d (-want +got):\n%s", tt.metric, diff)
		}
	}
}

func TestParseRoutes_Default(t *testing.T) {
	got, ok := ParseRoutes("default via 192.168.1.1 dev wlp2s0 proto dhcp metric 600\n", "0.0.0.0/0", 600)
	if !ok {
		t.Fatal("default route not found")
	}
	want := &RouteRecord{Prefix: "0.0.0.0/0", Metric: 600, Device: "wlp2s0", Nexthop: "192.168.1.1"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
}

func TestNewDesired(t *testing.T) {
	d, err := NewDesired("10.1.0.0/16", map[string]any{"metric": 100, "nexthop": "10.0.0.254", "device": "eth0"})
	if err != nil {
		t.Fatalf("NewDesired() error = %v", err)
	}
	if d.Metric != 100 || d.Ensure != netif.EnsurePresent || d.Key() != "10.1.0.0/16 100" {
		t.Errorf("got %+v", d)
	}

	d, err = NewDesired("2001:DB8:0::/32", map[string]any{"nexthop": "2001:DB8::FE"})
	if err != nil {
		t.Fatalf("NewDesired(ipv6) error = %v", err)
	}
	if d.Prefix != "2001:db8::/32" || d.Nexthop != "2001:db8::fe" {
		t.Errorf("prefix/nexthop not canonical: %q %q", d.Prefix, d.Nexthop)
	}

	invalid := []struct {
		prefix string
		props  map[string]any
	}{
		{"10.1.0.0", nil},
		{"10.1.0.0/33", nil},
		{"10.0.0.1/8", nil},
		{"10.1.0.0/16", map[string]any{"metric": 256}},
		{"10.1.0.0/16", map[string]any{"metric": -1}},
		{"10.1.0.0/16", map[string]any{"nexthop": "10.0.0.254/24"}},
		{"10.1.0.0/16", map[string]any{"ensure": "up"}},
		{"10.1.0.0/16", map[string]any{"gateway": "10.0.0.1"}},
	}
	for _, tt := range invalid {
		if _, err := NewDesired(tt.prefix, tt.props); !errors.Is(err, util.ErrValidationFailed) {
			t.Errorf("NewDesired(%s, %v) error = %v, want validation error", tt.prefix, tt.props, err)
		}
	}
}

func TestConverge(t *testing.T) {
	const list = "ip route list 10.1.0.0/16"
	tests := []struct {
		name       string
		existing   string
		props      map[string]any
		wantAction changeset.Action
		want       []string
	}{
		{
			name:       "create",
			props:      map[string]any{"metric": 100, "nexthop": "10.0.0.254", "device": "eth0"},
			wantAction: changeset.ActionCreate,
			want:       []string{"ip route add 10.1.0.0/16 via 10.0.0.254 dev eth0 metric 100"},
		},
		{
			name:       "in sync",
			existing:   "10.1.0.0/16 via 10.0.0.254 dev eth0 proto static metric 100\n",
			props:      map[string]any{"metric": 100, "nexthop": "10.0.0.254", "device": "eth0"},
			wantAction: changeset.ActionNone,
		},
		{
			name:       "nexthop drift",
			existing:   "10.1.0.0/16 via 10.0.0.1 dev eth0 proto static metric 100\n",
			props:      map[string]any{"metric": 100, "nexthop": "10.0.0.254"},
			wantAction: changeset.ActionUpdate,
			want:       []string{"ip route change 10.1.0.0/16 via 10.0.0.254 dev eth0 metric 100"},
		},
		{
			name:       "destroy",
			existing:   "10.1.0.0/16 dev eth1 scope link\n",
			props:      map[string]any{"ensure": "absent"},
			wantAction: changeset.ActionDestroy,
			want:       []string{"ip route delete 10.1.0.0/16 dev eth1 metric 0"},
		},
		{
			name:       "absent and missing",
			props:      map[string]any{"ensure": "absent", "metric": 5},
			wantAction: changeset.ActionNone,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := &fakeRunner{outputs: map[string]string{list: tt.existing}}
			p, cs := newTestProvider(r, false)
			d, err := NewDesired("10.1.0.0/16", tt.props)
			if err != nil {
				t.Fatal(err)
			}

			rep := p.Converge(context.Background(), d)
			if rep.Action != tt.wantAction {
				t.Errorf("Action = %s, want %s", rep.Action, tt.wantAction)
			}
			if diff := cmp.Diff(tt.want, commands(cs)); diff != "" {
				t.Errorf("commands (-want +got):\n%s", diff)
			}
		})
	}
}

func TestConverge_CommandFailureReported(t *testing.T) {
	r := &fakeRunner{
		outputs: map[string]string{},
		fail:    map[string]bool{"ip route add 10.1.0.0/16 dev eth0 metric 0": true},
	}
	p, cs := newTestProvider(r, true)
	d, err := NewDesired("10.1.0.0/16", map[string]any{"device": "eth0"})
	if err != nil {
		t.Fatal(err)
	}

	rep := p.Converge(context.Background(), d)
	if !errors.Is(rep.Err(), util.ErrCommandFailed) {
		t.Errorf("Err() = %v, want ErrCommandFailed", rep.Err())
	}
	if rep.Aborted {
		t.Error("route command failure must not abort")
	}
	if len(cs.Changes) != 1 || cs.Changes[0].Applied {
		t.Errorf("changes = %+v", cs.Changes)
	}
}
