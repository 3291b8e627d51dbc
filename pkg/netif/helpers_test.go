package netif

import (
	"context"
	"errors"
	"path"
	"slices"
	"strings"
	"testing"

	"github.com/spf13/afero"

	"github.com/newtron-network/ifconverge/pkg/changeset"
	"github.com/newtron-network/ifconverge/pkg/host"
	"github.com/newtron-network/ifconverge/pkg/util"
)

const sampleIPAddr = `1: lo: <LOOPBACK,UP,LOWER_UP> mtu 65536 qdisc noqueue state UNKNOWN group default qlen 1000
    link/loopback 00:00:00:00:00:00 brd 00:00:00:00:00:00
    inet 127.0.0.1/8 scope host lo
       valid_lft forever preferred_lft forever
    inet6 ::1/128 scope host
       valid_lft forever preferred_lft forever
2: eth0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc fq_codel state UP group default qlen 1000
    link/ether 52:54:00:12:34:56 brd ff:ff:ff:ff:ff:ff
    inet 10.0.0.1/24 brd 10.0.0.255 scope global eth0
       valid_lft forever preferred_lft forever
    inet6 fe80::5054:ff:fe12:3456/64 scope link
       valid_lft forever preferred_lft forever
3: eth1: <BROADCAST,MULTICAST,SLAVE,UP,LOWER_UP> mtu 1500 qdisc fq_codel master bond0 state UP group default qlen 1000
    link/ether 52:54:00:AB:CD:EF brd ff:ff:ff:ff:ff:ff
4: bond0: <BROADCAST,MULTICAST,MASTER,UP,LOWER_UP> mtu 9000 qdisc noqueue state UP group default qlen 1000
    link/ether 52:54:00:ab:cd:ef brd ff:ff:ff:ff:ff:ff
    inet 192.168.10.2/24 scope global bond0
       valid_lft forever preferred_lft forever
5: bond0.100@bond0: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 9000 qdisc noqueue state UP group default qlen 1000
    link/ether 52:54:00:ab:cd:ef brd ff:ff:ff:ff:ff:ff
    inet 172.16.100.2/24 scope global bond0.100
       valid_lft forever preferred_lft forever
6: eth2: <BROADCAST,MULTICAST,UP,LOWER_UP> mtu 1500 qdisc fq_codel state UP group default qlen 1000
    link/ether 52:54:00:00:00:02 brd ff:ff:ff:ff:ff:ff
7: eth3: <BROADCAST,MULTICAST> mtu 1500 qdisc noop state DOWN group default qlen 1000
    link/ether 52:54:00:00:00:03 brd ff:ff:ff:ff:ff:ff
`

// fakeRunner records every command and answers from canned output.
type fakeRunner struct {
	calls   []string
	outputs map[string]string
	fail    map[string]bool
	onRun   func(argv []string)
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{outputs: map[string]string{}, fail: map[string]bool{}}
}

func (r *fakeRunner) Run(_ context.Context, name string, args ...string) (string, error) {
	argv := append([]string{name}, args...)
	key := strings.Join(argv, " ")
	r.calls = append(r.calls, key)
	if r.fail[key] {
		return "RTNETLINK answers: Operation not permitted", util.NewCommandError(argv, "RTNETLINK answers: Operation not permitted", errors.New("exit status 2"))
	}
	if r.onRun != nil {
		r.onRun(argv)
	}
	return r.outputs[key], nil
}

// fakeKernel is an in-memory /sys/class/net that reacts to writes on
// bonding_masters and bonding/slaves the way the bonding driver does.
type fakeKernel struct {
	t   *testing.T
	mem afero.Fs
	*host.AferoFS
	failWrites map[string]bool
}

func newFakeKernel(t *testing.T) *fakeKernel {
	t.Helper()
	mem := afero.NewMemMapFs()
	if err := mem.MkdirAll(SysClassNet, 0o755); err != nil {
		t.Fatal(err)
	}
	return &fakeKernel{t: t, mem: mem, AferoFS: host.NewAferoFS(mem), failWrites: map[string]bool{}}
}

func (k *fakeKernel) file(p, content string) {
	k.t.Helper()
	if err := k.mem.MkdirAll(path.Dir(p), 0o755); err != nil {
		k.t.Fatal(err)
	}
	if err := afero.WriteFile(k.mem, p, []byte(content), 0o644); err != nil {
		k.t.Fatal(err)
	}
}

func (k *fakeKernel) read(p string) string {
	k.t.Helper()
	data, err := afero.ReadFile(k.mem, p)
	if err != nil {
		k.t.Fatalf("reading %s: %v", p, err)
	}
	return string(data)
}

func (k *fakeKernel) addLink(name, operstate string) {
	k.file(path.Join(SysClassNet, name, "operstate"), operstate+"\n")
}

func (k *fakeKernel) addBond(name string, slaves ...string) {
	k.addLink(name, "up")
	dir := path.Join(SysClassNet, name, "bonding")
	k.file(path.Join(dir, "mode"), "balance-rr 0\n")
	k.file(path.Join(dir, "miimon"), "0\n")
	k.file(path.Join(dir, "lacp_rate"), "slow 0\n")
	k.file(path.Join(dir, "xmit_hash_policy"), "layer2 0\n")
	k.file(path.Join(dir, "slaves"), strings.Join(slaves, " ")+"\n")
}

func (k *fakeKernel) loadBonding(bonds ...string) {
	k.file(path.Join(SysClassNet, "bonding_masters"), strings.Join(bonds, " ")+"\n")
	for _, b := range bonds {
		k.addBond(b)
	}
}

func (k *fakeKernel) WriteFile(p string, data []byte) error {
	if k.failWrites[p+" "+string(data)] {
		return errors.New("write error: Operation not permitted")
	}
	old, _ := afero.ReadFile(k.mem, p)
	if err := k.AferoFS.WriteFile(p, data); err != nil {
		return err
	}

	v := string(data)
	if len(v) < 2 || (v[0] != '+' && v[0] != '-') {
		return nil
	}
	add, name := v[0] == '+', v[1:]
	list := strings.Fields(string(old))
	if add {
		list = append(list, name)
	} else {
		list = slices.DeleteFunc(list, func(s string) bool { return s == name })
	}

	switch {
	case p == path.Join(SysClassNet, "bonding_masters"):
		if add {
			k.addBond(name)
			k.addLink(name, "down")
		} else {
			_ = k.mem.RemoveAll(path.Join(SysClassNet, name))
		}
	case path.Base(p) != "slaves":
		return nil
	}
	return afero.WriteFile(k.mem, p, []byte(strings.Join(list, " ")+"\n"), 0o644)
}

// steps flattens a ChangeSet into one line per mutation.
func steps(cs *changeset.ChangeSet) []string {
	var out []string
	for _, c := range cs.Changes {
		if c.Kind == changeset.KindWrite {
			out = append(out, "write "+c.Path+" "+c.Value)
			continue
		}
		out = append(out, strings.Join(c.Args, " "))
	}
	return out
}

func newTestProvider(r *fakeRunner, k *fakeKernel, execute bool, opts Options) (*Provider, *changeset.ChangeSet) {
	h := host.New(r, k)
	cs := changeset.New("test", "converge", !execute)
	return NewProvider(h, changeset.NewMutator(h, cs, execute), opts), cs
}

func mustDesired(t *testing.T, name string, props map[string]any) *Desired {
	t.Helper()
	d, err := NewDesired(name, props)
	if err != nil {
		t.Fatalf("NewDesired(%s) error = %v", name, err)
	}
	return d
}
