package host

import (
	"context"
	"errors"
	"slices"
	"testing"

	"github.com/spf13/afero"
	kexec "k8s.io/utils/exec"
	fakeexec "k8s.io/utils/exec/testing"

	"github.com/newtron-network/ifconverge/pkg/util"
)

func newFakeExec(actions ...fakeexec.FakeAction) (*fakeexec.FakeExec, *fakeexec.FakeCmd) {
	fcmd := &fakeexec.FakeCmd{CombinedOutputScript: actions}
	fexec := &fakeexec.FakeExec{
		LookPathFunc: func(file string) (string, error) { return "/usr/sbin/" + file, nil },
		CommandScript: []fakeexec.FakeCommandAction{
			func(cmd string, args ...string) kexec.Cmd { return fakeexec.InitFakeCmd(fcmd, cmd, args...) },
		},
	}
	return fexec, fcmd
}

func TestLocalRunner_Success(t *testing.T) {
	fexec, fcmd := newFakeExec(func() ([]byte, []byte, error) {
		return []byte("1: lo: <LOOPBACK,UP> mtu 65536\n"), nil, nil
	})
	r := NewLocalRunnerWithExec(fexec)

	out, err := r.Run(context.Background(), "ip", "address", "show")
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if out != "1: lo: <LOOPBACK,UP> mtu 65536\n" {
		t.Errorf("Run() output = %q", out)
	}
	if want := []string{"/usr/sbin/ip", "address", "show"}; !slices.Equal(fcmd.Argv, want) {
		t.Errorf("argv = %v, want %v", fcmd.Argv, want)
	}
}

func TestLocalRunner_Failure(t *testing.T) {
	fexec, _ := newFakeExec(func() ([]byte, []byte, error) {
		return []byte("RTNETLINK answers: File exists\n"), nil, &fakeexec.FakeExitError{Status: 2}
	})
	r := NewLocalRunnerWithExec(fexec)

	out, err := r.Run(context.Background(), "ip", "address", "add", "10.0.0.1/24", "dev", "eth0")
	if err == nil {
		t.Fatal("Run() should fail on non-zero exit")
	}
	var ce *util.CommandError
	if !errors.As(err, &ce) {
		t.Fatalf("error = %T, want *util.CommandError", err)
	}
	if ce.Command[0] != "ip" || ce.Command[len(ce.Command)-1] != "eth0" {
		t.Errorf("Command = %v", ce.Command)
	}
	if out != "RTNETLINK answers: File exists\n" {
		t.Errorf("output = %q", out)
	}
}

func TestLocalRunner_LookPathFailure(t *testing.T) {
	fexec := &fakeexec.FakeExec{
		LookPathFunc: func(string) (string, error) { return "", errors.New("not found") },
	}
	r := NewLocalRunnerWithExec(fexec)

	if _, err := r.Run(context.Background(), "modprobe", "bonding"); !errors.Is(err, util.ErrCommandFailed) {
		t.Errorf("Run() error = %v, want ErrCommandFailed", err)
	}
}

func TestAferoFS(t *testing.T) {
	mem := afero.NewMemMapFs()
	if err := mem.MkdirAll("/sys/class/net/bond0/bonding", 0o755); err != nil {
		t.Fatal(err)
	}
	if err := afero.WriteFile(mem, "/sys/class/net/bond0/bonding/mode", []byte("balance-rr 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	fs := NewAferoFS(mem)

	if !fs.IsDir("/sys/class/net/bond0/bonding") {
		t.Error("IsDir(bonding) = false")
	}
	if fs.IsDir("/sys/class/net/bond0/bonding/mode") {
		t.Error("IsDir(mode) = true")
	}
	if !fs.Exists("/sys/class/net/bond0") {
		t.Error("Exists(bond0) = false")
	}
	if fs.Exists("/sys/class/net/bond1") {
		t.Error("Exists(bond1) = true")
	}

	if err := fs.WriteFile("/sys/class/net/bond0/bonding/mode", []byte("802.3ad")); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	data, err := fs.ReadFile("/sys/class/net/bond0/bonding/mode")
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if string(data) != "802.3ad" {
		t.Errorf("ReadFile() = %q, want %q", data, "802.3ad")
	}

	if err := fs.WriteFile("/sys/class/net/bond0/bonding/missing", []byte("x")); err == nil {
		t.Error("WriteFile() should not create missing attributes")
	}
}

func TestQuoteArgs(t *testing.T) {
	got := quoteArgs([]string{"ip", "link", "set", "dev", "it's"})
	want := []string{"'ip'", "'link'", "'set'", "'dev'", `'it'\''s'`}
	if !slices.Equal(got, want) {
		t.Errorf("quoteArgs() = %v, want %v", got, want)
	}
}

func TestHostClose(t *testing.T) {
	h := New(NewLocalRunner(), NewOsFS())
	if err := h.Close(); err != nil {
		t.Errorf("Close() on local host = %v", err)
	}
}
