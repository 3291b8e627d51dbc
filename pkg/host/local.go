package host

import (
	"context"
	"os"

	"github.com/spf13/afero"
	kexec "k8s.io/utils/exec"

	"github.com/newtron-network/ifconverge/pkg/util"
)

// LocalRunner runs commands on the local machine.
type LocalRunner struct {
	exec kexec.Interface
}

// NewLocalRunner returns a runner backed by os/exec.
func NewLocalRunner() *LocalRunner {
	return NewLocalRunnerWithExec(kexec.New())
}

// NewLocalRunnerWithExec returns a runner on a caller-supplied exec
// implementation (a fake in tests).
func NewLocalRunnerWithExec(e kexec.Interface) *LocalRunner {
	return &LocalRunner{exec: e}
}

// Run executes name with args and returns the combined output.
func (r *LocalRunner) Run(ctx context.Context, name string, args ...string) (string, error) {
	path, err := r.exec.LookPath(name)
	if err != nil {
		return "", util.NewCommandError(append([]string{name}, args...), "", err)
	}

	util.Debugf("exec: %s %v", path, args)
	out, err := r.exec.CommandContext(ctx, path, args...).CombinedOutput()
	if err != nil {
		return string(out), util.NewCommandError(append([]string{name}, args...), string(out), err)
	}
	return string(out), nil
}

// AferoFS implements FileSystem on an afero.Fs.
type AferoFS struct {
	fs afero.Fs
}

// NewAferoFS wraps fs. Tests pass afero.NewMemMapFs().
func NewAferoFS(fs afero.Fs) *AferoFS {
	return &AferoFS{fs: fs}
}

// NewOsFS returns the real filesystem.
func NewOsFS() *AferoFS {
	return NewAferoFS(afero.NewOsFs())
}

// ReadFile reads the whole file at path.
func (a *AferoFS) ReadFile(path string) ([]byte, error) {
	return afero.ReadFile(a.fs, path)
}

// WriteFile writes data to an existing file, truncating it. Sysfs
// attributes are never created by writers.
func (a *AferoFS) WriteFile(path string, data []byte) error {
	f, err := a.fs.OpenFile(path, os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Exists reports whether path exists.
func (a *AferoFS) Exists(path string) bool {
	ok, err := afero.Exists(a.fs, path)
	return err == nil && ok
}

// IsDir reports whether path is a directory.
func (a *AferoFS) IsDir(path string) bool {
	ok, err := afero.IsDir(a.fs, path)
	return err == nil && ok
}
