// Package host abstracts the machine whose interfaces are converged: the
// command runner used for ip/modprobe and the filesystem holding sysfs.
package host

import (
	"context"
	"io"
)

// Runner executes an external command and returns its combined output.
// A non-zero exit is returned as *util.CommandError.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (string, error)
}

// FileSystem is the subset of file operations needed against sysfs.
type FileSystem interface {
	ReadFile(path string) ([]byte, error)
	WriteFile(path string, data []byte) error
	Exists(path string) bool
	IsDir(path string) bool
}

// Host bundles a Runner and a FileSystem targeting the same machine.
type Host struct {
	Runner
	FS     FileSystem
	closer io.Closer
}

// New creates a Host from its parts.
func New(r Runner, fs FileSystem) *Host {
	return &Host{Runner: r, FS: fs}
}

// Local returns a Host for the machine the process runs on.
func Local() *Host {
	return New(NewLocalRunner(), NewOsFS())
}

// Close releases the underlying connection, if any.
func (h *Host) Close() error {
	if h.closer == nil {
		return nil
	}
	return h.closer.Close()
}
