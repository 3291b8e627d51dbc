// Package changeset records the mutations a convergence run makes, and
// applies them when the run is executing rather than previewing.
package changeset

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/newtron-network/ifconverge/pkg/host"
	"github.com/newtron-network/ifconverge/pkg/util"
)

// Kind is the kind of mutation.
type Kind string

const (
	KindCommand Kind = "command"
	KindWrite   Kind = "write"
)

// Change is a single mutation: an external command or a sysfs write.
type Change struct {
	Resource string   `json:"resource"`
	Property string   `json:"property,omitempty"`
	Kind     Kind     `json:"kind"`
	Args     []string `json:"args,omitempty"`
	Path     string   `json:"path,omitempty"`
	Value    string   `json:"value,omitempty"`
	Applied  bool     `json:"applied"`
	Error    string   `json:"error,omitempty"`
}

// String renders the change as the command line or write it stands for.
func (c Change) String() string {
	if c.Kind == KindWrite {
		return fmt.Sprintf("echo %q > %s", c.Value, c.Path)
	}
	return strings.Join(c.Args, " ")
}

// ChangeSet is the ordered journal of one run.
type ChangeSet struct {
	Host      string    `json:"host"`
	Operation string    `json:"operation"`
	Timestamp time.Time `json:"timestamp"`
	DryRun    bool      `json:"dry_run"`
	Changes   []Change  `json:"changes"`
}

// New creates an empty ChangeSet.
func New(hostname, operation string, dryRun bool) *ChangeSet {
	return &ChangeSet{
		Host:      hostname,
		Operation: operation,
		Timestamp: time.Now(),
		DryRun:    dryRun,
		Changes:   make([]Change, 0),
	}
}

// Add appends a change.
func (cs *ChangeSet) Add(c Change) {
	cs.Changes = append(cs.Changes, c)
}

// IsEmpty returns true if there are no changes.
func (cs *ChangeSet) IsEmpty() bool {
	return len(cs.Changes) == 0
}

// ForResource returns the changes recorded against one resource, in order.
func (cs *ChangeSet) ForResource(resource string) []Change {
	var out []Change
	for _, c := range cs.Changes {
		if c.Resource == resource {
			out = append(out, c)
		}
	}
	return out
}

// Counts returns the number of changes per kind.
func (cs *ChangeSet) Counts() map[Kind]int {
	counts := make(map[Kind]int)
	for _, c := range cs.Changes {
		counts[c.Kind]++
	}
	return counts
}

// String returns a human-readable representation of the changes.
func (cs *ChangeSet) String() string {
	if cs.IsEmpty() {
		return "No changes"
	}

	var sb strings.Builder
	for _, c := range cs.Changes {
		tag := "[CMD]"
		if c.Kind == KindWrite {
			tag = "[SYS]"
		}
		fmt.Fprintf(&sb, "  %s %s: %s", tag, c.Resource, c)
		if c.Error != "" {
			fmt.Fprintf(&sb, "  (failed: %s)", c.Error)
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// Preview returns a formatted preview of the changes.
func (cs *ChangeSet) Preview() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Operation: %s\n", cs.Operation)
	fmt.Fprintf(&sb, "Host: %s\n", cs.Host)
	fmt.Fprintf(&sb, "Changes:\n%s", cs.String())
	return sb.String()
}

// Mutator is the single path every mutation goes through. It records each
// change and, when Execute is set, applies it on the host.
type Mutator struct {
	Host    *host.Host
	Changes *ChangeSet
	Execute bool
}

// NewMutator returns a Mutator journaling into cs.
func NewMutator(h *host.Host, cs *ChangeSet, execute bool) *Mutator {
	return &Mutator{Host: h, Changes: cs, Execute: execute}
}

// Command records and, when executing, runs name with args.
func (m *Mutator) Command(ctx context.Context, resource, property, name string, args ...string) error {
	c := Change{
		Resource: resource,
		Property: property,
		Kind:     KindCommand,
		Args:     append([]string{name}, args...),
	}
	var err error
	if m.Execute {
		util.WithInterface(resource).Debugf("run: %s", c)
		_, err = m.Host.Run(ctx, name, args...)
		c.Applied = err == nil
		if err != nil {
			c.Error = err.Error()
		}
	}
	m.Changes.Add(c)
	return err
}

// Write records and, when executing, writes value to path.
func (m *Mutator) Write(resource, property, path, value string) error {
	c := Change{
		Resource: resource,
		Property: property,
		Kind:     KindWrite,
		Path:     path,
		Value:    value,
	}
	var err error
	if m.Execute {
		util.WithInterface(resource).Debugf("write: %s", c)
		if werr := m.Host.FS.WriteFile(path, []byte(value)); werr != nil {
			err = util.NewCommandError([]string{"write", path, value}, "", werr)
		}
		c.Applied = err == nil
		if err != nil {
			c.Error = err.Error()
		}
	}
	m.Changes.Add(c)
	return err
}
