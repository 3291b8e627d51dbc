package changeset

import (
	"errors"
	"fmt"

	"github.com/newtron-network/ifconverge/pkg/util"
)

// Action is what convergence decided to do with a resource.
type Action string

const (
	ActionNone    Action = "none"
	ActionCreate  Action = "create"
	ActionDestroy Action = "destroy"
	ActionUpdate  Action = "update"
)

// PropertyResult is the outcome of converging one property.
type PropertyResult struct {
	Property string `json:"property"`
	Changed  bool   `json:"changed"`
	Err      error  `json:"-"`
	Error    string `json:"error,omitempty"`
}

// Report is the outcome of converging one resource, in the order the
// properties were handled. Aborted is set once a critical failure stopped
// the remaining steps.
type Report struct {
	Resource string           `json:"resource"`
	Kind     string           `json:"kind"`
	Action   Action           `json:"action"`
	Results  []PropertyResult `json:"results"`
	Aborted  bool             `json:"aborted"`
}

// NewReport starts a report for resource of the given kind.
func NewReport(resource, kind string) *Report {
	return &Report{Resource: resource, Kind: kind, Action: ActionNone}
}

// Record appends the outcome of one property. A critical err marks the
// report aborted.
func (r *Report) Record(property string, changed bool, err error) {
	pr := PropertyResult{Property: property, Changed: changed, Err: err}
	if err != nil {
		pr.Error = err.Error()
		if util.IsCritical(err) {
			r.Aborted = true
		}
	}
	r.Results = append(r.Results, pr)
}

// Changed reports whether any property changed.
func (r *Report) Changed() bool {
	for _, pr := range r.Results {
		if pr.Changed {
			return true
		}
	}
	return false
}

// Failed returns the results that carry an error.
func (r *Report) Failed() []PropertyResult {
	var out []PropertyResult
	for _, pr := range r.Results {
		if pr.Err != nil {
			out = append(out, pr)
		}
	}
	return out
}

// Err joins every property failure, or returns nil.
func (r *Report) Err() error {
	var errs []error
	for _, pr := range r.Failed() {
		errs = append(errs, fmt.Errorf("%s %s: %w", r.Resource, pr.Property, pr.Err))
	}
	return errors.Join(errs...)
}

// Outcome summarises the report as one word for metrics and tables.
func (r *Report) Outcome() string {
	switch {
	case r.Aborted:
		return "aborted"
	case len(r.Failed()) > 0:
		return "partial"
	case r.Changed() || r.Action == ActionCreate || r.Action == ActionDestroy:
		return "changed"
	default:
		return "unchanged"
	}
}
