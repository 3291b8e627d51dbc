// Package audit records one event per converged resource in a JSON-lines
// log, so every mutation a run made (or would have made) can be traced.
package audit

import (
	"fmt"
	"time"

	"github.com/newtron-network/ifconverge/pkg/changeset"
)

// Event is the outcome of converging one resource.
type Event struct {
	ID        string             `json:"id"`
	Timestamp time.Time          `json:"timestamp"`
	User      string             `json:"user"`
	Host      string             `json:"host"`
	Operation string             `json:"operation"`
	Resource  string             `json:"resource"`
	Kind      string             `json:"kind"`
	Action    changeset.Action   `json:"action"`
	Changes   []changeset.Change `json:"changes"`
	Success   bool               `json:"success"`
	Error     string             `json:"error,omitempty"`
	DryRun    bool               `json:"dry_run"`
	Duration  time.Duration      `json:"duration"`
}

// Filter selects events in Query. Zero fields match everything.
type Filter struct {
	Host        string
	User        string
	Resource    string
	Kind        string
	Operation   string
	StartTime   time.Time
	EndTime     time.Time
	ChangedOnly bool
	SuccessOnly bool
	FailureOnly bool
	Limit       int
	Offset      int
}

// NewEvent creates an event for one resource.
func NewEvent(user, host, operation string) *Event {
	return &Event{
		ID:        generateID(),
		Timestamp: time.Now(),
		User:      user,
		Host:      host,
		Operation: operation,
	}
}

// FromReport fills resource, action, outcome and the resource's changes
// from a convergence report.
func (e *Event) FromReport(rep *changeset.Report, changes []changeset.Change) *Event {
	e.Resource = rep.Resource
	e.Kind = rep.Kind
	e.Action = rep.Action
	e.Changes = changes
	if err := rep.Err(); err != nil {
		return e.WithError(err)
	}
	return e.WithSuccess()
}

// WithSuccess marks the event as successful
func (e *Event) WithSuccess() *Event {
	e.Success = true
	e.Error = ""
	return e
}

// WithError marks the event as failed
func (e *Event) WithError(err error) *Event {
	e.Success = false
	if err != nil {
		e.Error = err.Error()
	}
	return e
}

// WithDuration sets how long the resource took to converge.
func (e *Event) WithDuration(d time.Duration) *Event {
	e.Duration = d
	return e
}

// WithDryRun marks events from runs that only previewed changes.
func (e *Event) WithDryRun(dryRun bool) *Event {
	e.DryRun = dryRun
	return e
}

func generateID() string {
	return fmt.Sprintf("%d", time.Now().UnixNano())
}
