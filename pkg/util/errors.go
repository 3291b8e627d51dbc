// Package util provides utility functions and common error types.
package util

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for convergence failures
var (
	ErrNotFound          = errors.New("resource not found")
	ErrInvalidConfig     = errors.New("invalid configuration")
	ErrValidationFailed  = errors.New("validation failed")
	ErrCommandFailed     = errors.New("command failed")
	ErrDependencyMissing = errors.New("required dependency missing")
	ErrImmutable         = errors.New("property cannot change after creation")
	ErrCritical          = errors.New("critical failure")
)

// ValidationError represents one or more validation failures
type ValidationError struct {
	Errors []string
}

func (e *ValidationError) Error() string {
	if len(e.Errors) == 1 {
		return "validation failed: " + e.Errors[0]
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(e.Errors, "\n  - "))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a validation error from messages
func NewValidationError(messages ...string) *ValidationError {
	return &ValidationError{Errors: messages}
}

// ValidationBuilder helps accumulate validation errors
type ValidationBuilder struct {
	errors []string
}

// Add adds an error message if condition is false
func (v *ValidationBuilder) Add(condition bool, message string) *ValidationBuilder {
	if !condition {
		v.errors = append(v.errors, message)
	}
	return v
}

// AddError adds an error message unconditionally
func (v *ValidationBuilder) AddError(message string) *ValidationBuilder {
	v.errors = append(v.errors, message)
	return v
}

// AddErrorf adds a formatted error message
func (v *ValidationBuilder) AddErrorf(format string, args ...interface{}) *ValidationBuilder {
	v.errors = append(v.errors, fmt.Sprintf(format, args...))
	return v
}

// Merge folds the messages of err into the builder. Non-validation errors
// are added by their message.
func (v *ValidationBuilder) Merge(err error) *ValidationBuilder {
	if err == nil {
		return v
	}
	var ve *ValidationError
	if errors.As(err, &ve) {
		v.errors = append(v.errors, ve.Errors...)
		return v
	}
	v.errors = append(v.errors, err.Error())
	return v
}

// HasErrors returns true if there are validation errors
func (v *ValidationBuilder) HasErrors() bool {
	return len(v.errors) > 0
}

// Build returns the validation error or nil if no errors
func (v *ValidationBuilder) Build() error {
	if len(v.errors) == 0 {
		return nil
	}
	return &ValidationError{Errors: v.errors}
}

// CommandError is an external command that exited non-zero, or a sysfs
// write that failed. Command holds the argv, or "write <path> <value>".
type CommandError struct {
	Command []string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	msg := fmt.Sprintf("'%s' failed: %v", strings.Join(e.Command, " "), e.Err)
	if out := strings.TrimSpace(e.Output); out != "" {
		msg += ": " + out
	}
	return msg
}

func (e *CommandError) Unwrap() []error {
	return []error{ErrCommandFailed, e.Err}
}

// NewCommandError creates a command error
func NewCommandError(command []string, output string, err error) *CommandError {
	return &CommandError{Command: command, Output: output, Err: err}
}

// MissingResourceError is a referenced interface (slave, parent) that does
// not exist on the system at apply time.
type MissingResourceError struct {
	Resource      string
	DependsOn     string
	DependsOnType string
}

func (e *MissingResourceError) Error() string {
	return fmt.Sprintf("%s requires %s '%s' to exist", e.Resource, e.DependsOnType, e.DependsOn)
}

func (e *MissingResourceError) Unwrap() error {
	return ErrDependencyMissing
}

// NewMissingResourceError creates a missing resource error
func NewMissingResourceError(resource, dependsOnType, dependsOn string) *MissingResourceError {
	return &MissingResourceError{
		Resource:      resource,
		DependsOn:     dependsOn,
		DependsOnType: dependsOnType,
	}
}

// ImmutableError reports drift on a property that is only applied when the
// resource is created.
type ImmutableError struct {
	Resource string
	Property string
	Current  string
	Desired  string
}

func (e *ImmutableError) Error() string {
	return fmt.Sprintf("%s: %s is %q, want %q; recreate the interface to change it",
		e.Resource, e.Property, e.Current, e.Desired)
}

func (e *ImmutableError) Unwrap() error {
	return ErrImmutable
}

type criticalError struct {
	err error
}

func (e *criticalError) Error() string { return e.err.Error() }

func (e *criticalError) Unwrap() []error { return []error{ErrCritical, e.err} }

// MarkCritical tags err as aborting the remaining steps of its resource.
func MarkCritical(err error) error {
	if err == nil || IsCritical(err) {
		return err
	}
	return &criticalError{err: err}
}

// IsCritical reports whether err aborts the remaining steps of its resource.
func IsCritical(err error) bool {
	return errors.Is(err, ErrCritical)
}
