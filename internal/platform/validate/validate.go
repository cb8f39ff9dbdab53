// Package validate collects field-level problems found while checking a form.
// Issues with warning severity describe a deferral: the submission is well
// formed but the donor may not proceed.
package validate

import (
	"errors"
	"strings"
)

type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

type IssueType string

const (
	IssueRequired     IssueType = "required"
	IssueValue        IssueType = "value"
	IssueBusinessRule IssueType = "business-rule"
)

// Issue is a single validation problem.
type Issue struct {
	Severity    Severity  `json:"severity"`
	Code        IssueType `json:"code"`
	Location    string    `json:"location,omitempty"`
	Diagnostics string    `json:"diagnostics"`
}

// ErrInvalid matches every *Error with errors.Is.
var ErrInvalid = errors.New("validation failed")

// Error is returned when a submission has one or more issues.
type Error struct {
	Issues []Issue
}

func (e *Error) Error() string {
	return strings.Join(e.Messages(), "; ")
}

func (e *Error) Is(target error) bool { return target == ErrInvalid }

// Messages returns the diagnostics in the order they were found.
func (e *Error) Messages() []string {
	out := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		out = append(out, is.Diagnostics)
	}
	return out
}

// Fields returns the locations of the issues, skipping blanks.
func (e *Error) Fields() []string {
	var out []string
	for _, is := range e.Issues {
		if is.Location != "" {
			out = append(out, is.Location)
		}
	}
	return out
}

// Deferral reports whether every issue is a warning.
func (e *Error) Deferral() bool {
	if len(e.Issues) == 0 {
		return false
	}
	for _, is := range e.Issues {
		if is.Severity != SeverityWarning {
			return false
		}
	}
	return true
}

// Issues accumulates problems while a form is checked.
type Issues []Issue

func (is *Issues) Add(sev Severity, code IssueType, location, msg string) {
	*is = append(*is, Issue{Severity: sev, Code: code, Location: location, Diagnostics: msg})
}

// Required records a missing-field error when value is blank.
func (is *Issues) Required(location, value string) {
	if strings.TrimSpace(value) == "" {
		is.Add(SeverityError, IssueRequired, location, location+" is required")
	}
}

func (is *Issues) Invalid(location, msg string) {
	is.Add(SeverityError, IssueValue, location, msg)
}

func (is *Issues) Warn(location, msg string) {
	is.Add(SeverityWarning, IssueBusinessRule, location, msg)
}

// Err returns nil when no issues were recorded, otherwise an *Error.
func (is Issues) Err() error {
	if len(is) == 0 {
		return nil
	}
	return &Error{Issues: append([]Issue(nil), is...)}
}

// AsError unwraps err to an *Error.
func AsError(err error) (*Error, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}
