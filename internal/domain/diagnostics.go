package domain

import (
	"errors"
	"fmt"
	"strings"
)

type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// DiagnosticKind names the recoverable conditions a build can report.
type DiagnosticKind string

const (
	DuplicateSymbol     DiagnosticKind = "duplicate-symbol"
	UnresolvedReference DiagnosticKind = "unresolved-reference"
	UnparsableBlock     DiagnosticKind = "unparsable-block"
	OrphanParent        DiagnosticKind = "orphan-parent"
	AmbiguousReference  DiagnosticKind = "ambiguous-reference"
)

type Diagnostic struct {
	Severity Severity       `json:"severity"`
	Kind     DiagnosticKind `json:"kind"`
	Message  string         `json:"message"`
	Location Location       `json:"location"`
	Related  []Location     `json:"related,omitempty"`
}

func (d Diagnostic) String() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: %s: %s [%s]", d.Location, d.Severity, d.Message, d.Kind)
	for _, r := range d.Related {
		fmt.Fprintf(&sb, "\n\tsee %s", r)
	}
	return sb.String()
}

// Warn builds a warning diagnostic.
func Warn(kind DiagnosticKind, loc Location, format string, args ...any) Diagnostic {
	return Diagnostic{
		Severity: SeverityWarning,
		Kind:     kind,
		Message:  fmt.Sprintf(format, args...),
		Location: loc,
	}
}

// Report collects diagnostics in the order the pipeline stages emit them.
type Report struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

func (r *Report) Add(d ...Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d...)
}

func (r *Report) Count(kind DiagnosticKind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

func (r *Report) HasWarnings() bool {
	return len(r.Diagnostics) > 0
}

// ConfigError is the only fatal error class: it aborts a run before any
// source unit is processed.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Field != "" {
		msg += " in " + e.Field
	}
	msg += ": " + e.Message
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func NewConfigError(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// IsConfigError reports whether err is or wraps a *ConfigError.
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
