package domkit

import "fmt"

// DiagnosticKind classifies a non-fatal problem reported to the host.
type DiagnosticKind string

// Diagnostic kinds.
const (
	KindMissingParent    DiagnosticKind = "missing_parent"
	KindInvalidChild     DiagnosticKind = "invalid_child"
	KindUnmatchedPattern DiagnosticKind = "unmatched_pattern"
	KindHostFailure      DiagnosticKind = "host_failure"
)

// Diagnostic describes one problem encountered during a build or read.
type Diagnostic struct {
	Kind DiagnosticKind
	// Subject is what the problem is about: a child path like "div/1/span",
	// a selector, or a bridge step.
	Subject string
	Message string
}

// String returns a single-line description suitable for the host log.
func (d Diagnostic) String() string {
	if d.Subject == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
	return fmt.Sprintf("%s: %s: %s", d.Kind, d.Subject, d.Message)
}
