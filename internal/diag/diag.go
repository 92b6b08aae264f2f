// Package diag defines diagnostics reported against files and the optional
// sink that delivers them.
package diag

import "fmt"

// Severity of a diagnostic. Values follow the LSP numbering.
type Severity int

const (
	SeverityError       Severity = 1
	SeverityWarning     Severity = 2
	SeverityInformation Severity = 3
	SeverityHint        Severity = 4
)

func (s Severity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	case SeverityInformation:
		return "information"
	case SeverityHint:
		return "hint"
	}
	return fmt.Sprintf("Severity(%d)", int(s))
}

// Position is a zero-based line and column.
type Position struct {
	Line   int `json:"line"`
	Column int `json:"column"`
}

// Range is a half-open span in a file.
type Range struct {
	Start Position `json:"start"`
	End   Position `json:"end"`
}

// Diagnostic is one message attached to a range of a file.
type Diagnostic struct {
	Range    Range    `json:"range"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
	Source   string   `json:"source,omitempty"`
}

// Sink publishes diagnostics for a file. Publishing an empty list clears
// whatever was previously published for that file.
type Sink interface {
	Publish(uri string, diags []Diagnostic)
}

// SinkFunc adapts a function to a Sink.
type SinkFunc func(uri string, diags []Diagnostic)

func (f SinkFunc) Publish(uri string, diags []Diagnostic) { f(uri, diags) }
