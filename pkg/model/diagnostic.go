package model

import (
	"fmt"

	apperrors "github.com/callgrind-analysis/pkg/errors"
)

// DiagnosticKind classifies a problem found while parsing a profile.
type DiagnosticKind int

const (
	DiagLexicalError DiagnosticKind = iota
	DiagSyntaxError
	DiagDanglingReference
	DiagSchemaRedeclared
	DiagSchemaMissing
	DiagNumericOverflow
	DiagMisplacedHeaderField
	DiagDuplicateHeaderField
	DiagTotalsMismatch
)

var diagnosticNames = map[DiagnosticKind]string{
	DiagLexicalError:         "LexicalError",
	DiagSyntaxError:          "SyntaxError",
	DiagDanglingReference:    "DanglingReference",
	DiagSchemaRedeclared:     "SchemaRedeclared",
	DiagSchemaMissing:        "SchemaMissing",
	DiagNumericOverflow:      "NumericOverflow",
	DiagMisplacedHeaderField: "MisplacedHeaderField",
	DiagDuplicateHeaderField: "DuplicateHeaderField",
	DiagTotalsMismatch:       "TotalsMismatch",
}

var diagnosticCodes = map[DiagnosticKind]string{
	DiagLexicalError:         apperrors.CodeLexicalError,
	DiagSyntaxError:          apperrors.CodeSyntaxError,
	DiagDanglingReference:    apperrors.CodeDanglingReference,
	DiagSchemaRedeclared:     apperrors.CodeSchemaRedeclared,
	DiagSchemaMissing:        apperrors.CodeSchemaMissing,
	DiagNumericOverflow:      apperrors.CodeNumericOverflow,
	DiagMisplacedHeaderField: apperrors.CodeMisplacedHeaderField,
	DiagDuplicateHeaderField: apperrors.CodeDuplicateHeaderField,
	DiagTotalsMismatch:       apperrors.CodeTotalsMismatch,
}

// String returns the name of the kind.
func (k DiagnosticKind) String() string {
	if name, ok := diagnosticNames[k]; ok {
		return name
	}
	return "Unknown"
}

// Code returns the application error code of the kind.
func (k DiagnosticKind) Code() string {
	if code, ok := diagnosticCodes[k]; ok {
		return code
	}
	return apperrors.CodeUnknown
}

// Severity returns the default severity of the kind.
func (k DiagnosticKind) Severity() Severity {
	switch k {
	case DiagSchemaRedeclared, DiagSchemaMissing:
		return SeverityFatal
	case DiagNumericOverflow, DiagMisplacedHeaderField, DiagDuplicateHeaderField, DiagTotalsMismatch:
		return SeverityWarning
	default:
		return SeverityError
	}
}

// MarshalText encodes the kind by name.
func (k DiagnosticKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// Severity orders diagnostics from informational to parse-aborting.
type Severity int

const (
	SeverityWarning Severity = iota
	SeverityError
	SeverityFatal
)

// String returns the name of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	case SeverityFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// MarshalText encodes the severity by name.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Diagnostic is a problem found at a given input line.
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Severity Severity       `json:"severity"`
	Line     int            `json:"line"`
	Message  string         `json:"message"`
}

// NewDiagnostic creates a diagnostic with the kind's default severity.
func NewDiagnostic(kind DiagnosticKind, line int, format string, args ...interface{}) Diagnostic {
	return Diagnostic{
		Kind:     kind,
		Severity: kind.Severity(),
		Line:     line,
		Message:  fmt.Sprintf(format, args...),
	}
}

// String formats the diagnostic as "line N: [severity] Kind: message".
func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: [%s] %s: %s", d.Line, d.Severity, d.Kind, d.Message)
}

// Err converts the diagnostic into a coded application error.
func (d Diagnostic) Err() error {
	return apperrors.New(d.Kind.Code(), fmt.Sprintf("line %d: %s", d.Line, d.Message))
}

// Diagnostics is an ordered list of diagnostics.
type Diagnostics []Diagnostic

// HasFatal reports whether any diagnostic aborted parsing.
func (ds Diagnostics) HasFatal() bool {
	return ds.Count(SeverityFatal) > 0
}

// HasErrors reports whether any diagnostic is an error or worse.
func (ds Diagnostics) HasErrors() bool {
	return ds.Count(SeverityError)+ds.Count(SeverityFatal) > 0
}

// Count returns how many diagnostics have exactly the given severity.
func (ds Diagnostics) Count(sev Severity) int {
	n := 0
	for _, d := range ds {
		if d.Severity == sev {
			n++
		}
	}
	return n
}

// OfKind returns the diagnostics of one kind.
func (ds Diagnostics) OfKind(kind DiagnosticKind) Diagnostics {
	var out Diagnostics
	for _, d := range ds {
		if d.Kind == kind {
			out = append(out, d)
		}
	}
	return out
}
