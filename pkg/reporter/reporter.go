// Package reporter implements the error reporter (A4): accumulation and
// formatting of lexical, syntactic and semantic diagnostics, and the
// fatal-invariant-violation path for internal bugs.
package reporter

import (
	"fmt"
	"runtime"
	"strings"
)

// Severity names a diagnostic category, matching the reporter tags of
// spec.md §6 exactly.
type Severity string

const (
	SeverityLexer    Severity = "Lexer Error"
	SeverityParser   Severity = "Parser Error"
	SeveritySemantic Severity = "Semantic Error"
)

// Kind is an error-taxonomy tag (spec.md §7).
type Kind string

const (
	KindUnknownToken       Kind = "unknown-token"
	KindUnexpectedToken    Kind = "unexpected-token"
	KindMissingRetval      Kind = "missing-retval"
	KindRetTypeMismatch    Kind = "ret-type-mismatch"
	KindTypeInferFailure   Kind = "type-inference-failure"
	KindTypeMismatch       Kind = "type-mismatch"
	KindUnexpectedExprType Kind = "unexpected-expr-type"
	KindBreakCtxError      Kind = "break-ctx-error"
	KindBreakTypeMismatch  Kind = "break-type-mismatch"
	KindContinueCtxError   Kind = "continue-ctx-error"
	KindUndeclaredVar      Kind = "undeclared-var"
	KindUninitializedVar   Kind = "uninitialized-var"
	KindOutOfBoundsAccess  Kind = "out-of-bounds-access"
	KindAssignImmutable    Kind = "assign-immutable"
	KindAssignMismatch     Kind = "assign-mismatch"
	KindIncomparableTypes  Kind = "incomparable-types"
	KindNonComputableTypes Kind = "non-computable-types"
	KindCallUndeclaredFunc Kind = "call-undeclared-func"
	KindArgCntMismatch     Kind = "arg-cnt-mismatch"
	KindArgTypeMismatch    Kind = "arg-type-mismatch"
	KindMissingElse        Kind = "missing-else"
	KindDuplicateFunction  Kind = "duplicate-function"
)

// Position is a 1-based source location.
type Position struct {
	Line int
	Col  int
}

// Diagnostic is one reported error.
type Diagnostic struct {
	Severity Severity
	Kind     Kind
	Cause    string
	Scope    string
	Pos      Position
	Details  string
}

// Reporter accumulates diagnostics against an in-memory source line vector
// so messages can show source lines by row/column, per spec.md §5.
type Reporter struct {
	Lines []string
	diags []Diagnostic
}

// New creates a Reporter over the given source text, split into lines.
func New(source string) *Reporter {
	return &Reporter{Lines: strings.Split(source, "\n")}
}

// Report accumulates a diagnostic; it never aborts the pipeline.
func (r *Reporter) Report(d Diagnostic) {
	r.diags = append(r.diags, d)
}

// Len returns the number of accumulated diagnostics.
func (r *Reporter) Len() int { return len(r.diags) }

// HasErrors reports whether any diagnostic has been accumulated.
func (r *Reporter) HasErrors() bool { return len(r.diags) > 0 }

// Diagnostics returns the accumulated diagnostics in report order.
func (r *Reporter) Diagnostics() []Diagnostic { return r.diags }

// Format renders every accumulated diagnostic followed by a trailing
// error-count line, matching spec.md §6's reporter output format.
func (r *Reporter) Format() string {
	var b strings.Builder
	for _, d := range r.diags {
		b.WriteString(r.formatOne(d))
		b.WriteByte('\n')
	}
	fmt.Fprintf(&b, "%d error(s).\n", len(r.diags))
	return b.String()
}

func (r *Reporter) formatOne(d Diagnostic) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]: %s\n", d.Severity, d.Kind, d.Cause)
	fmt.Fprintf(&b, "scope: %s (%d, %d)\n", d.Scope, d.Pos.Line, d.Pos.Col)
	if d.Pos.Line >= 1 && d.Pos.Line <= len(r.Lines) {
		line := r.Lines[d.Pos.Line-1]
		b.WriteString(line)
		b.WriteByte('\n')
		col := d.Pos.Col
		if col < 1 {
			col = 1
		}
		b.WriteString(strings.Repeat(" ", col-1))
		b.WriteByte('^')
		b.WriteByte('\n')
	}
	if d.Details != "" {
		fmt.Fprintf(&b, "Details: %s\n", d.Details)
	}
	return strings.TrimRight(b.String(), "\n")
}

// FatalError is the panic value Fatal raises. It carries the caller's
// location so internal invariant violations ("UNREACHABLE" conditions) are
// diagnosable even though they terminate the process.
type FatalError struct {
	Message string
	File    string
	Line    int
	Func    string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s:%d: %s: %s", e.File, e.Line, e.Func, e.Message)
}

// Fatal raises an internal invariant violation: a compiler bug, not a user
// error. It panics with a FatalError carrying the caller's file/line/function
// so the top-level recover in cmd/rvcc can print a clean diagnostic instead
// of a raw stack trace.
func Fatal(format string, args ...any) {
	pc, file, line, _ := runtime.Caller(1)
	fn := runtime.FuncForPC(pc)
	name := "unknown"
	if fn != nil {
		name = fn.Name()
	}
	panic(&FatalError{
		Message: fmt.Sprintf(format, args...),
		File:    file,
		Line:    line,
		Func:    name,
	})
}
