// Package errors provides the compiler's single structured error type and
// utilities for formatting it with source context, line/column information,
// and a caret pointing at the offending span.
package errors

import (
	"fmt"
	"strings"
)

// Span identifies a location in source text. It is supplied by whatever
// produced the syntax tree (an external parser); the core only carries it
// through diagnostics.
type Span struct {
	Line   int
	Column int
	Offset int
}

func (s Span) String() string {
	return fmt.Sprintf("%d:%d", s.Line, s.Column)
}

// Kind classifies a CompileError. These are the only three kinds the
// compiler ever produces, per the pipeline's error design: pass 1 and pass
// 2 each report the first error on the current branch and abort.
type Kind string

const (
	// Name errors: undeclared identifier, duplicate declaration, unknown
	// method, missing struct field.
	Name Kind = "name"
	// Type errors: incompatible operand/argument/branch types, bad index
	// type, non-boolean condition, mutation of an immutable binding,
	// missing/extra struct fields, inference failure.
	Type Kind = "type"
	// Structure errors: shape violations, e.g. a field-assignment target
	// that isn't a variable.
	Structure Kind = "structure"
)

// CompileError is the single error type produced by semantic analysis,
// type checking, and IR lowering. It never carries a stack of causes: pass
// 1 and pass 2 each stop at their first error.
type CompileError struct {
	Kind    Kind
	Message string
	Span    Span
	Source  string
	File    string
}

// New creates a CompileError. Source and File are optional and are used
// only to render a caret when formatting.
func New(kind Kind, message string, span Span) *CompileError {
	return &CompileError{Kind: kind, Message: message, Span: span}
}

// Error implements the error interface.
func (e *CompileError) Error() string {
	return e.Format(false)
}

// Format renders the error with source context and a caret, if source text
// was attached. If color is true, ANSI escapes highlight the message.
func (e *CompileError) Format(color bool) string {
	var sb strings.Builder

	if e.File != "" {
		sb.WriteString(fmt.Sprintf("%s error in %s:%d:%d\n", e.Kind, e.File, e.Span.Line, e.Span.Column))
	} else {
		sb.WriteString(fmt.Sprintf("%s error at %d:%d\n", e.Kind, e.Span.Line, e.Span.Column))
	}

	if line := e.sourceLine(e.Span.Line); line != "" {
		lineNumStr := fmt.Sprintf("%4d | ", e.Span.Line)
		sb.WriteString(lineNumStr)
		sb.WriteString(line)
		sb.WriteString("\n")

		sb.WriteString(strings.Repeat(" ", len(lineNumStr)+e.Span.Column-1))
		if color {
			sb.WriteString("\033[1;31m")
		}
		sb.WriteString("^")
		if color {
			sb.WriteString("\033[0m")
		}
		sb.WriteString("\n")
	}

	if color {
		sb.WriteString("\033[1m")
	}
	sb.WriteString(e.Message)
	if color {
		sb.WriteString("\033[0m")
	}

	return sb.String()
}

func (e *CompileError) sourceLine(lineNum int) string {
	if e.Source == "" || lineNum < 1 {
		return ""
	}
	lines := strings.Split(e.Source, "\n")
	if lineNum > len(lines) {
		return ""
	}
	return lines[lineNum-1]
}

// FormatErrors renders a batch of errors, numbering each. The compiler
// itself never accumulates more than one (it aborts on the first), but
// callers that gather errors from several independent compilations (e.g. a
// test harness) can use this to render them together.
func FormatErrors(errs []*CompileError, color bool) string {
	if len(errs) == 0 {
		return ""
	}
	if len(errs) == 1 {
		return errs[0].Format(color)
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("compilation failed with %d errors:\n\n", len(errs)))
	for i, err := range errs {
		sb.WriteString(fmt.Sprintf("[%d/%d] ", i+1, len(errs)))
		sb.WriteString(err.Format(color))
		if i < len(errs)-1 {
			sb.WriteString("\n\n")
		}
	}
	return sb.String()
}
