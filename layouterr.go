// layouterr.go - Build-time failure taxonomy for the layout planner
package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
)

// LayoutErrorKind classifies the fatal ways a plan can fail. Every one of
// these aborts the build with no image emitted: past link time the only
// symptom would be a machine that silently fails to boot.
type LayoutErrorKind int

const (
	ErrUnresolvedEntry LayoutErrorKind = iota
	ErrAlignmentViolation
	ErrHeaderOutOfRange
	ErrBadPlan
)

func (k LayoutErrorKind) String() string {
	switch k {
	case ErrUnresolvedEntry:
		return "unresolved entry"
	case ErrAlignmentViolation:
		return "alignment violation"
	case ErrHeaderOutOfRange:
		return "header out of range"
	case ErrBadPlan:
		return "bad plan"
	default:
		return "unknown"
	}
}

// LayoutError is a fatal planning or validation failure.
type LayoutError struct {
	Kind   LayoutErrorKind
	Region string // offending Region, if one is known
	Detail string
}

func (e *LayoutError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.String())
	if e.Region != "" {
		sb.WriteString(": region ")
		sb.WriteString(e.Region)
	}
	if e.Detail != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Detail)
	}
	return sb.String()
}

func unresolvedEntry(symbol, why string) *LayoutError {
	return &LayoutError{
		Kind:   ErrUnresolvedEntry,
		Detail: fmt.Sprintf("entry symbol %q %s", symbol, why),
	}
}

func alignmentViolation(region string, computed, required uint64) *LayoutError {
	return &LayoutError{
		Kind:   ErrAlignmentViolation,
		Region: region,
		Detail: fmt.Sprintf("computed base 0x%x does not satisfy required 0x%x", computed, required),
	}
}

func headerOutOfRange(region string, offset, limit uint64) *LayoutError {
	return &LayoutError{
		Kind:   ErrHeaderOutOfRange,
		Region: region,
		Detail: fmt.Sprintf("begins %s past the load base; boot loaders scan only the first %s",
			humanize.IBytes(offset), humanize.IBytes(limit)),
	}
}

func badPlan(format string, args ...interface{}) *LayoutError {
	return &LayoutError{Kind: ErrBadPlan, Detail: fmt.Sprintf(format, args...)}
}

// Diagnostic is a non-fatal finding surfaced while planning. The only
// current producer is first-match-wins pattern ambiguity: deterministic,
// so never an error, but usually a stale rule someone should delete.
type Diagnostic struct {
	Section  string // input section, as object(section)
	Chosen   string // Region that won
	Shadowed string // Region whose matching rule lost
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("section %s matches both region %s and region %s; first region in plan order wins",
		d.Section, d.Chosen, d.Shadowed)
}
