package resolve

import (
	"errors"
	"fmt"
	"slices"
	"strings"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
)

// ErrCanceled is wrapped by the error returned when the context passed to
// [Resolver.Resolve] is done. The context's own error is wrapped too.
var ErrCanceled = errors.New("resolution canceled")

type canceledError struct{ cause error }

func (e *canceledError) Error() string       { return ErrCanceled.Error() + ": " + e.cause.Error() }
func (e *canceledError) Unwrap() []error     { return []error{ErrCanceled, e.cause} }
func (e *canceledError) Code() wwerrors.Code { return wwerrors.ErrCodeCanceled }

// ConflictError reports a package whose accumulated requirements admit no
// candidate, after every alternative decision was tried.
type ConflictError struct {
	Package      string // Package whose constraints could not be met
	Selected     string // Version selected when a later requirement excluded it, if any
	Requirements []Edge // Every requirement on Package at the point of failure
	Available    int    // Releases the index lists for Package
	LimitReached bool   // Backtracking stopped at Options.MaxBacktracks
}

func (e *ConflictError) Error() string {
	var b strings.Builder
	switch {
	case e.Selected != "":
		fmt.Fprintf(&b, "conflict on %s (selected %s)", e.Package, e.Selected)
	case len(e.Requirements) == 1:
		fmt.Fprintf(&b, "no version of %s satisfies the requirement", e.Package)
	default:
		fmt.Fprintf(&b, "conflicting requirements on %s", e.Package)
	}
	writeEdges(&b, e.Requirements)
	if e.LimitReached {
		b.WriteString(" (backtrack limit reached)")
	}
	return b.String()
}

// Code implements errors.Coder.
func (e *ConflictError) Code() wwerrors.Code { return wwerrors.ErrCodeConflict }

// Packages returns the conflicting package and every package that
// contributed a requirement on it, sorted.
func (e *ConflictError) Packages() []string {
	return implicated(e.Package, e.Requirements)
}

// CycleError reports a dependency cycle that required a version the
// current selection could not satisfy, after every alternative decision
// was tried.
type CycleError struct {
	Package      string   // Package re-encountered on its own selection path
	Selected     string   // Its selected version
	Requirement  Edge     // The requirement that closed the cycle
	Cycle        []string // Package, ..., the requirer
	Requirements []Edge   // Every requirement on Package at the point of failure
	LimitReached bool
}

func (e *CycleError) Error() string {
	var b strings.Builder
	path := strings.Join(append(slices.Clone(e.Cycle), e.Package), " -> ")
	fmt.Fprintf(&b, "dependency cycle %s: %s==%s is selected but %s", path, e.Package, e.Selected, e.Requirement)
	if len(e.Requirements) > 1 {
		b.WriteString("; all requirements")
		writeEdges(&b, e.Requirements)
	}
	if e.LimitReached {
		b.WriteString(" (backtrack limit reached)")
	}
	return b.String()
}

// Code implements errors.Coder.
func (e *CycleError) Code() wwerrors.Code { return wwerrors.ErrCodeCycleEscalation }

// Packages returns every package on the cycle and every package that
// contributed a requirement on the failing one, sorted.
func (e *CycleError) Packages() []string {
	names := implicated(e.Package, e.Requirements)
	for _, n := range e.Cycle {
		if !slices.Contains(names, n) {
			names = append(names, n)
		}
	}
	slices.Sort(names)
	return names
}

func writeEdges(b *strings.Builder, edges []Edge) {
	for i, e := range edges {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		b.WriteString(e.String())
	}
}

func implicated(pkg string, edges []Edge) []string {
	names := []string{pkg}
	for _, e := range edges {
		if e.Parent != "" && !slices.Contains(names, e.Parent) {
			names = append(names, e.Parent)
		}
	}
	slices.Sort(names)
	return names
}
