package pep440

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidConstraint is returned when a version constraint cannot be parsed.
var ErrInvalidConstraint = errors.New("invalid constraint")

// Operator is a version comparison operator.
type Operator string

const (
	OpEqual        Operator = "=="
	OpNotEqual     Operator = "!="
	OpLess         Operator = "<"
	OpLessEqual    Operator = "<="
	OpGreater      Operator = ">"
	OpGreaterEqual Operator = ">="
	OpCompatible   Operator = "~="
	OpArbitrary    Operator = "==="
)

// operators is ordered longest first so prefixes don't shadow longer forms.
var operators = []Operator{
	OpArbitrary, OpCompatible, OpEqual, OpNotEqual,
	OpLessEqual, OpGreaterEqual, OpLess, OpGreater,
}

// Constraint is a single operator/version pair such as ">=1.2" or "==1.4.*".
//
// Wildcard is only set for "==" and "!=" with a trailing ".*"; in that case
// Version holds the prefix. Raw is the version text as written, used by the
// arbitrary equality operator.
type Constraint struct {
	Op       Operator
	Version  Version
	Wildcard bool
	Raw      string
}

// ParseConstraint parses a single constraint. Surrounding whitespace and
// whitespace between operator and version are ignored.
func ParseConstraint(text string) (Constraint, error) {
	s := strings.TrimSpace(text)
	var op Operator
	for _, o := range operators {
		if strings.HasPrefix(s, string(o)) {
			op = o
			break
		}
	}
	if op == "" {
		return Constraint{}, fmt.Errorf("%w: %q: missing operator", ErrInvalidConstraint, text)
	}

	raw := strings.TrimSpace(s[len(op):])
	if raw == "" {
		return Constraint{}, fmt.Errorf("%w: %q: missing version", ErrInvalidConstraint, text)
	}
	c := Constraint{Op: op, Raw: raw}

	vtext := raw
	if strings.HasSuffix(raw, ".*") {
		if op != OpEqual && op != OpNotEqual {
			return Constraint{}, fmt.Errorf("%w: %q: wildcard only valid with == and !=", ErrInvalidConstraint, text)
		}
		c.Wildcard = true
		vtext = strings.TrimSuffix(raw, ".*")
	}

	if op == OpArbitrary {
		// === compares raw text; a parsed form is still kept for display.
		c.Version, _ = Parse(vtext)
		return c, nil
	}

	v, err := Parse(vtext)
	if err != nil {
		return Constraint{}, fmt.Errorf("%w: %q: %v", ErrInvalidConstraint, text, err)
	}
	if op == OpCompatible && len(v.Release) < 2 {
		return Constraint{}, fmt.Errorf("%w: %q: ~= needs at least two release segments", ErrInvalidConstraint, text)
	}
	c.Version = v
	return c, nil
}

// String returns the constraint in canonical form.
func (c Constraint) String() string {
	if c.Op == OpArbitrary {
		return string(c.Op) + c.Raw
	}
	if c.Wildcard {
		return string(c.Op) + c.Version.String() + ".*"
	}
	return string(c.Op) + c.Version.String()
}

// Satisfies reports whether v satisfies c.
//
// Exclusive comparisons follow PEP 440: "<V" does not admit pre-releases of
// V unless V is itself a pre-release, and ">V" does not admit post-releases
// of V unless V is itself a post-release.
func Satisfies(v Version, c Constraint) bool {
	switch c.Op {
	case OpEqual:
		if c.Wildcard {
			return prefixMatch(v, c.Version)
		}
		if c.Version.Local != "" && v.Local != c.Version.Local {
			return false
		}
		return Compare(v, c.Version) == 0
	case OpNotEqual:
		eq := c
		eq.Op = OpEqual
		return !Satisfies(v, eq)
	case OpLess:
		if Compare(v, c.Version) >= 0 {
			return false
		}
		if !c.Version.IsPrerelease() && v.IsPrerelease() && sameBase(v, c.Version) {
			return false
		}
		return true
	case OpLessEqual:
		return Compare(v, c.Version) <= 0
	case OpGreater:
		if Compare(v, c.Version) <= 0 {
			return false
		}
		if !c.Version.IsPostrelease() && v.IsPostrelease() && sameBase(v, c.Version) {
			return false
		}
		return true
	case OpGreaterEqual:
		return Compare(v, c.Version) >= 0
	case OpCompatible:
		if Compare(v, c.Version) < 0 {
			return false
		}
		prefix := c.Version.Base()
		prefix.Release = c.Version.Release[:len(c.Version.Release)-1]
		return prefixMatch(v, prefix)
	case OpArbitrary:
		return strings.EqualFold(v.String(), c.Raw)
	}
	return false
}

// prefixMatch implements "==prefix.*": same epoch and the release segments
// of v (zero padded) start with the prefix segments.
func prefixMatch(v, prefix Version) bool {
	if v.Epoch != prefix.Epoch {
		return false
	}
	for i, seg := range prefix.Release {
		if segment(v.Release, i) != seg {
			return false
		}
	}
	return true
}

func sameBase(a, b Version) bool {
	return Compare(a.Base(), b.Base()) == 0
}

// Specifier is a conjunction of constraints. The zero value allows every
// version.
type Specifier []Constraint

// ParseSpecifier parses a comma-separated list of constraints such as
// ">=1.0,<2.0". Empty input yields an empty Specifier.
func ParseSpecifier(text string) (Specifier, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}
	var spec Specifier
	for _, part := range strings.Split(text, ",") {
		c, err := ParseConstraint(part)
		if err != nil {
			return nil, err
		}
		spec = append(spec, c)
	}
	return spec, nil
}

// MustParseSpecifier is like [ParseSpecifier] but panics on error.
func MustParseSpecifier(text string) Specifier {
	s, err := ParseSpecifier(text)
	if err != nil {
		panic(err)
	}
	return s
}

// Allows reports whether v satisfies every constraint in s.
func (s Specifier) Allows(v Version) bool {
	for _, c := range s {
		if !Satisfies(v, c) {
			return false
		}
	}
	return true
}

// HasPrerelease reports whether any inclusive constraint names a pre-release
// version, which opts the package into pre-release candidates.
func (s Specifier) HasPrerelease() bool {
	for _, c := range s {
		if c.Op != OpNotEqual && c.Version.IsPrerelease() {
			return true
		}
	}
	return false
}

// Pins reports whether s contains an exact pin (== without wildcard, or ===).
func (s Specifier) Pins() bool {
	for _, c := range s {
		if c.Op == OpArbitrary || (c.Op == OpEqual && !c.Wildcard) {
			return true
		}
	}
	return false
}

// And returns the conjunction of s and other. Neither input is modified.
func (s Specifier) And(other Specifier) Specifier {
	out := make(Specifier, 0, len(s)+len(other))
	out = append(out, s...)
	return append(out, other...)
}

func (s Specifier) String() string {
	parts := make([]string, len(s))
	for i, c := range s {
		parts[i] = c.String()
	}
	return strings.Join(parts, ",")
}
