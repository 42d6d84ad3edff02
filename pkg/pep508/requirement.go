package pep508

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/matzehuels/wheelwright/pkg/pep440"
)

// ErrInvalidRequirement is returned when requirement text cannot be parsed.
var ErrInvalidRequirement = errors.New("invalid requirement")

// Requirement is a parsed dependency specification such as
// "requests[socks]>=2.8 ; python_version >= '3.8'".
//
// Requirements are immutable once parsed and safe for concurrent reads.
type Requirement struct {
	Name      string           // Normalized project name
	Extras    []string         // Requested extras, normalized and sorted
	Specifier pep440.Specifier // Version constraints (empty allows all)
	Marker    *Marker          // Environment marker (nil when absent)
	Raw       string           // Original text
}

var (
	nameRE      = regexp.MustCompile(`^([A-Za-z0-9](?:[A-Za-z0-9._-]*[A-Za-z0-9])?)`)
	normalizeRE = regexp.MustCompile(`[-_.]+`)
)

// NormalizeName returns the canonical form of a project name: lowercase with
// runs of "-", "_" and "." collapsed to a single "-".
func NormalizeName(name string) string {
	return normalizeRE.ReplaceAllString(strings.ToLower(strings.TrimSpace(name)), "-")
}

// ParseRequirement parses a single requirement line.
//
// Supported forms:
//
//	name
//	name>=1.0,<2
//	name (>=1.0)
//	name[extra1,extra2]~=1.4
//	name>=1.0 ; python_version < "3.10" and extra == "cli"
//
// Direct URL references ("name @ https://...") are rejected.
func ParseRequirement(text string) (Requirement, error) {
	raw := strings.TrimSpace(text)
	if raw == "" {
		return Requirement{}, fmt.Errorf("%w: empty", ErrInvalidRequirement)
	}

	body, markerText, hasMarker := strings.Cut(raw, ";")
	body = strings.TrimSpace(body)

	m := nameRE.FindStringSubmatch(body)
	if m == nil {
		return Requirement{}, fmt.Errorf("%w: %q: missing project name", ErrInvalidRequirement, raw)
	}
	req := Requirement{Name: NormalizeName(m[1]), Raw: raw}
	rest := strings.TrimSpace(body[len(m[1]):])

	if strings.HasPrefix(rest, "[") {
		end := strings.IndexByte(rest, ']')
		if end < 0 {
			return Requirement{}, fmt.Errorf("%w: %q: unterminated extras", ErrInvalidRequirement, raw)
		}
		extras, err := parseExtras(rest[1:end])
		if err != nil {
			return Requirement{}, fmt.Errorf("%w: %q: %v", ErrInvalidRequirement, raw, err)
		}
		req.Extras = extras
		rest = strings.TrimSpace(rest[end+1:])
	}

	if strings.HasPrefix(rest, "@") {
		return Requirement{}, fmt.Errorf("%w: %q: direct URL references are not supported", ErrInvalidRequirement, raw)
	}
	if strings.HasPrefix(rest, "(") {
		if !strings.HasSuffix(rest, ")") {
			return Requirement{}, fmt.Errorf("%w: %q: unbalanced parentheses", ErrInvalidRequirement, raw)
		}
		rest = strings.TrimSpace(rest[1 : len(rest)-1])
	}

	spec, err := pep440.ParseSpecifier(rest)
	if err != nil {
		return Requirement{}, fmt.Errorf("%w: %q: %v", ErrInvalidRequirement, raw, err)
	}
	req.Specifier = spec

	if hasMarker {
		mk, err := ParseMarker(markerText)
		if err != nil {
			return Requirement{}, fmt.Errorf("%w: %q: %v", ErrInvalidRequirement, raw, err)
		}
		req.Marker = mk
	}
	return req, nil
}

// MustParseRequirement is like [ParseRequirement] but panics on error.
func MustParseRequirement(text string) Requirement {
	r, err := ParseRequirement(text)
	if err != nil {
		panic(err)
	}
	return r
}

// ParseRequirements parses each line and returns the successful requirements
// along with one error per failed line. A bad line never affects the others.
func ParseRequirements(lines []string) ([]Requirement, []error) {
	var reqs []Requirement
	var errs []error
	for _, l := range lines {
		r, err := ParseRequirement(l)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		reqs = append(reqs, r)
	}
	return reqs, errs
}

func parseExtras(s string) ([]string, error) {
	var extras []string
	seen := make(map[string]bool)
	for _, e := range strings.Split(s, ",") {
		e = strings.TrimSpace(e)
		if e == "" {
			continue
		}
		if !nameRE.MatchString(e) || nameRE.FindString(e) != e {
			return nil, fmt.Errorf("invalid extra %q", e)
		}
		n := NormalizeName(e)
		if !seen[n] {
			seen[n] = true
			extras = append(extras, n)
		}
	}
	sort.Strings(extras)
	return extras, nil
}

// AppliesTo reports whether the requirement's marker holds in env with the
// given extras active. Requirements without a marker always apply.
func (r Requirement) AppliesTo(env Environment, extras []string) bool {
	if r.Marker == nil {
		return true
	}
	return r.Marker.Evaluate(env, extras)
}

// HasExtra reports whether extra was requested.
func (r Requirement) HasExtra(extra string) bool {
	n := NormalizeName(extra)
	for _, e := range r.Extras {
		if e == n {
			return true
		}
	}
	return false
}

// String returns the requirement in normalized form.
func (r Requirement) String() string {
	var b strings.Builder
	b.WriteString(r.Name)
	if len(r.Extras) > 0 {
		b.WriteByte('[')
		b.WriteString(strings.Join(r.Extras, ","))
		b.WriteByte(']')
	}
	b.WriteString(r.Specifier.String())
	if r.Marker != nil {
		b.WriteString("; ")
		b.WriteString(r.Marker.String())
	}
	return b.String()
}
