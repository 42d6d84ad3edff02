package pep440

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrInvalidVersion is returned by [Parse] when the input is empty or
// contains only whitespace. Any other text is parsed leniently.
var ErrInvalidVersion = errors.New("invalid version")

// PreKind identifies a pre-release phase. The zero value means the version
// is not a pre-release.
type PreKind int

const (
	PreNone PreKind = iota
	PreAlpha
	PreBeta
	PreRC
)

func (k PreKind) String() string {
	switch k {
	case PreAlpha:
		return "a"
	case PreBeta:
		return "b"
	case PreRC:
		return "rc"
	default:
		return ""
	}
}

// Version is a parsed Python package version.
//
// Post and Dev are -1 when absent. Local holds the normalized local label
// (the part after "+") and never takes part in ordering.
//
// Version values are immutable by convention: the Release slice must not be
// modified after parsing. A Version is safe for concurrent reads.
type Version struct {
	Epoch   int
	Release []int
	Pre     PreKind
	PreNum  int
	Post    int
	Dev     int
	Local   string
	lenient bool
}

var versionRE = regexp.MustCompile(`(?i)^\s*v?` +
	`(?:(?P<epoch>[0-9]+)!)?` +
	`(?P<release>[0-9]+(?:\.[0-9]+)*)` +
	`(?:[-_.]?(?P<pre_l>alpha|beta|preview|pre|rc|a|b|c)[-_.]?(?P<pre_n>[0-9]+)?)?` +
	`(?:(?:-(?P<post_n1>[0-9]+))|(?:[-_.]?(?P<post_l>post|rev|r)[-_.]?(?P<post_n2>[0-9]+)?))?` +
	`(?:[-_.]?(?P<dev_l>dev)[-_.]?(?P<dev_n>[0-9]+)?)?` +
	`(?:\+(?P<local>[a-z0-9]+(?:[-_.][a-z0-9]+)*))?` +
	`\s*$`)

var (
	reEpoch   = versionRE.SubexpIndex("epoch")
	reRelease = versionRE.SubexpIndex("release")
	rePreL    = versionRE.SubexpIndex("pre_l")
	rePreN    = versionRE.SubexpIndex("pre_n")
	rePostN1  = versionRE.SubexpIndex("post_n1")
	rePostL   = versionRE.SubexpIndex("post_l")
	rePostN2  = versionRE.SubexpIndex("post_n2")
	reDevL    = versionRE.SubexpIndex("dev_l")
	reDevN    = versionRE.SubexpIndex("dev_n")
	reLocal   = versionRE.SubexpIndex("local")
	digitsRE  = regexp.MustCompile(`[0-9]+`)
)

// Parse parses a version string.
//
// Well-formed PEP 440 versions are parsed exactly, including the usual
// spelling variants (alpha, beta, c, pre, preview, rev, r, implicit post
// releases such as "1.0-1"). Text that does not match the grammar is parsed
// leniently: every run of digits before an optional "+" becomes a release
// segment, mirroring what real index data looks like. Only empty input
// fails, with [ErrInvalidVersion].
func Parse(text string) (Version, error) {
	s := strings.TrimSpace(text)
	if s == "" {
		return Version{}, ErrInvalidVersion
	}

	m := versionRE.FindStringSubmatch(s)
	if m == nil {
		return parseLenient(s), nil
	}

	v := Version{Post: -1, Dev: -1}
	v.Epoch = atoi(m[reEpoch])
	for _, seg := range strings.Split(m[reRelease], ".") {
		v.Release = append(v.Release, atoi(seg))
	}

	if l := strings.ToLower(m[rePreL]); l != "" {
		v.Pre = preKind(l)
		v.PreNum = atoi(m[rePreN])
	}
	switch {
	case m[rePostN1] != "":
		v.Post = atoi(m[rePostN1])
	case m[rePostL] != "":
		v.Post = atoi(m[rePostN2])
	}
	if m[reDevL] != "" {
		v.Dev = atoi(m[reDevN])
	}
	if l := m[reLocal]; l != "" {
		v.Local = normalizeLocal(l)
	}
	return v, nil
}

// MustParse is like [Parse] but panics on error. Intended for tests and
// package-level constants.
func MustParse(text string) Version {
	v, err := Parse(text)
	if err != nil {
		panic(err)
	}
	return v
}

// IsValid reports whether text is a well-formed PEP 440 version, that is,
// whether [Parse] would accept it without falling back to lenient parsing.
func IsValid(text string) bool {
	return versionRE.MatchString(text)
}

func parseLenient(s string) Version {
	v := Version{Post: -1, Dev: -1, lenient: true}
	public, local, _ := strings.Cut(s, "+")
	for _, d := range digitsRE.FindAllString(public, -1) {
		v.Release = append(v.Release, atoi(d))
	}
	if len(v.Release) == 0 {
		v.Release = []int{0}
	}
	if local != "" {
		v.Local = normalizeLocal(local)
	}
	return v
}

func preKind(l string) PreKind {
	switch l {
	case "a", "alpha":
		return PreAlpha
	case "b", "beta":
		return PreBeta
	default:
		return PreRC
	}
}

func normalizeLocal(l string) string {
	return strings.Map(func(r rune) rune {
		if r == '-' || r == '_' {
			return '.'
		}
		return r
	}, strings.ToLower(l))
}

// atoi parses a run of digits, saturating instead of failing on overflow.
func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return math.MaxInt
	}
	return n
}

// IsPrerelease reports whether v is a pre-release or a development release.
func (v Version) IsPrerelease() bool { return v.Pre != PreNone || v.Dev >= 0 }

// IsPostrelease reports whether v carries a post-release segment.
func (v Version) IsPostrelease() bool { return v.Post >= 0 }

// IsLenient reports whether v was produced by the lenient fallback parser.
func (v Version) IsLenient() bool { return v.lenient }

// Base returns v without pre, post, dev and local segments.
func (v Version) Base() Version {
	return Version{Epoch: v.Epoch, Release: v.Release, Post: -1, Dev: -1}
}

// String returns the canonical form of v. Parsing the result yields a
// Version equal to v for every well-formed input.
func (v Version) String() string {
	var b strings.Builder
	if v.Epoch != 0 {
		b.WriteString(strconv.Itoa(v.Epoch))
		b.WriteByte('!')
	}
	for i, seg := range v.Release {
		if i > 0 {
			b.WriteByte('.')
		}
		b.WriteString(strconv.Itoa(seg))
	}
	if v.Pre != PreNone {
		b.WriteString(v.Pre.String())
		b.WriteString(strconv.Itoa(v.PreNum))
	}
	if v.Post >= 0 {
		b.WriteString(".post")
		b.WriteString(strconv.Itoa(v.Post))
	}
	if v.Dev >= 0 {
		b.WriteString(".dev")
		b.WriteString(strconv.Itoa(v.Dev))
	}
	if v.Local != "" {
		b.WriteByte('+')
		b.WriteString(v.Local)
	}
	return b.String()
}

// Equal reports whether a and b are the same version, local label included.
func Equal(a, b Version) bool {
	return Compare(a, b) == 0 && a.Local == b.Local
}

// Compare returns -1, 0 or +1 depending on whether a sorts before, equal to,
// or after b.
//
// The order is total. Epochs compare first, then release segments
// component-wise with missing segments treated as zero (1.0 == 1.0.0).
// Development releases sort before pre-releases, which sort before the final
// release, which sorts before post-releases. Local labels are ignored.
func Compare(a, b Version) int {
	if c := cmpInt(a.Epoch, b.Epoch); c != 0 {
		return c
	}
	n := max(len(a.Release), len(b.Release))
	for i := range n {
		if c := cmpInt(segment(a.Release, i), segment(b.Release, i)); c != 0 {
			return c
		}
	}
	ar, an := a.preKey()
	br, bn := b.preKey()
	if c := cmpInt(ar, br); c != 0 {
		return c
	}
	if c := cmpInt(an, bn); c != 0 {
		return c
	}
	if c := cmpInt(a.Post, b.Post); c != 0 {
		return c
	}
	return cmpInt(a.devKey(), b.devKey())
}

// preKey ranks the pre-release phase. A bare dev release (1.0.dev0) sorts
// before any pre-release of the same release; no pre-release sorts last.
func (v Version) preKey() (rank, num int) {
	switch {
	case v.Pre == PreNone && v.Post < 0 && v.Dev >= 0:
		return -1, 0
	case v.Pre == PreNone:
		return math.MaxInt, 0
	default:
		return int(v.Pre), v.PreNum
	}
}

func (v Version) devKey() int {
	if v.Dev < 0 {
		return math.MaxInt
	}
	return v.Dev
}

func segment(rel []int, i int) int {
	if i < len(rel) {
		return rel[i]
	}
	return 0
}

func cmpInt(a, b int) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
