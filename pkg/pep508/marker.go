package pep508

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/matzehuels/wheelwright/pkg/pep440"
)

// Marker is a parsed environment marker expression.
type Marker struct {
	expr expr
	text string
}

// ParseMarker parses a marker expression such as
// `python_version >= "3.8" and (sys_platform == "linux" or extra == "cli")`.
func ParseMarker(text string) (*Marker, error) {
	toks, err := tokenize(text)
	if err != nil {
		return nil, err
	}
	if len(toks) == 0 {
		return nil, fmt.Errorf("empty marker")
	}
	p := &markerParser{toks: toks}
	e, err := p.parseOr()
	if err != nil {
		return nil, err
	}
	if p.pos != len(p.toks) {
		return nil, fmt.Errorf("unexpected %q in marker", p.toks[p.pos].text)
	}
	return &Marker{expr: e, text: strings.TrimSpace(text)}, nil
}

// Evaluate reports whether the marker holds in env. The "extra" variable
// matches any of the given extras.
func (m *Marker) Evaluate(env Environment, extras []string) bool {
	if m == nil {
		return true
	}
	norm := make([]string, len(extras))
	for i, e := range extras {
		norm[i] = NormalizeName(e)
	}
	return m.expr.eval(env, norm)
}

// Extras returns every extra name the marker compares against.
func (m *Marker) Extras() []string {
	if m == nil {
		return nil
	}
	var out []string
	m.expr.walk(func(c *compareExpr) {
		if c.lhs.variable == "extra" && !c.rhs.isVar {
			out = append(out, NormalizeName(c.rhs.value))
		} else if c.rhs.variable == "extra" && !c.lhs.isVar {
			out = append(out, NormalizeName(c.lhs.value))
		}
	})
	return out
}

func (m *Marker) String() string {
	if m == nil {
		return ""
	}
	return m.text
}

type expr interface {
	eval(env Environment, extras []string) bool
	walk(fn func(*compareExpr))
}

type boolExpr struct {
	and         bool
	left, right expr
}

func (b *boolExpr) eval(env Environment, extras []string) bool {
	if b.and {
		return b.left.eval(env, extras) && b.right.eval(env, extras)
	}
	return b.left.eval(env, extras) || b.right.eval(env, extras)
}

func (b *boolExpr) walk(fn func(*compareExpr)) {
	b.left.walk(fn)
	b.right.walk(fn)
}

type operand struct {
	isVar    bool
	variable string
	value    string
}

func (o operand) resolve(env Environment) string {
	if !o.isVar {
		return o.value
	}
	v, _ := env.Value(o.variable)
	return v
}

type compareExpr struct {
	lhs, rhs operand
	op       string
}

func (c *compareExpr) walk(fn func(*compareExpr)) { fn(c) }

func (c *compareExpr) eval(env Environment, extras []string) bool {
	if c.lhs.variable == "extra" || c.rhs.variable == "extra" {
		return c.evalExtra(extras)
	}

	l, r := c.lhs.resolve(env), c.rhs.resolve(env)
	switch c.op {
	case "in":
		return strings.Contains(r, l)
	case "not in":
		return !strings.Contains(r, l)
	}

	if c.op != "===" && pep440.IsValid(l) && pep440.IsValid(strings.TrimSuffix(r, ".*")) {
		if con, err := pep440.ParseConstraint(c.op + r); err == nil {
			return pep440.Satisfies(pep440.MustParse(l), con)
		}
	}

	switch c.op {
	case "==", "===":
		return l == r
	case "!=":
		return l != r
	case "<":
		return l < r
	case "<=":
		return l <= r
	case ">":
		return l > r
	case ">=":
		return l >= r
	}
	return false
}

func (c *compareExpr) evalExtra(extras []string) bool {
	other := c.rhs
	if c.rhs.variable == "extra" {
		other = c.lhs
	}
	want := NormalizeName(other.value)
	found := false
	for _, e := range extras {
		if e == want {
			found = true
			break
		}
	}
	switch c.op {
	case "==", "===", "in":
		return found
	case "!=", "not in":
		return !found
	}
	return false
}

type tokenKind int

const (
	tokLParen tokenKind = iota
	tokRParen
	tokString
	tokIdent
	tokOp
)

type token struct {
	kind tokenKind
	text string
}

func tokenize(s string) ([]token, error) {
	var toks []token
	i := 0
	for i < len(s) {
		ch := s[i]
		switch {
		case ch == ' ' || ch == '\t':
			i++
		case ch == '(':
			toks = append(toks, token{tokLParen, "("})
			i++
		case ch == ')':
			toks = append(toks, token{tokRParen, ")"})
			i++
		case ch == '\'' || ch == '"':
			end := strings.IndexByte(s[i+1:], ch)
			if end < 0 {
				return nil, fmt.Errorf("unterminated string in marker %q", s)
			}
			toks = append(toks, token{tokString, s[i+1 : i+1+end]})
			i += end + 2
		case strings.ContainsRune("<>=!~", rune(ch)):
			j := i
			for j < len(s) && strings.ContainsRune("<>=!~", rune(s[j])) {
				j++
			}
			op := s[i:j]
			switch op {
			case "<", "<=", ">", ">=", "==", "!=", "~=", "===":
			default:
				return nil, fmt.Errorf("invalid operator %q in marker", op)
			}
			toks = append(toks, token{tokOp, op})
			i = j
		case isIdentChar(rune(ch)):
			j := i
			for j < len(s) && isIdentChar(rune(s[j])) {
				j++
			}
			toks = append(toks, token{tokIdent, s[i:j]})
			i = j
		default:
			return nil, fmt.Errorf("unexpected character %q in marker", ch)
		}
	}
	return toks, nil
}

func isIdentChar(r rune) bool {
	return r == '_' || r == '.' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

type markerParser struct {
	toks []token
	pos  int
}

func (p *markerParser) peek() (token, bool) {
	if p.pos >= len(p.toks) {
		return token{}, false
	}
	return p.toks[p.pos], true
}

func (p *markerParser) peekIdent(word string) bool {
	t, ok := p.peek()
	return ok && t.kind == tokIdent && t.text == word
}

func (p *markerParser) parseOr() (expr, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for p.peekIdent("or") {
		p.pos++
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{left: left, right: right}
	}
	return left, nil
}

func (p *markerParser) parseAnd() (expr, error) {
	left, err := p.parseAtom()
	if err != nil {
		return nil, err
	}
	for p.peekIdent("and") {
		p.pos++
		right, err := p.parseAtom()
		if err != nil {
			return nil, err
		}
		left = &boolExpr{and: true, left: left, right: right}
	}
	return left, nil
}

func (p *markerParser) parseAtom() (expr, error) {
	t, ok := p.peek()
	if !ok {
		return nil, fmt.Errorf("unexpected end of marker")
	}
	if t.kind == tokLParen {
		p.pos++
		e, err := p.parseOr()
		if err != nil {
			return nil, err
		}
		if t, ok := p.peek(); !ok || t.kind != tokRParen {
			return nil, fmt.Errorf("missing closing parenthesis in marker")
		}
		p.pos++
		return e, nil
	}

	lhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	op, err := p.parseOperator()
	if err != nil {
		return nil, err
	}
	rhs, err := p.parseOperand()
	if err != nil {
		return nil, err
	}
	if lhs.isVar == rhs.isVar && lhs.isVar {
		return nil, fmt.Errorf("cannot compare two variables %s and %s", lhs.variable, rhs.variable)
	}
	return &compareExpr{lhs: lhs, op: op, rhs: rhs}, nil
}

func (p *markerParser) parseOperand() (operand, error) {
	t, ok := p.peek()
	if !ok {
		return operand{}, fmt.Errorf("unexpected end of marker")
	}
	p.pos++
	switch t.kind {
	case tokString:
		return operand{value: t.text}, nil
	case tokIdent:
		name := t.text
		if !knownVariable(name) {
			return operand{}, fmt.Errorf("unknown marker variable %q", name)
		}
		return operand{isVar: true, variable: canonicalVariable(name)}, nil
	}
	return operand{}, fmt.Errorf("unexpected %q in marker", t.text)
}

func (p *markerParser) parseOperator() (string, error) {
	t, ok := p.peek()
	if !ok {
		return "", fmt.Errorf("unexpected end of marker")
	}
	switch {
	case t.kind == tokOp:
		p.pos++
		return t.text, nil
	case t.kind == tokIdent && t.text == "in":
		p.pos++
		return "in", nil
	case t.kind == tokIdent && t.text == "not":
		p.pos++
		if !p.peekIdent("in") {
			return "", fmt.Errorf("expected 'in' after 'not' in marker")
		}
		p.pos++
		return "not in", nil
	}
	return "", fmt.Errorf("expected operator, got %q", t.text)
}
