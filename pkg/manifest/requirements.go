package manifest

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"os"
	"path/filepath"
	"strings"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// Requirements parses pip requirement files.
//
// Supported lines: requirements, comments, blank lines, backslash
// continuations, "-r FILE" includes and "-c FILE" constraint files (both
// relative to the including file). Other option lines ("-i", "--hash",
// "--index-url", ...) are ignored. Editable installs and direct URLs are
// reported as line errors.
type Requirements struct{}

func (r *Requirements) Type() string { return "requirements.txt" }

func (r *Requirements) Supports(name string) bool {
	return name == "requirements.txt" ||
		(strings.HasPrefix(name, "requirements") && strings.HasSuffix(name, ".txt")) ||
		name == "constraints.txt"
}

func (r *Requirements) Parse(path string) (*Manifest, error) {
	m := &Manifest{Path: path, Type: r.Type()}
	p := &reqParser{m: m, seen: make(map[string]bool)}
	if err := p.file(path, false); err != nil {
		return nil, err
	}
	return m, nil
}

type reqParser struct {
	m    *Manifest
	seen map[string]bool
}

func (p *reqParser) file(path string, constraint bool) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return wwerrors.Wrap(wwerrors.ErrCodeInvalidPath, err, "resolve %s", path)
	}
	if p.seen[abs] {
		return nil
	}
	p.seen[abs] = true

	f, err := os.Open(path)
	if err != nil {
		return wwerrors.Wrap(wwerrors.ErrCodeInvalidManifest, err, "open %s", path)
	}
	defer f.Close()

	dir := filepath.Dir(path)
	for ln := range logicalLines(f) {
		if ln.err != nil {
			return wwerrors.Wrap(wwerrors.ErrCodeInvalidManifest, ln.err, "read %s", path)
		}
		text := stripComment(ln.text)
		if text == "" {
			continue
		}

		if strings.HasPrefix(text, "-") {
			opt, arg := splitOption(text)
			switch opt {
			case "-r", "--requirement":
				err = p.include(dir, arg, constraint)
			case "-c", "--constraint":
				err = p.include(dir, arg, true)
			case "-e", "--editable":
				p.lineError(path, ln.n, text, fmt.Errorf("editable installs are not supported"))
			}
			if err != nil {
				return err
			}
			continue
		}

		text = stripHashes(text)
		req, perr := pep508.ParseRequirement(text)
		if perr != nil {
			p.lineError(path, ln.n, text, perr)
			continue
		}
		if constraint {
			p.m.Constraints = append(p.m.Constraints, req)
		} else {
			p.m.Requirements = append(p.m.Requirements, req)
		}
	}
	return nil
}

func (p *reqParser) include(dir, arg string, constraint bool) error {
	if arg == "" {
		return wwerrors.New(wwerrors.ErrCodeInvalidManifest, "missing file name for include")
	}
	if !filepath.IsAbs(arg) {
		arg = filepath.Join(dir, arg)
	}
	return p.file(arg, constraint)
}

func (p *reqParser) lineError(path string, n int, text string, err error) {
	p.m.Errors = append(p.m.Errors, &LineError{Path: path, Line: n, Text: text, Err: err})
}

type logicalLine struct {
	n    int // first physical line number
	text string
	err  error
}

// logicalLines joins backslash continuations and yields each logical line
// with the number of the physical line it started on.
func logicalLines(r io.Reader) iter.Seq[logicalLine] {
	return func(yield func(logicalLine) bool) {
		s := bufio.NewScanner(r)
		var buf strings.Builder
		start, n := 0, 0
		for s.Scan() {
			n++
			line := s.Text()
			if buf.Len() == 0 {
				start = n
			}
			if cont, ok := strings.CutSuffix(line, `\`); ok {
				buf.WriteString(cont)
				continue
			}
			buf.WriteString(line)
			if !yield(logicalLine{n: start, text: buf.String()}) {
				return
			}
			buf.Reset()
		}
		if buf.Len() > 0 {
			if !yield(logicalLine{n: start, text: buf.String()}) {
				return
			}
		}
		if err := s.Err(); err != nil {
			yield(logicalLine{n: n, err: err})
		}
	}
}

// stripComment removes a full-line comment or a " #" trailing comment.
func stripComment(line string) string {
	line = strings.TrimSpace(line)
	if strings.HasPrefix(line, "#") {
		return ""
	}
	if i := strings.Index(line, " #"); i >= 0 {
		line = line[:i]
	}
	if i := strings.Index(line, "\t#"); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// splitOption splits "-r file", "-rfile", "--requirement=file" and
// "--requirement file" into option and argument.
func splitOption(text string) (opt, arg string) {
	if strings.HasPrefix(text, "--") {
		if o, a, ok := strings.Cut(text, "="); ok {
			return o, strings.TrimSpace(a)
		}
		o, a, _ := strings.Cut(text, " ")
		return o, strings.TrimSpace(a)
	}
	if len(text) > 2 && text[2] != ' ' && text[2] != '\t' {
		return text[:2], strings.TrimSpace(text[2:])
	}
	o, a, _ := strings.Cut(text, " ")
	return o, strings.TrimSpace(a)
}

// stripHashes drops per-requirement "--hash=..." options.
func stripHashes(text string) string {
	if i := strings.Index(text, " --"); i >= 0 {
		return strings.TrimSpace(text[:i])
	}
	return text
}
