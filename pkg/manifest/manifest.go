package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// Manifest is the set of root requirements read from a project file.
type Manifest struct {
	Path           string               // File the manifest was read from
	Type           string               // Parser type, e.g. "requirements.txt"
	Name           string               // Project name, when the format declares one
	RequiresPython string               // Declared requires-python, if any
	Requirements   []pep508.Requirement // Root requirements in file order
	Constraints    []pep508.Requirement // Constraints from -c files
	Errors         []*LineError         // Lines that could not be parsed
}

// LineError is a single unparsable line. It never aborts the rest of the
// file.
type LineError struct {
	Path string
	Line int
	Text string
	Err  error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("%s:%d: %v", e.Path, e.Line, e.Err)
}

func (e *LineError) Unwrap() error { return e.Err }

// Code implements errors.Coder.
func (e *LineError) Code() wwerrors.Code { return wwerrors.ErrCodeInvalidRequirement }

// Parser reads one manifest format.
type Parser interface {
	// Parse reads the manifest at path.
	Parse(path string) (*Manifest, error)
	// Supports reports whether the parser handles the given base file name.
	Supports(filename string) bool
	// Type returns the manifest type identifier.
	Type() string
}

// Parsers returns the built-in parsers in detection order.
func Parsers() []Parser {
	return []Parser{&Pyproject{}, &Requirements{}}
}

// Detect returns the first parser that supports the file's base name.
func Detect(path string, parsers ...Parser) (Parser, error) {
	if len(parsers) == 0 {
		parsers = Parsers()
	}
	name := filepath.Base(path)
	for _, p := range parsers {
		if p.Supports(name) {
			return p, nil
		}
	}
	return nil, wwerrors.New(wwerrors.ErrCodeInvalidManifest, "unsupported manifest: %s", name)
}

// Load detects the manifest type of path and parses it.
func Load(path string) (*Manifest, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, wwerrors.Wrap(wwerrors.ErrCodeInvalidPath, err, "manifest %s", path)
	}
	p, err := Detect(path)
	if err != nil {
		return nil, err
	}
	return p.Parse(path)
}
