package manifest

import (
	"os"
	"slices"

	"github.com/BurntSushi/toml"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// Pyproject reads [project].dependencies from a pyproject.toml file.
// Optional dependency groups named in Extras are added as well.
type Pyproject struct {
	Extras []string
}

func (p *Pyproject) Type() string              { return "pyproject.toml" }
func (p *Pyproject) Supports(name string) bool { return name == "pyproject.toml" }

type pyprojectFile struct {
	Project struct {
		Name                 string              `toml:"name"`
		RequiresPython       string              `toml:"requires-python"`
		Dependencies         []string            `toml:"dependencies"`
		OptionalDependencies map[string][]string `toml:"optional-dependencies"`
	} `toml:"project"`
}

func (p *Pyproject) Parse(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, wwerrors.Wrap(wwerrors.ErrCodeInvalidManifest, err, "read %s", path)
	}
	var doc pyprojectFile
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, wwerrors.Wrap(wwerrors.ErrCodeInvalidManifest, err, "parse %s", path)
	}

	m := &Manifest{
		Path:           path,
		Type:           p.Type(),
		Name:           doc.Project.Name,
		RequiresPython: doc.Project.RequiresPython,
	}
	lines := slices.Clone(doc.Project.Dependencies)
	for _, x := range p.Extras {
		group, ok := doc.Project.OptionalDependencies[x]
		if !ok {
			group = doc.Project.OptionalDependencies[pep508.NormalizeName(x)]
		}
		lines = append(lines, group...)
	}
	for i, line := range lines {
		req, err := pep508.ParseRequirement(line)
		if err != nil {
			// TOML arrays carry no line numbers; report the entry index.
			m.Errors = append(m.Errors, &LineError{Path: path, Line: i + 1, Text: line, Err: err})
			continue
		}
		m.Requirements = append(m.Requirements, req)
	}
	return m, nil
}
