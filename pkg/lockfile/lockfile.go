package lockfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/opencontainers/go-digest"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/pep440"
	"github.com/matzehuels/wheelwright/pkg/pep508"
	"github.com/matzehuels/wheelwright/pkg/resolve"
)

// Version is the lock file format version written by [Lock.Write].
const Version = "1.0"

// DefaultName is the conventional lock file name.
const DefaultName = "wheelwright.lock"

// Lock is a resolved, reproducible set of packages.
type Lock struct {
	LockVersion   string    `toml:"lock-version"`
	CreatedBy     string    `toml:"created-by,omitempty"`
	GeneratedAt   time.Time `toml:"generated-at"`
	PythonVersion string    `toml:"python-version"`
	RunID         string    `toml:"run-id,omitempty"`
	Requirements  []string  `toml:"requirements"`
	Packages      []Package `toml:"packages"`
}

// Package is one locked release.
type Package struct {
	Name         string   `toml:"name"`
	Version      string   `toml:"version"`
	Dependencies []string `toml:"dependencies,omitempty"`
	URL          string   `toml:"url,omitempty"`
	Filename     string   `toml:"filename,omitempty"`
	Hash         string   `toml:"hash,omitempty"`
}

// FromResolution builds a lock from res. Packages are sorted by name.
func FromResolution(res *resolve.Resolution, pythonVersion, createdBy string, now time.Time) *Lock {
	l := &Lock{
		LockVersion:   Version,
		CreatedBy:     createdBy,
		GeneratedAt:   now.UTC().Truncate(time.Second),
		PythonVersion: pythonVersion,
		RunID:         res.RunID,
	}
	for _, r := range res.Roots {
		l.Requirements = append(l.Requirements, r.String())
	}
	for _, name := range res.Names() {
		n := res.Packages[name]
		p := Package{
			Name:         n.Name,
			Version:      n.Version,
			Dependencies: slices.Clone(n.Dependencies),
			URL:          n.Release.URL,
			Filename:     n.Release.Filename,
		}
		if n.Release.Digest != "" {
			p.Hash = n.Release.Digest.String()
		}
		l.Packages = append(l.Packages, p)
	}
	return l
}

// Write encodes l as TOML.
func (l *Lock) Write(w io.Writer) error {
	if err := toml.NewEncoder(w).Encode(l); err != nil {
		return fmt.Errorf("encode lock file: %w", err)
	}
	return nil
}

// WriteFile writes l to path, replacing any existing file atomically.
func (l *Lock) WriteFile(path string) error {
	var buf bytes.Buffer
	if err := l.Write(&buf); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".lock-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// Read decodes and validates a lock file.
func Read(r io.Reader) (*Lock, error) {
	var l Lock
	if _, err := toml.NewDecoder(r).Decode(&l); err != nil {
		return nil, wwerrors.Wrap(wwerrors.ErrCodeInvalidManifest, err, "decode lock file")
	}
	if err := l.Validate(); err != nil {
		return nil, err
	}
	return &l, nil
}

// ReadFile reads the lock file at path.
func ReadFile(path string) (*Lock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wwerrors.Wrap(wwerrors.ErrCodeInvalidPath, err, "open lock file")
	}
	defer f.Close()
	return Read(f)
}

// Validate checks the format version, package versions, hashes and that
// every dependency is itself locked.
func (l *Lock) Validate() error {
	major, _, _ := strings.Cut(l.LockVersion, ".")
	if want, _, _ := strings.Cut(Version, "."); major != want {
		return wwerrors.New(wwerrors.ErrCodeInvalidManifest, "unsupported lock-version %q", l.LockVersion)
	}
	locked := make(map[string]bool, len(l.Packages))
	for _, p := range l.Packages {
		if p.Name == "" {
			return wwerrors.New(wwerrors.ErrCodeInvalidManifest, "package without a name")
		}
		if locked[p.Name] {
			return wwerrors.New(wwerrors.ErrCodeInvalidManifest, "%s is locked twice", p.Name)
		}
		locked[p.Name] = true
		if p.Version == "" {
			return wwerrors.New(wwerrors.ErrCodeInvalidVersion, "%s has no version", p.Name)
		}
		if p.Hash != "" {
			if _, err := digest.Parse(p.Hash); err != nil {
				return wwerrors.Wrap(wwerrors.ErrCodeInvalidManifest, err, "%s: hash", p.Name)
			}
		}
	}
	for _, p := range l.Packages {
		for _, d := range p.Dependencies {
			if !locked[d] {
				return wwerrors.New(wwerrors.ErrCodeInvalidManifest, "%s depends on %s, which is not locked", p.Name, d)
			}
		}
	}
	return nil
}

// Versions returns the locked name → version map.
func (l *Lock) Versions() map[string]string {
	out := make(map[string]string, len(l.Packages))
	for _, p := range l.Packages {
		out[p.Name] = p.Version
	}
	return out
}

// Pins returns one "name==version" requirement per locked package, for use
// as resolver constraints. Versions that are not valid PEP 440 are pinned
// with "===".
func (l *Lock) Pins() []pep508.Requirement {
	pins := make([]pep508.Requirement, 0, len(l.Packages))
	for _, p := range l.Packages {
		op := "=="
		if !pep440.IsValid(p.Version) {
			op = "==="
		}
		req, err := pep508.ParseRequirement(p.Name + op + p.Version)
		if err != nil {
			continue
		}
		pins = append(pins, req)
	}
	return pins
}

// Package returns the locked entry for name.
func (l *Lock) Package(name string) (Package, bool) {
	name = pep508.NormalizeName(name)
	for _, p := range l.Packages {
		if p.Name == name {
			return p, true
		}
	}
	return Package{}, false
}
