package cli

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/wheelwright/pkg/buildinfo"
	"github.com/matzehuels/wheelwright/pkg/depgraph"
	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/lockfile"
	"github.com/matzehuels/wheelwright/pkg/resolve"
)

const (
	formatText = "text" // table of selected versions
	formatJSON = "json" // packages, install order and stats
	formatLock = "lock" // TOML lock file
	formatDOT  = "dot"  // Graphviz source of the dependency graph
	formatSVG  = "svg"  // rendered dependency graph
)

var outputFormats = []string{formatText, formatJSON, formatLock, formatDOT, formatSVG}

// renderOptions controls how a resolution is written.
type renderOptions struct {
	format        string
	pythonVersion string
	detailed      bool // graph labels carry URLs and digests
	now           func() time.Time
}

func validateFormat(format string) error {
	if slices.Contains(outputFormats, format) {
		return nil
	}
	return wwerrors.New(wwerrors.ErrCodeInvalidInput,
		"unknown format %q (want one of %s)", format, strings.Join(outputFormats, ", "))
}

// formatFromPath infers an output format from a file extension. Unknown
// extensions yield "".
func formatFromPath(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON
	case ".lock", ".toml":
		return formatLock
	case ".dot", ".gv":
		return formatDOT
	case ".svg":
		return formatSVG
	case ".txt":
		return formatText
	}
	return ""
}

// writeResolution writes res to w in opts.format.
func writeResolution(ctx context.Context, w io.Writer, res *resolve.Resolution, opts renderOptions) error {
	switch opts.format {
	case formatText, "":
		return writeTable(w, res)
	case formatJSON:
		return writeJSON(w, res, opts.pythonVersion)
	case formatLock:
		now := time.Now
		if opts.now != nil {
			now = opts.now
		}
		lock := lockfile.FromResolution(res, opts.pythonVersion, appName+" "+buildinfo.Version, now())
		return lock.Write(w)
	case formatDOT:
		_, err := io.WriteString(w, depgraph.ToDOT(res.Graph(), depgraph.DOTOptions{Detailed: opts.detailed}))
		return err
	case formatSVG:
		svg, err := depgraph.RenderSVG(ctx, depgraph.ToDOT(res.Graph(), depgraph.DOTOptions{Detailed: opts.detailed}))
		if err != nil {
			return wwerrors.Wrap(wwerrors.ErrCodeInternal, err, "render svg")
		}
		_, err = w.Write(svg)
		return err
	}
	return validateFormat(opts.format)
}

// writeResolutionFile writes res to path, replacing any existing file only
// once the output is complete.
func writeResolutionFile(ctx context.Context, path string, res *resolve.Resolution, opts renderOptions) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return wwerrors.Wrap(wwerrors.ErrCodeInvalidPath, err, "create %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := writeResolution(ctx, tmp, res, opts); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// =============================================================================
// Text
// =============================================================================

var (
	styleTableHeader = lipgloss.NewStyle().Bold(true).Foreground(colorCyan).Padding(0, 1)
	styleTableCell   = lipgloss.NewStyle().Padding(0, 1)
	styleTableDim    = styleTableCell.Foreground(colorGray)
)

func writeTable(w io.Writer, res *resolve.Resolution) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("PACKAGE", "VERSION", "REQUIRED BY").
		StyleFunc(func(row, col int) lipgloss.Style {
			switch {
			case row == table.HeaderRow:
				return styleTableHeader
			case col == 2:
				return styleTableDim
			}
			return styleTableCell
		})
	for _, name := range res.Names() {
		n := res.Packages[name]
		t.Row(name, n.Version, strings.Join(requiredBy(n), ", "))
	}
	_, err := io.WriteString(w, t.Render()+"\n")
	return err
}

// requiredBy lists the parents of n, with "(root)" first for root
// packages.
func requiredBy(n *resolve.Node) []string {
	var parents []string
	for _, e := range n.RequiredBy {
		if e.Parent != "" && !slices.Contains(parents, e.Parent) {
			parents = append(parents, e.Parent)
		}
	}
	slices.Sort(parents)
	if n.Root {
		parents = append([]string{"(root)"}, parents...)
	}
	return parents
}

// =============================================================================
// JSON
// =============================================================================

type jsonPackage struct {
	Name         string   `json:"name"`
	Version      string   `json:"version"`
	Root         bool     `json:"root,omitempty"`
	Extras       []string `json:"extras,omitempty"`
	Dependencies []string `json:"dependencies,omitempty"`
	RequiredBy   []string `json:"required_by,omitempty"`
	URL          string   `json:"url,omitempty"`
	Digest       string   `json:"digest,omitempty"`
}

type jsonResolution struct {
	RunID         string            `json:"run_id"`
	PythonVersion string            `json:"python_version,omitempty"`
	Requirements  []string          `json:"requirements"`
	Packages      []jsonPackage     `json:"packages"`
	InstallOrder  []resolve.Install `json:"install_order"`
	Stats         resolve.Stats     `json:"stats"`
}

func writeJSON(w io.Writer, res *resolve.Resolution, pythonVersion string) error {
	out := jsonResolution{
		RunID:         res.RunID,
		PythonVersion: pythonVersion,
		Requirements:  make([]string, 0, len(res.Roots)),
		Packages:      make([]jsonPackage, 0, len(res.Packages)),
		InstallOrder:  res.Plan(),
		Stats:         res.Stats,
	}
	for _, r := range res.Roots {
		out.Requirements = append(out.Requirements, r.String())
	}
	for _, name := range res.Names() {
		n := res.Packages[name]
		parents := requiredBy(n)
		if n.Root {
			parents = parents[1:]
		}
		out.Packages = append(out.Packages, jsonPackage{
			Name:         n.Name,
			Version:      n.Version,
			Root:         n.Root,
			Extras:       n.Extras,
			Dependencies: n.Dependencies,
			RequiredBy:   parents,
			URL:          n.Release.URL,
			Digest:       n.Release.Digest.String(),
		})
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
