package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/lockfile"
	"github.com/matzehuels/wheelwright/pkg/manifest"
	"github.com/matzehuels/wheelwright/pkg/pep440"
	"github.com/matzehuels/wheelwright/pkg/pep508"
	"github.com/matzehuels/wheelwright/pkg/resolve"
	"github.com/matzehuels/wheelwright/pkg/store"
)

// resolveOpts holds the flags shared by resolve and lock.
type resolveOpts struct {
	requirementFiles []string // -r: requirements.txt or pyproject.toml
	constraintFiles  []string // -c: constraint files
	fromLock         string   // lock file whose pins become constraints
	extras           []string // optional-dependency groups of a pyproject.toml
	python           string   // target interpreter version
	pre              bool     // allow pre-releases everywhere
	refresh          bool     // bypass cached metadata
	maxBacktracks    int
	noHistory        bool
}

func addResolveFlags(cmd *cobra.Command, opts *resolveOpts) {
	f := cmd.Flags()
	f.StringArrayVarP(&opts.requirementFiles, "requirement", "r", nil, "read requirements from a requirements.txt or pyproject.toml (repeatable)")
	f.StringArrayVarP(&opts.constraintFiles, "constraint", "c", nil, "restrict versions with a constraints file (repeatable)")
	f.StringVar(&opts.fromLock, "from-lock", "", "keep the versions pinned in an existing lock file")
	f.StringSliceVar(&opts.extras, "extra", nil, "include a pyproject.toml optional-dependency group")
	f.StringVar(&opts.python, "python", "", "target Python version (default "+pep508.DefaultPythonVersion+")")
	f.BoolVar(&opts.pre, "pre", false, "allow pre-release versions")
	f.BoolVar(&opts.refresh, "refresh", false, "ignore cached metadata and query the index")
	f.IntVar(&opts.maxBacktracks, "max-backtracks", resolve.DefaultMaxBacktracks, "give up after undoing this many decisions")
	f.BoolVar(&opts.noHistory, "no-history", false, "do not record this run in the local history")
}

// resolveCommand creates the resolve command.
func (c *CLI) resolveCommand() *cobra.Command {
	var (
		opts     resolveOpts
		format   string
		output   string
		graph    string
		detailed bool
	)

	cmd := &cobra.Command{
		Use:   "resolve [requirement...]",
		Short: "Resolve requirements and print the selected versions",
		Long: `Resolve selects the highest version of every required package that is
consistent with all constraints, backtracking when a later requirement rules
out an earlier choice.

Requirements are PEP 508 strings given as arguments or read from files with -r.`,
		Example: `  wheelwright resolve "flask>=2.0" requests
  wheelwright resolve -r requirements.txt -c constraints.txt --format json
  wheelwright resolve -r pyproject.toml --extra dev --graph deps.svg
  wheelwright resolve -r requirements.txt -o deps.dot`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ropts := renderOptions{format: format, detailed: detailed}
			if output != "" && !cmd.Flags().Changed("format") {
				if f := formatFromPath(output); f != "" {
					ropts.format = f
				}
			}
			if err := validateFormat(ropts.format); err != nil {
				return err
			}
			if graph != "" && formatFromPath(graph) != formatSVG && formatFromPath(graph) != formatDOT {
				return wwerrors.New(wwerrors.ErrCodeInvalidInput, "--graph needs a .svg or .dot file, got %q", graph)
			}

			ctx := withLogger(cmd.Context(), c.Logger)
			res, python, err := c.runResolve(ctx, args, opts)
			if err != nil {
				return err
			}
			ropts.pythonVersion = python

			if graph != "" {
				gopts := ropts
				gopts.format = formatFromPath(graph)
				if err := writeResolutionFile(ctx, graph, res, gopts); err != nil {
					return err
				}
				printFile(graph)
			}
			if output != "" {
				if err := writeResolutionFile(ctx, output, res, ropts); err != nil {
					return err
				}
				printSuccess("Resolved %d packages", len(res.Packages))
				printFile(output)
				printStats(res.Stats)
				return nil
			}
			return writeResolution(ctx, c.Stdout, res, ropts)
		},
	}

	addResolveFlags(cmd, &opts)
	cmd.Flags().StringVarP(&format, "format", "f", formatText, "output format: text, json, lock, dot, svg")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout (format follows the extension)")
	cmd.Flags().StringVar(&graph, "graph", "", "also write the dependency graph to a .svg or .dot file")
	cmd.Flags().BoolVar(&detailed, "detailed", false, "include URLs and digests in graph labels")

	return cmd
}

// resolveInput is the parsed command line of a resolution.
type resolveInput struct {
	roots       []pep508.Requirement
	constraints []pep508.Requirement
	lines       []string // roots as written, for the history record
}

// gatherInput collects roots and constraints from arguments and files.
// Unparsable lines in files are reported and skipped; unparsable arguments
// are errors.
func gatherInput(args []string, opts resolveOpts) (*resolveInput, error) {
	in := &resolveInput{}
	for _, arg := range args {
		req, err := pep508.ParseRequirement(arg)
		if err != nil {
			return nil, wwerrors.Wrap(wwerrors.ErrCodeInvalidRequirement, err, "invalid requirement %q", arg)
		}
		in.roots = append(in.roots, req)
		in.lines = append(in.lines, arg)
	}

	for _, path := range opts.requirementFiles {
		m, err := loadManifest(path, opts.extras)
		if err != nil {
			return nil, err
		}
		for _, req := range m.Requirements {
			in.roots = append(in.roots, req)
			in.lines = append(in.lines, req.String())
		}
		in.constraints = append(in.constraints, m.Constraints...)
	}

	for _, path := range opts.constraintFiles {
		m, err := loadManifest(path, nil)
		if err != nil {
			return nil, err
		}
		in.constraints = append(in.constraints, m.Requirements...)
		in.constraints = append(in.constraints, m.Constraints...)
	}

	if opts.fromLock != "" {
		lock, err := lockfile.ReadFile(opts.fromLock)
		if err != nil {
			return nil, err
		}
		in.constraints = append(in.constraints, lock.Pins()...)
	}

	if len(in.roots) == 0 {
		return nil, wwerrors.New(wwerrors.ErrCodeInvalidInput, "no requirements given; pass them as arguments or with -r")
	}
	return in, nil
}

// loadManifest parses a pyproject.toml, or any other file as
// requirements.txt, and warns about each line that could not be parsed.
func loadManifest(path string, extras []string) (*manifest.Manifest, error) {
	if err := wwerrors.ValidateInputFile(path); err != nil {
		return nil, err
	}
	if _, err := os.Stat(path); err != nil {
		return nil, wwerrors.Wrap(wwerrors.ErrCodeInvalidPath, err, "read %s", path)
	}
	p, err := manifest.Detect(path, &manifest.Pyproject{Extras: extras}, &manifest.Requirements{})
	if err != nil {
		p = &manifest.Requirements{}
	}
	m, err := p.Parse(path)
	if err != nil {
		return nil, err
	}
	for _, le := range m.Errors {
		printWarning("skipping %s", le.Error())
	}
	return m, nil
}

// runResolve resolves the requirements named by args and opts, records the
// run in the local history and returns the resolution with the target
// Python version.
func (c *CLI) runResolve(ctx context.Context, args []string, opts resolveOpts) (*resolve.Resolution, string, error) {
	logger := loggerFromContext(ctx)

	if opts.python != "" && !pep440.IsValid(opts.python) {
		return nil, "", wwerrors.New(wwerrors.ErrCodeInvalidVersion, "invalid --python version %q", opts.python)
	}
	in, err := gatherInput(args, opts)
	if err != nil {
		return nil, "", err
	}

	f, closeCache, err := c.newFetcher(ctx, opts.refresh)
	if err != nil {
		return nil, "", err
	}
	defer closeCache()

	ropts := resolve.Options{
		AllowPrereleases: opts.pre,
		MaxBacktracks:    opts.maxBacktracks,
		PythonVersion:    opts.python,
		Logger:           logger,
	}.WithDefaults()
	r := resolve.New(f, ropts).WithConstraints(in.constraints)

	logger.Debug("resolving", "roots", len(in.roots), "constraints", len(in.constraints), "python", ropts.PythonVersion)
	prog := newProgress(logger)
	spin := newSpinnerWithContext(ctx, fmt.Sprintf("Resolving %d requirements...", len(in.roots)))
	if !c.global.verbose {
		spin.Start()
	}
	res, err := r.Resolve(ctx, in.roots)
	spin.Stop()

	if !opts.noHistory {
		c.recordHistory(ctx, in.lines, ropts.PythonVersion, res, err)
	}
	if err != nil {
		logger.Debug("resolution failed", "err", err, "fetcher", f.Stats())
		return nil, "", err
	}

	prog.done("resolved",
		"packages", len(res.Packages),
		"backtracks", res.Stats.Backtracks,
		"fetches", res.Stats.Fetches,
		"cache_hits", res.Stats.CacheHits)
	return res, ropts.PythonVersion, nil
}

// recordHistory stores the outcome of a run in the local history. Failures
// are logged and otherwise ignored.
func (c *CLI) recordHistory(ctx context.Context, roots []string, python string, res *resolve.Resolution, runErr error) {
	st, err := c.openHistory()
	if err != nil {
		c.Logger.Debug("history unavailable", "err", err)
		return
	}
	defer st.Close()

	id := uuid.NewString()
	if res != nil && res.RunID != "" {
		id = res.RunID
	}
	if err := st.Put(context.WithoutCancel(ctx), store.NewRecord(id, roots, python, res, runErr, 0)); err != nil {
		c.Logger.Debug("record history failed", "err", err)
	}
}
