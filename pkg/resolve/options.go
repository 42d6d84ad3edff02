package resolve

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// DefaultMaxBacktracks bounds how many times a resolution may undo a
// decision before giving up.
const DefaultMaxBacktracks = 10000

// Source delivers release metadata for the resolver. [*fetch.Fetcher] is
// the production implementation; results may arrive in any order.
type Source interface {
	FetchAll(ctx context.Context, reqs []fetch.Request) <-chan fetch.Result
}

// Options configures a [Resolver].
type Options struct {
	// AllowPrereleases admits pre-release candidates for every package.
	// Without it a package only gets pre-releases when one of its
	// constraints names a pre-release or no final release qualifies.
	AllowPrereleases bool

	// MaxBacktracks caps the number of undone decisions (default: 10000).
	MaxBacktracks int

	// PythonVersion is the target interpreter, used for requires-python
	// filtering and markers when Environment is unset (default: 3.11).
	PythonVersion string

	// Environment overrides the marker environment. The zero value selects
	// pep508.DefaultEnvironment(PythonVersion).
	Environment pep508.Environment

	// Constraints restrict the versions of packages that end up required,
	// without requiring them (pip's -c).
	Constraints []pep508.Requirement

	// Logger receives debug output for decisions and backtracks (optional).
	Logger *log.Logger
}

// WithDefaults returns a copy of Options with zero values replaced by defaults.
func (o Options) WithDefaults() Options {
	opts := o
	if opts.MaxBacktracks <= 0 {
		opts.MaxBacktracks = DefaultMaxBacktracks
	}
	if opts.Environment.PythonVersion == "" {
		opts.Environment = pep508.DefaultEnvironment(opts.PythonVersion)
	}
	if opts.PythonVersion == "" {
		opts.PythonVersion = opts.Environment.PythonVersion
	}
	if opts.Logger == nil {
		opts.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return opts
}
