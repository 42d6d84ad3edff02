package cli

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelwright/pkg/buildinfo"
	"github.com/matzehuels/wheelwright/pkg/cache"
	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/fetch"
	"github.com/matzehuels/wheelwright/pkg/integrations/pypi"
	"github.com/matzehuels/wheelwright/pkg/metadata"
)

// =============================================================================
// Constants
// =============================================================================

const (
	// appName is the application name used for directories and display.
	appName = "wheelwright"

	envIndexURL = "WHEELWRIGHT_INDEX_URL"
	envCacheDir = "WHEELWRIGHT_CACHE_DIR"
	envRedisURL = "REDIS_URL"
	envMongoURI = "MONGODB_URI"

	redisPrefix = appName + ":"
)

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Stdout receives command output (tables, JSON, lock files).
	// Status lines and logs go to stderr.
	Stdout io.Writer

	// Index overrides the package index. Tests point it at a fake.
	Index fetch.Index

	global globalOptions
}

// globalOptions are the persistent flags shared by every command.
type globalOptions struct {
	indexURL    string
	cacheDir    string
	noCache     bool
	concurrency int
	timeout     time.Duration
	verbose     bool
}

// New creates a new CLI instance with a default logger.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Stdout: os.Stdout,
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "Wheelwright resolves Python dependencies against a package index",
		Long: `Wheelwright selects one version of every package a set of Python requirements
needs, consistent with all version constraints, and hands the result off as a
table, JSON, a lock file or a dependency graph.`,
		Version:       buildinfo.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if c.global.verbose {
				c.SetLogLevel(LogDebug)
			}
			return nil
		},
	}

	root.SetVersionTemplate(buildinfo.Template())

	pf := root.PersistentFlags()
	pf.BoolVarP(&c.global.verbose, "verbose", "v", false, "enable verbose logging")
	pf.StringVar(&c.global.indexURL, "index-url", "", "package index JSON API root (env "+envIndexURL+", default "+pypi.DefaultBaseURL+")")
	pf.StringVar(&c.global.cacheDir, "cache-dir", "", "metadata cache directory (env "+envCacheDir+")")
	pf.BoolVar(&c.global.noCache, "no-cache", false, "do not read or write the persisted metadata cache")
	pf.IntVarP(&c.global.concurrency, "concurrency", "j", fetch.DefaultConcurrency, "maximum concurrent index requests")
	pf.DurationVar(&c.global.timeout, "timeout", fetch.DefaultTimeout, "per-attempt index request timeout")

	root.AddCommand(c.resolveCommand())
	root.AddCommand(c.lockCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.historyCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.completionCommand())

	return root
}

// =============================================================================
// Factories
// =============================================================================

// index returns the configured package index client.
func (c *CLI) index() (fetch.Index, error) {
	if c.Index != nil {
		return c.Index, nil
	}
	url := c.global.indexURL
	if url == "" {
		url = os.Getenv(envIndexURL)
	}
	if url == "" {
		url = pypi.DefaultBaseURL
	}
	if err := wwerrors.ValidateIndexURL(url); err != nil {
		return nil, err
	}
	return pypi.NewClient(url, nil), nil
}

// openStore returns the persisted metadata tier: a null cache with
// --no-cache, redis when REDIS_URL is set, the file cache otherwise.
func (c *CLI) openStore(ctx context.Context) (cache.Cache, error) {
	if c.global.noCache {
		return cache.NewNullCache(), nil
	}
	if url := os.Getenv(envRedisURL); url != "" {
		rc, err := cache.NewRedisCache(ctx, url, redisPrefix)
		if err != nil {
			return nil, wwerrors.Wrap(wwerrors.ErrCodeNetwork, err, "connect to redis")
		}
		c.Logger.Debug("using redis metadata cache")
		return rc, nil
	}
	dir, err := c.metadataDir()
	if err != nil {
		c.Logger.Warn("no cache directory, caching in memory only", "err", err)
		return cache.NewNullCache(), nil
	}
	return cache.NewFileCache(dir)
}

// openCache builds the two-tier metadata cache. The caller closes the
// returned persisted tier.
func (c *CLI) openCache(ctx context.Context) (*metadata.Cache, cache.Cache, error) {
	st, err := c.openStore(ctx)
	if err != nil {
		return nil, nil, err
	}
	return metadata.NewCache(metadata.Options{Store: st, Logger: c.Logger}), st, nil
}

func (c *CLI) fetchOptions(refresh bool) fetch.Options {
	return fetch.Options{
		Concurrency: c.global.concurrency,
		Timeout:     c.global.timeout,
		Refresh:     refresh,
		Logger:      c.Logger,
	}
}

// newFetcher wires the index, the metadata cache and the fetcher. The
// returned close function releases the persisted cache tier.
func (c *CLI) newFetcher(ctx context.Context, refresh bool) (*fetch.Fetcher, func(), error) {
	idx, err := c.index()
	if err != nil {
		return nil, nil, err
	}
	mc, st, err := c.openCache(ctx)
	if err != nil {
		return nil, nil, err
	}
	f, err := fetch.New(idx, mc, c.fetchOptions(refresh))
	if err != nil {
		_ = st.Close()
		return nil, nil, err
	}
	return f, func() { _ = st.Close() }, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache root: --cache-dir, then WHEELWRIGHT_CACHE_DIR,
// then the XDG location (~/.cache/wheelwright/).
func (c *CLI) cacheDir() (string, error) {
	if c.global.cacheDir != "" {
		return c.global.cacheDir, nil
	}
	return cacheDir()
}

func cacheDir() (string, error) {
	if dir := os.Getenv(envCacheDir); dir != "" {
		return dir, nil
	}
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}

// metadataDir holds the persisted metadata tier.
func (c *CLI) metadataDir() (string, error) {
	dir, err := c.cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "metadata"), nil
}

// historyDir holds the local resolution history.
func (c *CLI) historyDir() (string, error) {
	dir, err := c.cacheDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "history"), nil
}
