package cli

import (
	"context"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelwright/internal/api"
	"github.com/matzehuels/wheelwright/internal/metrics"
	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/resolve"
	"github.com/matzehuels/wheelwright/pkg/store"
)

// serveOpts holds the flags of the serve command.
type serveOpts struct {
	addr           string
	recordTTL      time.Duration
	resolveTimeout time.Duration
	mongoDB        string
	noMetrics      bool
}

// serveCommand runs the HTTP resolution API.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the resolution API over HTTP",
		Long: `Serve exposes resolution over HTTP (POST /v1/resolve) with the same metadata
cache the CLI uses. Each run is recorded and can be read back under
/v1/resolutions/{id}. Prometheus metrics are served on /metrics.

Records are kept in memory unless ` + envMongoURI + ` names a MongoDB deployment.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runServe(cmd.Context(), opts)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.addr, "addr", api.DefaultAddr, "listen address")
	f.DurationVar(&opts.recordTTL, "record-ttl", store.DefaultTTL, "how long resolution records are kept")
	f.DurationVar(&opts.resolveTimeout, "resolve-timeout", api.DefaultResolveTimeout, "deadline of a single resolution")
	f.StringVar(&opts.mongoDB, "mongo-database", store.DefaultMongoDatabase, "MongoDB database for resolution records")
	f.BoolVar(&opts.noMetrics, "no-metrics", false, "do not serve /metrics")

	return cmd
}

func (c *CLI) openRecordStore(ctx context.Context, database string) (store.Store, error) {
	uri := os.Getenv(envMongoURI)
	if uri == "" {
		return store.NewMemoryStore(), nil
	}
	ms, err := store.NewMongoStore(ctx, uri, database, store.DefaultMongoCollection)
	if err != nil {
		return nil, wwerrors.Wrap(wwerrors.ErrCodeNetwork, err, "connect to mongodb")
	}
	c.Logger.Info("recording resolutions in mongodb", "database", database)
	return ms, nil
}

func (c *CLI) runServe(ctx context.Context, opts serveOpts) error {
	idx, err := c.index()
	if err != nil {
		return err
	}
	mc, st, err := c.openCache(ctx)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := c.openRecordStore(ctx, opts.mongoDB)
	if err != nil {
		return err
	}
	defer records.Close()

	var m *metrics.Metrics
	if !opts.noMetrics {
		m = metrics.New()
		m.Install()
	}

	srv, err := api.New(api.Config{
		Addr:           opts.addr,
		Index:          idx,
		Cache:          mc,
		Fetch:          c.fetchOptions(false),
		Store:          records,
		RecordTTL:      opts.recordTTL,
		Metrics:        m,
		Resolve:        resolve.Options{Logger: c.Logger},
		ResolveTimeout: opts.resolveTimeout,
		Logger:         c.Logger,
	})
	if err != nil {
		return err
	}
	printInfo("Serving on %s", StyleHighlight.Render("http://"+opts.addr))
	return srv.Run(ctx)
}
