package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelwright/pkg/cache"
	wwerrors "github.com/matzehuels/wheelwright/pkg/errors"
	"github.com/matzehuels/wheelwright/pkg/metadata"
	"github.com/matzehuels/wheelwright/pkg/pep508"
)

// cacheCommand creates the cache management command.
func (c *CLI) cacheCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Manage the package metadata cache",
	}

	cmd.AddCommand(c.cachePathCommand())
	cmd.AddCommand(c.cacheStatsCommand())
	cmd.AddCommand(c.cacheClearCommand())
	cmd.AddCommand(c.cacheInvalidateCommand())

	return cmd
}

// backendName describes where persisted metadata lives.
func (c *CLI) backendName(st cache.Cache) string {
	switch st := st.(type) {
	case *cache.FileCache:
		return st.Dir()
	case *cache.RedisCache:
		return "redis (" + envRedisURL + ")"
	}
	return "disabled"
}

func (c *CLI) cachePathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path",
		Short: "Print the metadata cache directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := c.metadataDir()
			if err != nil {
				return fmt.Errorf("get cache dir: %w", err)
			}
			fmt.Fprintln(c.Stdout, dir)
			return nil
		},
	}
}

func (c *CLI) cacheStatsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show the number and size of cached metadata entries",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			mc, st, err := c.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			u, err := mc.Usage(cmd.Context())
			if err != nil {
				return wwerrors.Wrap(wwerrors.ErrCodeInternal, err, "read cache usage")
			}
			printKeyValue("Backend", c.backendName(st))
			printKeyValue("Entries", fmt.Sprintf("%d", u.Entries))
			printKeyValue("Size", formatBytes(u.Bytes))
			printKeyValue("TTL", metadata.DefaultTTL.String())
			return nil
		},
	}
}

func (c *CLI) cacheClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached metadata entry",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if dir, err := c.metadataDir(); err == nil && os.Getenv(envRedisURL) == "" {
				if _, err := os.Stat(dir); os.IsNotExist(err) {
					printInfo("Cache is empty")
					return nil
				}
			}

			mc, st, err := c.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			u, _ := mc.Usage(cmd.Context())
			if err := mc.Clear(cmd.Context()); err != nil {
				return wwerrors.Wrap(wwerrors.ErrCodeInternal, err, "clear cache")
			}
			printSuccess("Cleared %d cached entries", u.Entries)
			printDetail("Backend: %s", c.backendName(st))
			return nil
		},
	}
}

func (c *CLI) cacheInvalidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "invalidate <package> [version]",
		Short: "Drop the cached metadata of one package",
		Long: `Invalidate drops the cached release listing of a package so the next
resolution asks the index again. With a version, that release's cached
dependency metadata is dropped as well.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := wwerrors.ValidatePythonPackageName(args[0]); err != nil {
				return err
			}
			name := pep508.NormalizeName(args[0])

			mc, st, err := c.openCache(cmd.Context())
			if err != nil {
				return err
			}
			defer st.Close()

			mc.Invalidate(cmd.Context(), metadata.Key(name, ""))
			target := name
			if len(args) == 2 {
				mc.Invalidate(cmd.Context(), metadata.Key(name, args[1]))
				target = metadata.Key(name, args[1])
			}
			printSuccess("Invalidated %s", StyleHighlight.Render(target))
			return nil
		},
	}
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
