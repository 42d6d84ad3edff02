package cli

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelwright/pkg/buildinfo"
	"github.com/matzehuels/wheelwright/pkg/lockfile"
)

// lockCommand creates the lock command, which resolves and writes a lock
// file.
func (c *CLI) lockCommand() *cobra.Command {
	var (
		opts   resolveOpts
		output string
	)

	cmd := &cobra.Command{
		Use:   "lock [requirement...]",
		Short: "Resolve requirements and write a lock file",
		Long: `Lock resolves the given requirements and writes the selection, with each
release's download URL and hash, to a TOML lock file.

Passing --from-lock with the existing lock file keeps its versions and only
adds what is new.`,
		Example: `  wheelwright lock -r requirements.txt
  wheelwright lock -r pyproject.toml --python 3.12 -o py312.lock
  wheelwright lock -r requirements.txt --from-lock wheelwright.lock`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := withLogger(cmd.Context(), c.Logger)
			res, python, err := c.runResolve(ctx, args, opts)
			if err != nil {
				return err
			}

			lock := lockfile.FromResolution(res, python, appName+" "+buildinfo.Version, time.Now())
			if err := lock.WriteFile(output); err != nil {
				return err
			}
			printSuccess("Locked %d packages", len(lock.Packages))
			printFile(output)
			printStats(res.Stats)
			printNextStep("Reuse these versions next time", "wheelwright lock --from-lock "+output)
			return nil
		},
	}

	addResolveFlags(cmd, &opts)
	cmd.Flags().StringVarP(&output, "output", "o", lockfile.DefaultName, "lock file to write")

	return cmd
}
