package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/wheelwright/pkg/store"
)

func (c *CLI) openHistory() (*store.FileStore, error) {
	dir, err := c.historyDir()
	if err != nil {
		return nil, err
	}
	return store.NewFileStore(dir)
}

// historyCommand lists past local resolutions.
func (c *CLI) historyCommand() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent resolutions",
		Long: `History lists the resolutions run on this machine, newest first. Records
expire after a week.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openHistory()
			if err != nil {
				return err
			}
			defer st.Close()

			if err := st.Cleanup(cmd.Context()); err != nil {
				c.Logger.Debug("history cleanup failed", "err", err)
			}
			recs, err := st.List(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) == 0 {
				printInfo("No resolutions recorded")
				return nil
			}
			return writeHistory(c.Stdout, recs)
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "maximum number of records to show (0 for all)")

	cmd.AddCommand(c.historyShowCommand())
	cmd.AddCommand(c.historyClearCommand())
	return cmd
}

func (c *CLI) historyShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one recorded resolution as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openHistory()
			if err != nil {
				return err
			}
			defer st.Close()

			rec, err := st.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			enc := json.NewEncoder(c.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func (c *CLI) historyClearCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Delete every recorded resolution",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := c.openHistory()
			if err != nil {
				return err
			}
			defer st.Close()

			recs, err := st.List(cmd.Context(), 0)
			if err != nil {
				return err
			}
			for _, rec := range recs {
				if err := st.Delete(cmd.Context(), rec.ID); err != nil {
					return err
				}
			}
			printSuccess("Deleted %d records", len(recs))
			return nil
		},
	}
}

func writeHistory(w io.Writer, recs []*store.Record) error {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(StyleDim).
		Headers("ID", "CREATED", "STATUS", "PACKAGES", "REQUIREMENTS").
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return styleTableHeader
			}
			return styleTableCell
		})
	for _, rec := range recs {
		status := rec.Status
		switch rec.Status {
		case store.StatusResolved:
			status = StyleSuccess.Render(status)
		default:
			status = StyleError.Render(status)
		}
		t.Row(
			rec.ID,
			rec.CreatedAt.Local().Format("2006-01-02 15:04"),
			status,
			fmt.Sprint(len(rec.Versions)),
			truncate(strings.Join(rec.Requirements, " "), 48),
		)
	}
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func truncate(s string, n int) string {
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-1]) + "…"
}
