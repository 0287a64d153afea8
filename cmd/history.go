package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/export"
	"github.com/sells-group/leadscan/internal/model"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently captured leads, newest first",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		entries, err := st.LoadHistory(ctx)
		if err != nil {
			return eris.Wrap(err, "history")
		}
		if limit, _ := cmd.Flags().GetInt("limit"); limit > 0 && limit < len(entries) {
			entries = entries[:limit]
		}
		if len(entries) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No scans yet.")
			return nil
		}
		formatHistory(cmd.OutOrStdout(), entries)
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the recent history to an .xlsx file",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		if err := st.Migrate(ctx); err != nil {
			return err
		}

		entries, err := st.LoadHistory(ctx)
		if err != nil {
			return eris.Wrap(err, "history export")
		}
		out, _ := cmd.Flags().GetString("out")
		if err := export.SaveHistory(out, entries); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d lead(s) to %s\n", len(entries), out)
		return nil
	},
}

func formatHistory(w io.Writer, entries []model.HistoryEntry) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TIMESTAMP\tNAME\tCOMPANY\tSCANNED BY\tSTATUS")
	for _, e := range entries {
		status := "pending"
		if e.Delivered {
			status = "sent"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.Timestamp, e.Name, e.Company, e.ScannedBy, status)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	historyCmd.Flags().Int("limit", 0, "show at most this many entries (0 = all)")
	historyExportCmd.Flags().String("out", "leads.xlsx", "output file")
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}
