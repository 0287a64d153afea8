package main

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/monitoring"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show identity, connectivity and delivery backlog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "capture")
		if err != nil {
			return err
		}
		defer env.Close()

		snap, err := env.Collector.Collect(ctx)
		if err != nil {
			return err
		}

		if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(snap)
		}
		formatStatus(cmd.OutOrStdout(), snap)
		return nil
	},
}

func formatStatus(w io.Writer, s *monitoring.Snapshot) {
	identity := s.Identity
	if identity == "" {
		identity = "(not set)"
	}
	network := "offline"
	if s.Online {
		network = "online"
	}
	sink := "configured"
	if !s.EndpointConfigured {
		sink = "NOT CONFIGURED"
	}

	fmt.Fprintf(w, "Scanning as:  %s\n", identity)
	fmt.Fprintf(w, "Network:      %s\n", network)
	fmt.Fprintf(w, "Sheet:        %s\n", sink)
	fmt.Fprintf(w, "Pending:      %d", s.Pending)
	if s.OldestPending != nil {
		fmt.Fprintf(w, " (oldest waiting %s)", s.OldestPendingAge().Round(time.Second))
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "Recent scans: %d (%d not yet sent)\n", s.HistorySize, s.Undelivered)
}

func init() {
	statusCmd.Flags().Bool("json", false, "print the snapshot as JSON")
	rootCmd.AddCommand(statusCmd)
}
