package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/internal/model"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and retry leads waiting for delivery",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List queued leads in delivery order",
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

		q, err := st.LoadQueue(ctx)
		if err != nil {
			return eris.Wrap(err, "queue status")
		}
		if len(q) == 0 {
			fmt.Fprintln(cmd.ErrOrStderr(), "No leads waiting.")
			return nil
		}
		formatQueue(cmd.OutOrStdout(), q)
		return nil
	},
}

var queueRetryCmd = &cobra.Command{
	Use:   "retry",
	Short: "Try to deliver every queued lead now",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "capture")
		if err != nil {
			return err
		}
		defer env.Close()

		res, err := env.Queue.Drain(ctx)
		if err != nil {
			return eris.Wrap(err, "queue retry")
		}

		out := cmd.OutOrStdout()
		switch {
		case res.Skipped && !env.Monitor.Online():
			fmt.Fprintf(out, "Offline; %d lead(s) still waiting.\n", res.Remaining)
		case res.Skipped:
			fmt.Fprintln(out, "Nothing to send.")
		default:
			fmt.Fprintf(out, "Sent %d of %d; %d still waiting.\n", res.Delivered, res.Attempted, res.Remaining)
		}
		return nil
	},
}

func formatQueue(w io.Writer, q []model.Lead) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "#\tTIMESTAMP\tNAME\tCOMPANY\tSCANNED BY")
	for i, l := range q {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", i+1, l.Timestamp, l.Name, l.Company, l.ScannedBy)
	}
	tw.Flush() //nolint:errcheck
}

func init() {
	queueCmd.AddCommand(queueStatusCmd, queueRetryCmd)
	rootCmd.AddCommand(queueCmd)
}
