package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/sells-group/leadscan/internal/capture"
	"github.com/sells-group/leadscan/internal/model"
)

// addFieldFlags registers the lead field flags shared by scan and submit.
func addFieldFlags(fs *pflag.FlagSet) {
	fs.String("name", "", "lead name")
	fs.String("company", "", "lead company")
	fs.String("notes", "", "free-form notes")
	fs.String("email", "", "lead email")
	fs.String("phone", "", "lead phone")
	fs.Int("rating", 0, "lead rating, 1-5 (0 = unrated)")
	fs.StringSlice("product", nil, "product of interest (repeatable)")
}

// applyFieldFlags overwrites f with every field flag the user set.
func applyFieldFlags(fs *pflag.FlagSet, f model.Fields) model.Fields {
	if fs.Changed("name") {
		f.Name, _ = fs.GetString("name")
	}
	if fs.Changed("company") {
		f.Company, _ = fs.GetString("company")
	}
	if fs.Changed("notes") {
		f.Notes, _ = fs.GetString("notes")
	}
	if fs.Changed("email") {
		f.Email, _ = fs.GetString("email")
	}
	if fs.Changed("phone") {
		f.Phone, _ = fs.GetString("phone")
	}
	if fs.Changed("rating") {
		f.Rating, _ = fs.GetInt("rating")
	}
	if fs.Changed("product") {
		f.Products, _ = fs.GetStringSlice("product")
	}
	return f
}

func printSubmitResult(w io.Writer, res capture.SubmitResult, pending int) {
	if res.Delivered {
		fmt.Fprintf(w, "Lead submitted: %s (%s)\n", res.Lead.Name, res.Lead.Timestamp)
		return
	}
	fmt.Fprintf(w, "Saved offline: %s (%s). %d lead(s) waiting to send.\n",
		res.Lead.Name, res.Lead.Timestamp, pending)
}

var submitCmd = &cobra.Command{
	Use:   "submit",
	Short: "Record a lead typed in by hand",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		env, err := initApp(ctx, "capture")
		if err != nil {
			return err
		}
		defer env.Close()

		fields := applyFieldFlags(cmd.Flags(), model.Fields{})
		if err := env.Pipeline.Review(fields); err != nil {
			return err
		}
		res, err := env.Pipeline.Submit(ctx)
		if err != nil {
			env.Pipeline.Cancel()
			return err
		}
		printSubmitResult(cmd.OutOrStdout(), res, env.Queue.Pending())
		return nil
	},
}

func init() {
	addFieldFlags(submitCmd.Flags())
	rootCmd.AddCommand(submitCmd)
}
