package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sells-group/leadscan/pkg/appscript"
)

var appscriptCmd = &cobra.Command{
	Use:   "appscript",
	Short: "Print the Google Apps Script that receives leads",
	Long: "Paste the output into Extensions > Apps Script on the target sheet, deploy it as a web app, " +
		"and set the deployment URL as sink.endpoint (LEADSCAN_SINK_ENDPOINT).",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprint(cmd.OutOrStdout(), appscript.Script)
	},
}

func init() {
	rootCmd.AddCommand(appscriptCmd)
}
