package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

const redacted = "********"

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Print the effective configuration as YAML",
	RunE: func(cmd *cobra.Command, _ []string) error {
		c := *cfg
		if c.OCR.MistralKey != "" {
			c.OCR.MistralKey = redacted
		}
		if c.Store.DatabaseURL != "" {
			c.Store.DatabaseURL = redacted
		}

		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(c); err != nil {
			return eris.Wrap(err, "config: encode yaml")
		}
		return enc.Close()
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
}
