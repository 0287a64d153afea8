package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/config"
)

var (
	cfg          *config.Config
	forceOffline bool
)

var rootCmd = &cobra.Command{
	Use:   "leadscan",
	Short: "Trade-show badge scanner that never loses a lead",
	Long: "Captures leads from badge photos or manual entry, records them locally first, " +
		"and delivers them to a Google Sheet, queueing anything that cannot be sent until the network is back.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&forceOffline, "offline", false, "treat the network as unavailable; leads are queued")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
