package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sells-group/leadscan/internal/config"
	"github.com/sells-group/leadscan/internal/monitoring"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch connectivity, send queued leads on reconnect, and alert on backlog",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initApp(ctx, "watch")
		if err != nil {
			return err
		}
		defer env.Close()

		return runBackground(ctx, env, cfg.Monitoring)
	},
}

// runBackground drains on every reconnect (and once at start when online),
// polls connectivity and runs the backlog checker until ctx ends.
func runBackground(ctx context.Context, env *appEnv, mcfg config.MonitoringConfig) error {
	env.drainOnReconnect()

	if env.Monitor.Online() {
		if _, err := env.Queue.Drain(ctx); err != nil {
			zap.L().Error("initial drain failed", zap.Error(err))
		}
	}

	checker := monitoring.NewChecker(env.Collector, monitoring.NewAlerter(mcfg), mcfg)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		env.Monitor.Run(gctx)
		return nil
	})
	if mcfg.WebhookURL != "" {
		g.Go(func() error {
			checker.Run(gctx)
			return nil
		})
	}

	zap.L().Info("watching",
		zap.Bool("online", env.Monitor.Online()),
		zap.Int("pending", env.Queue.Pending()),
		zap.Duration("probe_interval", time.Duration(cfg.Connectivity.IntervalSecs)*time.Second),
	)
	return g.Wait()
}

func init() {
	rootCmd.AddCommand(watchCmd)
}
