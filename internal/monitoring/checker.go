package monitoring

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/config"
)

// Checker runs periodic alert checks in the background. An alert is sent
// when its condition starts holding, not on every check while it holds.
type Checker struct {
	collector *Collector
	alerter   *Alerter
	cfg       config.MonitoringConfig
	firing    map[AlertType]bool
}

// NewChecker creates a background alert checker.
func NewChecker(collector *Collector, alerter *Alerter, cfg config.MonitoringConfig) *Checker {
	return &Checker{
		collector: collector,
		alerter:   alerter,
		cfg:       cfg,
		firing:    make(map[AlertType]bool),
	}
}

// Run starts the periodic check loop. It blocks until ctx is cancelled.
func (c *Checker) Run(ctx context.Context) {
	interval := time.Duration(c.cfg.CheckIntervalSecs) * time.Second
	if interval <= 0 {
		interval = time.Minute
	}

	log := zap.L().With(zap.String("component", "monitoring.checker"))
	log.Info("starting alert checker",
		zap.Duration("interval", interval),
		zap.Int("backlog_threshold", c.cfg.BacklogThreshold),
	)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("alert checker stopped")
			return
		case <-ticker.C:
			c.Check(ctx)
		}
	}
}

// Check collects one snapshot and sends alerts that newly fired. It
// returns the number of alerts sent.
func (c *Checker) Check(ctx context.Context) int {
	log := zap.L().With(zap.String("component", "monitoring.checker"))

	snap, err := c.collector.Collect(ctx)
	if err != nil {
		log.Error("monitoring: failed to collect snapshot", zap.Error(err))
		return 0
	}

	active := make(map[AlertType]bool)
	var fresh []Alert
	for _, a := range c.alerter.Evaluate(snap) {
		active[a.Type] = true
		if !c.firing[a.Type] {
			fresh = append(fresh, a)
		}
	}
	c.firing = active

	if len(fresh) == 0 {
		log.Debug("monitoring: no new alerts", zap.Int("pending", snap.Pending))
		return 0
	}

	sent := c.alerter.SendAlerts(ctx, fresh)
	log.Info("monitoring: alert check complete",
		zap.Int("alerts_triggered", len(fresh)),
		zap.Int("alerts_sent", sent),
	)
	return sent
}
