package monitoring

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadscan/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertQueueBacklog     AlertType = "queue_backlog"
	AlertSinkUnconfigured AlertType = "sink_unconfigured"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *resty.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: resty.New().SetTimeout(10 * time.Second),
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if a.cfg.BacklogThreshold > 0 && snap.Pending >= a.cfg.BacklogThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertQueueBacklog,
			Severity: "high",
			Message: fmt.Sprintf(
				"%d leads waiting for delivery on %s's device (threshold %d, oldest waiting %s)",
				snap.Pending, identityOrUnknown(snap.Identity), a.cfg.BacklogThreshold,
				snap.OldestPendingAge().Round(time.Minute),
			),
			Details: map[string]any{
				"pending":   snap.Pending,
				"threshold": a.cfg.BacklogThreshold,
				"online":    snap.Online,
			},
			Timestamp: now,
		})
	}

	if !snap.EndpointConfigured && snap.Pending > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertSinkUnconfigured,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d leads cannot be delivered: no sink endpoint configured",
				snap.Pending,
			),
			Details: map[string]any{
				"pending": snap.Pending,
			},
			Timestamp: now,
		})
	}

	return alerts
}

func identityOrUnknown(s string) string {
	if s == "" {
		return "an unnamed"
	}
	return s
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	resp, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(alert).
		Post(a.cfg.WebhookURL)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	if resp.StatusCode() >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode())
	}
	return nil
}
