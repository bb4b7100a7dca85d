package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/rolescout/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertRunFailureRate AlertType = "run_failure_rate"
	AlertStaleFeed      AlertType = "stale_feed"
)

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a MetricsSnapshot against configured thresholds and
// sends alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates an Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
// Failure rate only fires once at least 5 runs finished in the window.
func (a *Alerter) Evaluate(snap *MetricsSnapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	finished := snap.WindowCompleted + snap.WindowCompletedErrors + snap.WindowFailed
	if finished >= 5 && snap.WindowFailRate > a.cfg.FailureRateThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertRunFailureRate,
			Severity: "high",
			Message: fmt.Sprintf(
				"Ingestion failure rate %.1f%% exceeds threshold %.1f%% (%d failed / %d finished in last %dh)",
				snap.WindowFailRate*100, a.cfg.FailureRateThreshold*100,
				snap.WindowFailed, finished, snap.LookbackHours,
			),
			Details: map[string]any{
				"failure_rate": snap.WindowFailRate,
				"threshold":    a.cfg.FailureRateThreshold,
				"failed":       snap.WindowFailed,
				"finished":     finished,
			},
			Timestamp: now,
		})
	}

	if a.cfg.StaleFeedHours > 0 && snap.LastRunAt != nil &&
		snap.LastRunAgeHours > float64(a.cfg.StaleFeedHours) {
		alerts = append(alerts, Alert{
			Type:     AlertStaleFeed,
			Severity: "medium",
			Message: fmt.Sprintf(
				"No ingestion run in %.1fh (threshold %dh); the feed may be stale",
				snap.LastRunAgeHours, a.cfg.StaleFeedHours,
			),
			Details: map[string]any{
				"last_run_at":        snap.LastRunAt,
				"last_run_age_hours": snap.LastRunAgeHours,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// Send posts alerts to the configured webhook. A missing webhook URL logs
// and drops the alerts.
func (a *Alerter) Send(ctx context.Context, alerts []Alert) error {
	if len(alerts) == 0 {
		return nil
	}
	if a.cfg.WebhookURL == "" {
		zap.L().Warn("alerts raised but no webhook configured",
			zap.Int("count", len(alerts)))
		return nil
	}

	body, err := json.Marshal(map[string]any{"alerts": alerts})
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alerts")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(body))
	if err != nil {
		return eris.Wrap(err, "monitoring: build webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: send webhook")
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return eris.Errorf("monitoring: webhook returned %d", resp.StatusCode)
	}

	zap.L().Info("alerts sent", zap.Int("count", len(alerts)))
	return nil
}
