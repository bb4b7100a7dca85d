// Package monitoring gathers pipeline health metrics from the store and
// raises webhook alerts when ingestion degrades.
package monitoring

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/rolescout/internal/model"
	"github.com/sells-group/rolescout/internal/store"
)

// MetricsSnapshot holds a point-in-time view of ingestion health.
type MetricsSnapshot struct {
	// Run counts within the lookback window.
	WindowRuns            int     `json:"window_runs"`
	WindowCompleted       int     `json:"window_completed"`
	WindowCompletedErrors int     `json:"window_completed_with_errors"`
	WindowFailed          int     `json:"window_failed"`
	WindowRunning         int     `json:"window_running"`
	WindowFailRate        float64 `json:"window_fail_rate"`
	WindowRecordErrors    int     `json:"window_record_errors"`

	// All-time totals.
	TotalRuns       int     `json:"total_runs"`
	AvgDurationSecs float64 `json:"avg_duration_seconds"`
	TotalRoles      int     `json:"total_roles"`
	ActiveRoles     int     `json:"active_roles"`
	QualifiedRoles  int     `json:"qualified_roles"`
	ChangeEvents    int     `json:"change_events"`

	// Feed freshness.
	LastRunAt       *time.Time `json:"last_run_at,omitempty"`
	LastRunAgeHours float64    `json:"last_run_age_hours"`

	// Metadata.
	LookbackHours int       `json:"lookback_hours"`
	CollectedAt   time.Time `json:"collected_at"`
}

// Collector gathers metrics from the store.
type Collector struct {
	store store.Store
}

// NewCollector creates a metrics collector.
func NewCollector(s store.Store) *Collector {
	return &Collector{store: s}
}

// Collect gathers a snapshot over the given lookback window.
func (c *Collector) Collect(ctx context.Context, lookbackHours int) (*MetricsSnapshot, error) {
	now := time.Now().UTC()
	snap := &MetricsSnapshot{
		LookbackHours: lookbackHours,
		CollectedAt:   now,
	}
	cutoff := now.Add(-time.Duration(lookbackHours) * time.Hour)

	stats, err := c.store.RunStats(ctx)
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: run stats")
	}
	snap.TotalRuns = stats.TotalRuns
	snap.AvgDurationSecs = stats.AvgDurationSecs
	snap.TotalRoles = stats.TotalRoles
	snap.ActiveRoles = stats.ActiveRoles
	snap.QualifiedRoles = stats.QualifiedRoles
	snap.ChangeEvents = stats.ChangeEvents
	snap.LastRunAt = stats.LastRunAt
	if stats.LastRunAt != nil {
		snap.LastRunAgeHours = now.Sub(*stats.LastRunAt).Hours()
	}

	runs, err := c.store.ListRuns(ctx, store.RunFilter{Limit: 1000})
	if err != nil {
		return nil, eris.Wrap(err, "monitoring: list runs")
	}

	for _, r := range runs {
		if r.StartedAt.Before(cutoff) {
			continue
		}
		snap.WindowRuns++
		snap.WindowRecordErrors += len(r.Errors)
		switch r.Status {
		case model.RunCompleted:
			snap.WindowCompleted++
		case model.RunCompletedWithErrors:
			snap.WindowCompletedErrors++
		case model.RunFailed:
			snap.WindowFailed++
		case model.RunRunning:
			snap.WindowRunning++
		}
	}

	finished := snap.WindowCompleted + snap.WindowCompletedErrors + snap.WindowFailed
	if finished > 0 {
		snap.WindowFailRate = float64(snap.WindowFailed) / float64(finished)
	}

	return snap, nil
}
