package monitoring

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/rolescout/internal/config"
)

func testMonitoringConfig(webhook string) config.MonitoringConfig {
	return config.MonitoringConfig{
		WebhookURL:           webhook,
		FailureRateThreshold: 0.5,
		StaleFeedHours:       36,
		LookbackWindowHours:  24,
	}
}

func TestEvaluateNoAlerts(t *testing.T) {
	a := NewAlerter(testMonitoringConfig(""))
	now := time.Now().UTC()

	snap := &MetricsSnapshot{
		WindowCompleted: 10,
		WindowFailed:    1,
		WindowFailRate:  1.0 / 11.0,
		LastRunAt:       &now,
		LastRunAgeHours: 0.5,
		LookbackHours:   24,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluateFailureRate(t *testing.T) {
	a := NewAlerter(testMonitoringConfig(""))

	snap := &MetricsSnapshot{
		WindowCompleted: 2,
		WindowFailed:    4,
		WindowFailRate:  4.0 / 6.0,
		LookbackHours:   24,
	}
	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertRunFailureRate, alerts[0].Type)
	assert.Equal(t, "high", alerts[0].Severity)
	assert.Contains(t, alerts[0].Message, "66.7%")
}

func TestEvaluateFailureRateNeedsFiveFinished(t *testing.T) {
	a := NewAlerter(testMonitoringConfig(""))

	snap := &MetricsSnapshot{
		WindowFailed:   3,
		WindowFailRate: 1.0,
		LookbackHours:  24,
	}
	assert.Empty(t, a.Evaluate(snap))
}

func TestEvaluateStaleFeed(t *testing.T) {
	a := NewAlerter(testMonitoringConfig(""))
	old := time.Now().UTC().Add(-48 * time.Hour)

	snap := &MetricsSnapshot{
		LastRunAt:       &old,
		LastRunAgeHours: 48,
		LookbackHours:   24,
	}
	alerts := a.Evaluate(snap)
	require.Len(t, alerts, 1)
	assert.Equal(t, AlertStaleFeed, alerts[0].Type)
	assert.Equal(t, "medium", alerts[0].Severity)
}

func TestSendPostsWebhook(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var body struct {
			Alerts []Alert `json:"alerts"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Len(t, body.Alerts, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	a := NewAlerter(testMonitoringConfig(srv.URL))
	err := a.Send(context.Background(), []Alert{{
		Type:      AlertStaleFeed,
		Severity:  "medium",
		Message:   "feed stale",
		Timestamp: time.Now().UTC(),
	}})
	require.NoError(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestSendNoWebhookConfigured(t *testing.T) {
	a := NewAlerter(testMonitoringConfig(""))
	err := a.Send(context.Background(), []Alert{{Type: AlertStaleFeed}})
	assert.NoError(t, err)
}

func TestSendWebhookFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	a := NewAlerter(testMonitoringConfig(srv.URL))
	err := a.Send(context.Background(), []Alert{{Type: AlertRunFailureRate}})
	assert.Error(t, err)
}
