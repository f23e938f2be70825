package observability

import (
	"context"
	"encoding/json"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aquaforge/pondops-backend/internal/platform/ctxutil"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

// DriftAlertMetric is one pond-level deviation from the published plan.
type DriftAlertMetric struct {
	Code         string   `json:"code"`
	Severity     string   `json:"severity"`
	Pond         string   `json:"pond"`
	DeviationPct *float64 `json:"deviation_pct,omitempty"`
	Days         int      `json:"days,omitempty"`
	Message      string   `json:"message"`
}

type driftAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var driftAlerts driftAlertState

// ReportProjectionDrift counts deviation alerts and, when configured, posts
// a webhook per cycle at most once per interval.
func ReportProjectionDrift(ctx context.Context, log *logger.Logger, cycleID string, alerts []DriftAlertMetric, meta map[string]any) {
	if len(alerts) == 0 {
		return
	}
	if m := Current(); m != nil {
		for _, a := range alerts {
			m.IncDeviationAlert(a.Code, a.Severity)
		}
	}
	if !projectionDriftAlertsEnabled() {
		return
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if cycleID != "" {
		meta["cycle_id"] = cycleID
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}

	webhook := projectionDriftAlertWebhook()
	if webhook == "" {
		return
	}
	key := "drift:" + cycleID
	driftAlerts.mu.Lock()
	if driftAlerts.last == nil {
		driftAlerts.last = map[string]time.Time{}
	}
	last := driftAlerts.last[key]
	minInterval := projectionDriftAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		driftAlerts.mu.Unlock()
		return
	}
	driftAlerts.last[key] = time.Now()
	driftAlerts.mu.Unlock()

	payload := map[string]any{
		"title":     "Projection drift detected",
		"alerts":    alerts,
		"meta":      meta,
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	postAlert(log, webhook, "projection_drift", body)
}

func projectionDriftAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("PROJECTION_DRIFT_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func projectionDriftAlertWebhook() string {
	val := strings.TrimSpace(os.Getenv("PROJECTION_DRIFT_ALERT_WEBHOOK_URL"))
	if val != "" {
		return val
	}
	return strings.TrimSpace(os.Getenv("SLO_ALERT_WEBHOOK_URL"))
}

func projectionDriftAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("PROJECTION_DRIFT_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 10 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}
