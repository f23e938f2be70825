package observability

import (
	"context"
	"encoding/json"
	"os"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aquaforge/pondops-backend/internal/platform/ctxutil"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

var droppedRowRe = regexp.MustCompile(`row \d+ dropped: (?:bad|invalid) (date|weight|survival)`)

// parseIssueCodes are emitted by the timeline parsers as failure codes and
// carried verbatim into upload error text.
var parseIssueCodes = []string{
	"missing_required_columns",
	"date_parse_error",
	"type_error",
	"empty_series",
	"limits_exceeded",
	"invalid_csv",
	"no_tables_found",
}

type dqAlertState struct {
	mu   sync.Mutex
	last map[string]time.Time
}

var dqAlerts dqAlertState

// ReportDataQualityErrors classifies extraction warnings and failure text
// into quality counters and, when configured, posts a webhook alert.
func ReportDataQualityErrors(ctx context.Context, log *logger.Logger, stage string, errs []string, meta map[string]any) {
	if len(errs) == 0 {
		return
	}
	stage = strings.TrimSpace(stage)
	if stage == "" {
		stage = "unknown"
	}
	if meta == nil {
		meta = map[string]any{}
	}
	if td := ctxutil.GetTraceData(ctx); td != nil {
		if td.TraceID != "" {
			meta["trace_id"] = td.TraceID
		}
		if td.RequestID != "" {
			meta["request_id"] = td.RequestID
		}
	}

	issueCounts := map[string]int{}
	sampleErrors := make([]string, 0, 3)
	for _, errStr := range errs {
		errStr = strings.TrimSpace(errStr)
		if errStr == "" {
			continue
		}
		if len(sampleErrors) < 3 {
			sampleErrors = append(sampleErrors, errStr)
		}
		lower := strings.ToLower(errStr)
		if field := extractDroppedField(lower); field != "" {
			incDataQuality(stage, "row_dropped", field)
			issueCounts["row_dropped"]++
			continue
		}
		if strings.Contains(lower, "survival_scale=") {
			incDataQuality(stage, "scale_conversion", "survival")
			issueCounts["scale_conversion"]++
			continue
		}
		if code := matchParseIssueCode(lower); code != "" {
			incDataQuality(stage, code, "")
			issueCounts[code]++
			continue
		}
		incDataQuality(stage, "validation_error", "")
		issueCounts["validation_error"]++
	}

	if log != nil {
		log.Warn("data quality issue detected",
			"stage", stage,
			"issues", issueCounts,
			"sample_errors", sampleErrors,
			"meta", meta,
		)
	}
	sendDataQualityAlert(stage, issueCounts, sampleErrors, meta, log)
}

func extractDroppedField(lower string) string {
	if match := droppedRowRe.FindStringSubmatch(lower); len(match) == 2 {
		return match[1]
	}
	if strings.Contains(lower, "dropped") {
		return "row"
	}
	return ""
}

func matchParseIssueCode(lower string) string {
	for _, code := range parseIssueCodes {
		if strings.Contains(lower, code) {
			return code
		}
	}
	return ""
}

func incDataQuality(stage, issue, key string) {
	metrics := Current()
	if metrics == nil {
		return
	}
	metrics.IncDataQuality(stage, issue, key)
}

func dataQualityAlertsEnabled() bool {
	v := strings.TrimSpace(strings.ToLower(os.Getenv("DATA_QUALITY_ALERTS_ENABLED")))
	if v == "" {
		return false
	}
	return v == "1" || v == "true" || v == "yes" || v == "on"
}

func dataQualityAlertWebhook() string {
	val := strings.TrimSpace(os.Getenv("DATA_QUALITY_ALERT_WEBHOOK_URL"))
	if val != "" {
		return val
	}
	return strings.TrimSpace(os.Getenv("SLO_ALERT_WEBHOOK_URL"))
}

func dataQualityAlertMinInterval() time.Duration {
	raw := strings.TrimSpace(os.Getenv("DATA_QUALITY_ALERT_MIN_INTERVAL_SECONDS"))
	if raw == "" {
		return 5 * time.Minute
	}
	seconds, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || seconds <= 0 {
		return 5 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}

func sendDataQualityAlert(stage string, issueCounts map[string]int, sampleErrors []string, meta map[string]any, log *logger.Logger) {
	if !dataQualityAlertsEnabled() {
		return
	}
	webhook := dataQualityAlertWebhook()
	if webhook == "" || len(issueCounts) == 0 {
		return
	}
	key := stage
	dqAlerts.mu.Lock()
	if dqAlerts.last == nil {
		dqAlerts.last = map[string]time.Time{}
	}
	last := dqAlerts.last[key]
	minInterval := dataQualityAlertMinInterval()
	if !last.IsZero() && time.Since(last) < minInterval {
		dqAlerts.mu.Unlock()
		return
	}
	dqAlerts.last[key] = time.Now()
	dqAlerts.mu.Unlock()

	payload := map[string]any{
		"title":         "Data quality issue",
		"stage":         stage,
		"issues":        issueCounts,
		"sample_errors": sampleErrors,
		"meta":          meta,
		"timestamp":     time.Now().UTC().Format(time.RFC3339),
	}
	body, _ := json.Marshal(payload)
	postAlert(log, webhook, "data_quality", body)
}
