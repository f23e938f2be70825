package observability

import (
	"bytes"
	"net/http"
	"time"

	"github.com/aquaforge/pondops-backend/internal/pkg/httpx"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

// postAlert delivers a webhook payload with one retry on transient
// failures so a flapping receiver does not swallow the alert.
func postAlert(log *logger.Logger, webhook, kind string, body []byte) {
	client := &http.Client{Timeout: 5 * time.Second}
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequest(http.MethodPost, webhook, bytes.NewReader(body))
		if err != nil {
			if log != nil {
				log.Warn("alert request build failed", "kind", kind, "error", err)
			}
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			if attempt == 0 && httpx.IsRetryableError(err) {
				time.Sleep(httpx.JitterSleep(250 * time.Millisecond))
				continue
			}
			if log != nil {
				log.Warn("alert post failed", "kind", kind, "error", err)
			}
			return
		}

		status := resp.StatusCode
		_ = resp.Body.Close()
		if attempt == 0 && httpx.IsRetryableHTTPStatus(status) {
			time.Sleep(httpx.RetryAfterDuration(resp, 250*time.Millisecond, 5*time.Second))
			continue
		}
		if log != nil {
			log.Info("alert sent", "kind", kind, "status", status)
		}
		return
	}
}
