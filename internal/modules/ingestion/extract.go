package ingestion

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/gcp"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/realtime"
	"github.com/aquaforge/pondops-backend/internal/realtime/bus"
)

const (
	WorkflowName    = "projection_extract"
	ActivityExtract = "projection_extract_run"

	// Upload rows keep at most this much failure text.
	maxErrorChars = 500

	extractFailedType = "projection_extract_failed"
)

type ExtractResult struct {
	UploadID string `json:"upload_id"`
	Status   string `json:"status"`
	HeaderID string `json:"header_id,omitempty"`
	Version  string `json:"version,omitempty"`
}

// Workflow drives extraction for one uploaded plan document. All real
// work happens in a single activity so a worker restart replays
// cleanly from the queue.
func Workflow(ctx workflow.Context, uploadID string) error {
	if strings.TrimSpace(uploadID) == "" {
		return fmt.Errorf("missing upload id")
	}
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 3,
		},
	})
	var out ExtractResult
	return workflow.ExecuteActivity(ctx, ActivityExtract, uploadID).Get(ctx, &out)
}

// Activities is the worker-side dependency bundle for the extraction
// activity. The inline fallback calls Extract with a plain request
// context when no Temporal client is configured.
type Activities struct {
	Log         *logger.Logger
	Uploads     repos.ProjectionUploadRepo
	Projections projection.Usecases
	Bucket      gcp.BucketService
	Docs        gcp.Document
	Bus         bus.Bus
}

// Extract downloads the stored document, parses it into a weekly
// timeline and persists the resulting projection. Deterministic
// failures (unparseable file, draft conflict) are written to the
// upload row and returned as non-retryable; anything else bubbles up
// for Temporal to retry.
func (a *Activities) Extract(ctx context.Context, uploadID string) (ExtractResult, error) {
	id, err := uuid.Parse(strings.TrimSpace(uploadID))
	if err != nil {
		return ExtractResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("bad upload id %q", uploadID), extractFailedType, err)
	}

	dbc := dbctx.Context{Ctx: ctx}
	up, err := a.Uploads.GetByID(dbc, id)
	if err != nil {
		return ExtractResult{}, err
	}
	if up == nil {
		return ExtractResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("upload %s not found", id), extractFailedType, nil)
	}
	if up.Status == types.UploadDone {
		res := ExtractResult{UploadID: uploadID, Status: up.Status, Version: up.Version}
		if up.HeaderID != nil {
			res.HeaderID = up.HeaderID.String()
		}
		return res, nil
	}

	if err := a.Uploads.UpdateFields(dbc, id, map[string]interface{}{
		"status": types.UploadProcessing,
		"error":  "",
	}); err != nil {
		return ExtractResult{}, err
	}

	start := time.Now()
	kind := "csv"
	if isPDFUpload(up) {
		kind = "pdf"
	}
	status := types.UploadFailed
	defer func() {
		if m := observability.Current(); m != nil {
			d := time.Since(start)
			m.ObserveExtraction(kind, status, d)
			m.ObserveActivity(ActivityExtract, status, d)
		}
	}()

	data, err := a.download(ctx, up.ObjectKey)
	if err != nil {
		return ExtractResult{}, a.fail(ctx, up, fmt.Errorf("download %s: %w", up.ObjectKey, err))
	}

	parsed, err := a.parseUpload(ctx, up, data)
	if err != nil {
		return ExtractResult{}, a.fail(ctx, up, err)
	}

	created, err := a.Projections.CreateFromTimeline(ctx, projection.CreateFromTimelineInput{
		CycleID:          up.CycleID,
		Source:           types.SourceFromFile,
		Lines:            parsed.Lines,
		Warnings:         parsed.Warnings,
		Version:          up.Version,
		FinalSurvivalPct: parsed.FinalSurvivalPct,
	})
	if err != nil {
		return ExtractResult{}, a.fail(ctx, up, err)
	}

	headerID := created.Header.ID
	if err := a.Uploads.UpdateFields(dbc, id, map[string]interface{}{
		"status":    types.UploadDone,
		"header_id": headerID,
	}); err != nil {
		return ExtractResult{}, err
	}
	a.Log.Info("projection upload processed",
		"upload_id", id, "cycle_id", up.CycleID,
		"header_id", headerID, "version", created.Header.Version,
		"lines", len(created.Lines), "warnings", len(created.Warnings))
	a.announce(ctx, up.CycleID, realtime.SSEEventUploadProcessed, map[string]any{
		"upload_id": id,
		"header_id": headerID,
		"version":   created.Header.Version,
		"warnings":  created.Warnings,
	})
	if len(created.Warnings) > 0 {
		observability.ReportDataQualityErrors(ctx, a.Log, "extraction", created.Warnings, map[string]any{
			"upload_id": id.String(),
			"cycle_id":  up.CycleID.String(),
			"header_id": headerID.String(),
		})
	}

	status = types.UploadDone
	return ExtractResult{
		UploadID: uploadID,
		Status:   types.UploadDone,
		HeaderID: headerID.String(),
		Version:  created.Header.Version,
	}, nil
}

func (a *Activities) download(ctx context.Context, key string) ([]byte, error) {
	rc, err := a.Bucket.DownloadFile(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	return io.ReadAll(rc)
}

func (a *Activities) parseUpload(ctx context.Context, up *types.ProjectionUpload, data []byte) (*ParsedTimeline, error) {
	if !isPDFUpload(up) {
		return ParseCSV(data)
	}

	if a.Docs == nil {
		return nil, apierr.New(500, "docai_not_configured", errors.New("document processor unavailable"))
	}
	env := loadDocAIEnv()
	if env.ProjectID == "" || env.ProcessorID == "" {
		return nil, apierr.New(500, "docai_not_configured",
			errors.New("missing docai env (GCP_PROJECT_ID, DOCUMENTAI_LOCATION, DOCUMENTAI_PROCESSOR_ID)"))
	}
	res, err := a.Docs.ProcessBytes(ctx, gcp.DocAIProcessBytesRequest{
		ProjectID:        env.ProjectID,
		Location:         env.Location,
		ProcessorID:      env.ProcessorID,
		ProcessorVersion: env.ProcessorVersion,
		MimeType:         "application/pdf",
		Data:             data,
	})
	if err != nil {
		return nil, fmt.Errorf("document ai: %w", err)
	}
	parsed, err := ParseGrids(res.Tables)
	if err != nil {
		return nil, err
	}
	if len(res.Warnings) > 0 {
		parsed.Warnings = append(append([]string{}, res.Warnings...), parsed.Warnings...)
	}
	return parsed, nil
}

// fail records the outcome on the upload row and decides retryability.
// The row flips back to processing if a later attempt runs.
func (a *Activities) fail(ctx context.Context, up *types.ProjectionUpload, cause error) error {
	if err := a.Uploads.UpdateFields(dbctx.Context{Ctx: ctx}, up.ID, map[string]interface{}{
		"status": types.UploadFailed,
		"error":  truncateError(cause),
	}); err != nil {
		a.Log.Error("mark upload failed", "upload_id", up.ID, "error", err)
	}
	a.Log.Warn("projection upload failed",
		"upload_id", up.ID, "cycle_id", up.CycleID, "error", cause)
	a.announce(ctx, up.CycleID, realtime.SSEEventUploadFailed, map[string]any{
		"upload_id": up.ID,
		"error":     truncateError(cause),
	})

	var ae *apierr.Error
	if errors.As(cause, &ae) {
		observability.ReportDataQualityErrors(ctx, a.Log, "extraction", []string{truncateError(cause)}, map[string]any{
			"upload_id": up.ID.String(),
			"cycle_id":  up.CycleID.String(),
		})
		return temporal.NewNonRetryableApplicationError(truncateError(cause), extractFailedType, cause)
	}
	return cause
}

func (a *Activities) announce(ctx context.Context, cycleID uuid.UUID, event realtime.SSEEvent, data any) {
	if a.Bus == nil {
		return
	}
	msg := realtime.SSEMessage{Channel: realtime.CycleChannel(cycleID), Event: event, Data: data}
	if err := a.Bus.Publish(ctx, msg); err != nil {
		a.Log.Warn("sse publish failed", "event", event, "cycle_id", cycleID, "error", err)
	}
}

type docAIEnv struct {
	ProjectID        string
	Location         string
	ProcessorID      string
	ProcessorVersion string
}

func loadDocAIEnv() docAIEnv {
	env := docAIEnv{
		ProjectID:        strings.TrimSpace(os.Getenv("GCP_PROJECT_ID")),
		Location:         strings.TrimSpace(os.Getenv("DOCUMENTAI_LOCATION")),
		ProcessorID:      strings.TrimSpace(os.Getenv("DOCUMENTAI_PROCESSOR_ID")),
		ProcessorVersion: strings.TrimSpace(os.Getenv("DOCUMENTAI_PROCESSOR_VERSION")),
	}
	if env.Location == "" {
		env.Location = "us"
	}
	return env
}

func isPDFUpload(up *types.ProjectionUpload) bool {
	if strings.EqualFold(strings.TrimSpace(up.ContentType), "application/pdf") {
		return true
	}
	return strings.HasSuffix(strings.ToLower(up.ObjectKey), ".pdf")
}

func truncateError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	var ae *apierr.Error
	if errors.As(err, &ae) && ae.Code != "" && !strings.HasPrefix(msg, ae.Code) {
		msg = ae.Code + ": " + msg
	}
	if len(msg) > maxErrorChars {
		msg = msg[:maxErrorChars]
	}
	return msg
}
