package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	temporalsdkclient "go.temporal.io/sdk/client"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/gcp"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/realtime"
	"github.com/aquaforge/pondops-backend/internal/realtime/bus"
	"github.com/aquaforge/pondops-backend/internal/temporalx"
)

// maxUploadBytes matches the Document AI synchronous processing limit.
const maxUploadBytes = 20 << 20

type UsecasesDeps struct {
	Log *logger.Logger

	Cycles  repos.CycleRepo
	Uploads repos.ProjectionUploadRepo
	Headers repos.ProjectionHeaderRepo

	Projections projection.Usecases

	Bucket gcp.BucketService
	Docs   gcp.Document

	// Optional: a nil Temporal client runs extraction inline on the
	// request path instead of dispatching a workflow.
	Temporal temporalsdkclient.Client
	Bus      bus.Bus
}

type Usecases struct {
	deps UsecasesDeps
}

func New(deps UsecasesDeps) Usecases { return Usecases{deps: deps} }

func (u Usecases) WithLog(log *logger.Logger) Usecases {
	u.deps.Log = log
	return u
}

// Activities builds the extraction engine the Temporal worker
// registers; the inline fallback calls the same code directly.
func (u Usecases) Activities() *Activities {
	return &Activities{
		Log:         u.deps.Log,
		Uploads:     u.deps.Uploads,
		Projections: u.deps.Projections,
		Bucket:      u.deps.Bucket,
		Docs:        u.deps.Docs,
		Bus:         u.deps.Bus,
	}
}

type UploadInput struct {
	CycleID     uuid.UUID
	FileName    string
	ContentType string
	Version     string
	Data        []byte
}

// UploadProjection stores a raw plan document (CSV or PDF) and starts
// extraction toward a new projection for the cycle.
func (u Usecases) UploadProjection(ctx context.Context, in UploadInput) (*types.ProjectionUpload, error) {
	if u.deps.Bucket == nil {
		return nil, apierr.New(http.StatusInternalServerError, "storage_not_configured",
			fmt.Errorf("object storage unavailable"))
	}
	if len(in.Data) == 0 {
		return nil, apierr.Validation("empty_file", nil)
	}
	if len(in.Data) > maxUploadBytes {
		return nil, apierr.New(http.StatusRequestEntityTooLarge, "file_too_large",
			fmt.Errorf("%d bytes exceeds %d", len(in.Data), maxUploadBytes))
	}
	ext, mime, ok := uploadKind(in.FileName, in.ContentType)
	if !ok {
		return nil, apierr.New(http.StatusUnsupportedMediaType, "unsupported_file_type",
			fmt.Errorf("file %q content type %q", in.FileName, in.ContentType))
	}

	dbc := dbctx.Context{Ctx: ctx}
	cyc, err := u.deps.Cycles.GetByID(dbc, in.CycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}
	if cyc.Status == types.CycleClosed {
		return nil, apierr.Conflict("cycle_closed", nil)
	}

	// Fail before touching storage when the cycle already holds a
	// draft; extraction would reject the result anyway.
	if draft, err := u.deps.Headers.FindDraftByCycle(dbc, in.CycleID); err != nil {
		return nil, err
	} else if draft != nil {
		return nil, apierr.Conflict("draft_projection_already_exists", nil)
	}

	uploadID := uuid.New()
	objectKey := fmt.Sprintf("cycles/%s/uploads/%s%s", in.CycleID, uploadID, ext)
	if err := u.deps.Bucket.UploadFile(ctx, objectKey, bytes.NewReader(in.Data)); err != nil {
		return nil, fmt.Errorf("store upload: %w", err)
	}

	row := &types.ProjectionUpload{
		ID:           uploadID,
		CycleID:      in.CycleID,
		ObjectKey:    objectKey,
		OriginalName: baseFileName(in.FileName),
		ContentType:  mime,
		Version:      strings.TrimSpace(in.Version),
		Status:       types.UploadPending,
	}
	if _, err := u.deps.Uploads.Create(dbc, row); err != nil {
		return nil, err
	}
	u.deps.Log.Info("projection upload stored",
		"upload_id", uploadID, "cycle_id", in.CycleID, "object_key", objectKey)
	announce(ctx, u.deps, in.CycleID, realtime.SSEEventProjectionUploaded, map[string]any{
		"upload_id": uploadID,
		"file_name": row.OriginalName,
	})

	if err := u.dispatch(ctx, row); err != nil {
		return nil, err
	}

	return u.deps.Uploads.GetByID(dbc, uploadID)
}

func (u Usecases) GetUpload(ctx context.Context, id uuid.UUID) (*types.ProjectionUpload, error) {
	up, err := u.deps.Uploads.GetByID(dbctx.Context{Ctx: ctx}, id)
	if err != nil {
		return nil, err
	}
	if up == nil {
		return nil, apierr.NotFound("upload_not_found", nil)
	}
	return up, nil
}

func (u Usecases) ListUploads(ctx context.Context, cycleID uuid.UUID) ([]*types.ProjectionUpload, error) {
	dbc := dbctx.Context{Ctx: ctx}
	cyc, err := u.deps.Cycles.GetByID(dbc, cycleID)
	if err != nil {
		return nil, err
	}
	if cyc == nil {
		return nil, apierr.NotFound("cycle_not_found", nil)
	}
	return u.deps.Uploads.ListByCycle(dbc, cycleID)
}

func (u Usecases) dispatch(ctx context.Context, up *types.ProjectionUpload) error {
	if u.deps.Temporal == nil {
		u.deps.Log.Info("Temporal disabled; extracting inline", "upload_id", up.ID)
		_, err := u.Activities().Extract(ctx, up.ID.String())
		return err
	}

	cfg := temporalx.LoadConfig()
	wfID := "projection-extract-" + up.ID.String()
	_, err := u.deps.Temporal.ExecuteWorkflow(ctx, temporalsdkclient.StartWorkflowOptions{
		ID:        wfID,
		TaskQueue: cfg.TaskQueue,
	}, WorkflowName, up.ID.String())
	if err != nil {
		_ = u.deps.Uploads.UpdateFields(dbctx.Context{Ctx: ctx}, up.ID, map[string]interface{}{
			"status": types.UploadFailed,
			"error":  truncateError(fmt.Errorf("start workflow: %w", err)),
		})
		return fmt.Errorf("start extraction workflow: %w", err)
	}
	return u.deps.Uploads.UpdateFields(dbctx.Context{Ctx: ctx}, up.ID, map[string]interface{}{
		"workflow_id": wfID,
	})
}

func uploadKind(name, contentType string) (ext, mime string, ok bool) {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if i := strings.Index(ct, ";"); i >= 0 {
		ct = strings.TrimSpace(ct[:i])
	}
	lowered := strings.ToLower(strings.TrimSpace(name))
	switch {
	case strings.HasSuffix(lowered, ".csv"), ct == "text/csv":
		return ".csv", "text/csv", true
	case strings.HasSuffix(lowered, ".pdf"), ct == "application/pdf":
		return ".pdf", "application/pdf", true
	}
	return "", "", false
}

func baseFileName(name string) string {
	base := path.Base(strings.ReplaceAll(strings.TrimSpace(name), "\\", "/"))
	if base == "." || base == "/" {
		return ""
	}
	return base
}

func announce(ctx context.Context, deps UsecasesDeps, cycleID uuid.UUID, event realtime.SSEEvent, data any) {
	if deps.Bus == nil {
		return
	}
	msg := realtime.SSEMessage{Channel: realtime.CycleChannel(cycleID), Event: event, Data: data}
	if err := deps.Bus.Publish(ctx, msg); err != nil {
		deps.Log.Warn("sse publish failed", "event", event, "cycle_id", cycleID, "error", err)
	}
}
