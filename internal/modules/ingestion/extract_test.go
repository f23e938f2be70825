package ingestion

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/aquaforge/pondops-backend/internal/data/repos/testutil"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/gcp"
)

func TestExtract_PDFViaDocProcessor(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))

	t.Setenv("GCP_PROJECT_ID", "test-project")
	t.Setenv("DOCUMENTAI_LOCATION", "us")
	t.Setenv("DOCUMENTAI_PROCESSOR_ID", "proc-1")

	var gotReq gcp.DocAIProcessBytesRequest
	fd := &fakeDoc{processBytesFunc: func(ctx context.Context, req gcp.DocAIProcessBytesRequest) (*gcp.DocAIResult, error) {
		gotReq = req
		return &gcp.DocAIResult{
			Tables: [][][]string{{
				{"Fecha", "PP (g)", "Sob (%)"},
				{"03/03/2025", "1,0", "100"},
				{"10/03/2025", "2,5", "97"},
				{"17/03/2025", "4,0", "94"},
			}},
		}, nil
	}}

	bucket := newFakeBucket()
	deps := testDeps(t, tx, bucket, fd)
	acts := New(deps).Activities()

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	row := &types.ProjectionUpload{
		ID:          uuid.New(),
		CycleID:     cyc.ID,
		ObjectKey:   "cycles/" + cyc.ID.String() + "/uploads/plan.pdf",
		ContentType: "application/pdf",
		Version:     "v7",
		Status:      types.UploadPending,
	}
	if _, err := deps.Uploads.Create(dbc, row); err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	if err := bucket.UploadFile(ctx, row.ObjectKey, bytes.NewReader([]byte("%PDF-1.4 stub"))); err != nil {
		t.Fatalf("store pdf: %v", err)
	}

	res, err := acts.Extract(ctx, row.ID.String())
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if res.Status != types.UploadDone || res.Version != "v7" || res.HeaderID == "" {
		t.Fatalf("result=%+v", res)
	}
	if gotReq.ProjectID != "test-project" || gotReq.ProcessorID != "proc-1" || gotReq.MimeType != "application/pdf" {
		t.Fatalf("docai request=%+v", gotReq)
	}

	headerID, err := uuid.Parse(res.HeaderID)
	if err != nil {
		t.Fatalf("header id %q: %v", res.HeaderID, err)
	}
	h, err := deps.Headers.GetByID(dbc, headerID)
	if err != nil || h == nil {
		t.Fatalf("load header: %v %v", h, err)
	}
	if h.Version != "v7" || h.Source != types.SourceFromFile {
		t.Fatalf("header=%+v", h)
	}

	reloaded, err := deps.Uploads.GetByID(dbc, row.ID)
	if err != nil {
		t.Fatalf("reload upload: %v", err)
	}
	if reloaded.Status != types.UploadDone || reloaded.HeaderID == nil || *reloaded.HeaderID != headerID {
		t.Fatalf("row=%+v", reloaded)
	}

	// Re-delivery after completion is a no-op.
	again, err := acts.Extract(ctx, row.ID.String())
	if err != nil {
		t.Fatalf("second Extract: %v", err)
	}
	if again.Status != types.UploadDone || again.HeaderID != res.HeaderID {
		t.Fatalf("second result=%+v", again)
	}
	if fd.calls != 1 {
		t.Fatalf("processor calls=%d want 1", fd.calls)
	}
}

func TestExtract_DocProcessorMissingMarksRow(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))

	bucket := newFakeBucket()
	deps := testDeps(t, tx, bucket, nil)
	acts := New(deps).Activities()

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	row := &types.ProjectionUpload{
		ID:          uuid.New(),
		CycleID:     cyc.ID,
		ObjectKey:   "cycles/" + cyc.ID.String() + "/uploads/plan.pdf",
		ContentType: "application/pdf",
		Status:      types.UploadPending,
	}
	if _, err := deps.Uploads.Create(dbc, row); err != nil {
		t.Fatalf("seed upload: %v", err)
	}
	if err := bucket.UploadFile(ctx, row.ObjectKey, bytes.NewReader([]byte("%PDF-1.4 stub"))); err != nil {
		t.Fatalf("store pdf: %v", err)
	}

	_, err := acts.Extract(ctx, row.ID.String())
	wantCode(t, err, "docai_not_configured")

	reloaded, err := deps.Uploads.GetByID(dbc, row.ID)
	if err != nil {
		t.Fatalf("reload upload: %v", err)
	}
	if reloaded.Status != types.UploadFailed || !strings.Contains(reloaded.Error, "docai_not_configured") {
		t.Fatalf("row=%+v", reloaded)
	}
}

func TestExtract_MissingObjectIsRetryable(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))

	deps := testDeps(t, tx, newFakeBucket(), nil)
	acts := New(deps).Activities()

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	row := &types.ProjectionUpload{
		ID:        uuid.New(),
		CycleID:   cyc.ID,
		ObjectKey: "cycles/" + cyc.ID.String() + "/uploads/gone.csv",
		Status:    types.UploadPending,
	}
	if _, err := deps.Uploads.Create(dbc, row); err != nil {
		t.Fatalf("seed upload: %v", err)
	}

	_, err := acts.Extract(ctx, row.ID.String())
	if err == nil {
		t.Fatalf("missing object should fail the attempt")
	}
	// Storage trouble is left retryable, unlike parse errors.
	var ae *apierr.Error
	if errors.As(err, &ae) {
		t.Fatalf("infra failure must not map to an api error, got %v", err)
	}

	reloaded, err := deps.Uploads.GetByID(dbc, row.ID)
	if err != nil {
		t.Fatalf("reload upload: %v", err)
	}
	if reloaded.Status != types.UploadFailed {
		t.Fatalf("status=%q want failed while awaiting retry", reloaded.Status)
	}
}

func TestExtract_UnknownUpload(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	acts := New(testDeps(t, tx, newFakeBucket(), nil)).Activities()

	if _, err := acts.Extract(ctx, "not-a-uuid"); err == nil {
		t.Fatalf("bad id should fail")
	}
	if _, err := acts.Extract(ctx, uuid.New().String()); err == nil {
		t.Fatalf("unknown id should fail")
	}
}

func TestTruncateError(t *testing.T) {
	if got := truncateError(nil); got != "" {
		t.Fatalf("nil error=%q", got)
	}

	long := errors.New(strings.Repeat("x", 2*maxErrorChars))
	if got := truncateError(long); len(got) != maxErrorChars {
		t.Fatalf("len=%d want %d", len(got), maxErrorChars)
	}

	coded := apierr.Validation("empty_series", nil)
	if got := truncateError(coded); got != "empty_series" {
		t.Fatalf("coded=%q", got)
	}

	wrapped := apierr.Validation("type_error", errors.New("3 rows with non-numeric values"))
	if got := truncateError(wrapped); got != "type_error: 3 rows with non-numeric values" {
		t.Fatalf("wrapped=%q", got)
	}
}
