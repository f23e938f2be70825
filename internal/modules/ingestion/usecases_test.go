package ingestion

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/data/repos/testutil"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/gcp"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeBucket() *fakeBucket { return &fakeBucket{objects: map[string][]byte{}} }

func (b *fakeBucket) UploadFile(ctx context.Context, key string, r io.Reader) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *fakeBucket) DownloadFile(ctx context.Context, key string) (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *fakeBucket) DeleteFile(ctx context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objects, key)
	return nil
}

func (b *fakeBucket) GetObjectAttrs(ctx context.Context, key string) (*gcp.ObjectAttrs, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %q not found", key)
	}
	return &gcp.ObjectAttrs{Size: int64(len(data))}, nil
}

func (b *fakeBucket) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for k := range b.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	return keys, nil
}

func (b *fakeBucket) GetPublicURL(key string) string { return "fake://" + key }

func (b *fakeBucket) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type fakeDoc struct {
	calls            int
	processBytesFunc func(ctx context.Context, req gcp.DocAIProcessBytesRequest) (*gcp.DocAIResult, error)
}

func (d *fakeDoc) ProcessBytes(ctx context.Context, req gcp.DocAIProcessBytesRequest) (*gcp.DocAIResult, error) {
	d.calls++
	return d.processBytesFunc(ctx, req)
}

func (d *fakeDoc) Close() error { return nil }

func testDeps(tb testing.TB, tx *gorm.DB, bucket gcp.BucketService, docs gcp.Document) UsecasesDeps {
	tb.Helper()
	log := testutil.Logger(tb)
	proj := projection.New(projection.UsecasesDeps{
		DB:        tx,
		Log:       log,
		Cycles:    repos.NewCycleRepo(tx, log),
		Seeding:   repos.NewSeedingPlanRepo(tx, log),
		Headers:   repos.NewProjectionHeaderRepo(tx, log),
		Lines:     repos.NewProjectionLineRepo(tx, log),
		Ponds:     repos.NewPondRepo(tx, log),
		Waves:     repos.NewHarvestWaveRepo(tx, log),
		WaveLines: repos.NewHarvestWaveLineRepo(tx, log),
		Biometry:  repos.NewBiometryRepo(tx, log),
	})
	return UsecasesDeps{
		Log:         log,
		Cycles:      repos.NewCycleRepo(tx, log),
		Uploads:     repos.NewProjectionUploadRepo(tx, log),
		Headers:     repos.NewProjectionHeaderRepo(tx, log),
		Projections: proj,
		Bucket:      bucket,
		Docs:        docs,
	}
}

func TestUploadProjection_InputGuards(t *testing.T) {
	// These guards fire before any dependency is touched.
	u := New(UsecasesDeps{})
	ctx := context.Background()

	_, err := u.UploadProjection(ctx, UploadInput{CycleID: uuid.New(), FileName: "plan.csv"})
	wantCode(t, err, "empty_file")

	_, err = u.UploadProjection(ctx, UploadInput{
		CycleID:  uuid.New(),
		FileName: "plan.csv",
		Data:     make([]byte, maxUploadBytes+1),
	})
	wantCode(t, err, "file_too_large")

	_, err = u.UploadProjection(ctx, UploadInput{
		CycleID:     uuid.New(),
		FileName:    "plan.docx",
		ContentType: "application/msword",
		Data:        []byte("x"),
	})
	wantCode(t, err, "unsupported_file_type")
}

func TestUploadKind(t *testing.T) {
	cases := []struct {
		name        string
		contentType string
		wantExt     string
		wantMime    string
		wantOK      bool
	}{
		{"plan.csv", "", ".csv", "text/csv", true},
		{"PLAN.CSV", "", ".csv", "text/csv", true},
		{"data", "text/csv; charset=utf-8", ".csv", "text/csv", true},
		{"report.pdf", "", ".pdf", "application/pdf", true},
		{"blob", "application/pdf", ".pdf", "application/pdf", true},
		{"plan.xlsx", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "", "", false},
		{"", "", "", "", false},
	}
	for _, tc := range cases {
		ext, mime, ok := uploadKind(tc.name, tc.contentType)
		if ext != tc.wantExt || mime != tc.wantMime || ok != tc.wantOK {
			t.Fatalf("uploadKind(%q, %q)=(%q, %q, %v) want (%q, %q, %v)",
				tc.name, tc.contentType, ext, mime, ok, tc.wantExt, tc.wantMime, tc.wantOK)
		}
	}
}

func TestBaseFileName(t *testing.T) {
	cases := []struct{ in, want string }{
		{"plan.csv", "plan.csv"},
		{"/tmp/exports/plan.csv", "plan.csv"},
		{`C:\Users\ana\plan semanal.csv`, "plan semanal.csv"},
		{"  plan.pdf  ", "plan.pdf"},
		{"", ""},
	}
	for _, tc := range cases {
		if got := baseFileName(tc.in); got != tc.want {
			t.Fatalf("baseFileName(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestUploadProjection_InlineCSVFlow(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))

	bucket := newFakeBucket()
	deps := testDeps(t, tx, bucket, nil)
	u := New(deps)

	csvData := "fecha;pp;sob\n" +
		"03/03/2025;1,0;100\n" +
		"10/03/2025;2,5;97,5\n" +
		"17/03/2025;4,0;95\n"

	up, err := u.UploadProjection(ctx, UploadInput{
		CycleID:     cyc.ID,
		FileName:    "plan_semanal.csv",
		ContentType: "text/csv",
		Data:        []byte(csvData),
	})
	if err != nil {
		t.Fatalf("UploadProjection: %v", err)
	}

	if up.Status != types.UploadDone {
		t.Fatalf("status=%q want done (error=%q)", up.Status, up.Error)
	}
	if up.OriginalName != "plan_semanal.csv" || up.ContentType != "text/csv" {
		t.Fatalf("row=%+v", up)
	}
	wantKey := fmt.Sprintf("cycles/%s/uploads/%s.csv", cyc.ID, up.ID)
	if up.ObjectKey != wantKey {
		t.Fatalf("object key=%q want %q", up.ObjectKey, wantKey)
	}
	if _, ok := bucket.objects[wantKey]; !ok {
		t.Fatalf("uploaded object missing from bucket")
	}
	if up.HeaderID == nil {
		t.Fatalf("processed upload must link its header")
	}

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	h, err := deps.Headers.GetByID(dbc, *up.HeaderID)
	if err != nil || h == nil {
		t.Fatalf("load header: %v %v", h, err)
	}
	if h.Source != types.SourceFromFile {
		t.Fatalf("source=%q want from_file", h.Source)
	}
	// First projection of the cycle publishes immediately.
	if h.Version != "v1" || h.Status != types.ProjectionPublished || !h.IsCurrent {
		t.Fatalf("header=%+v", h)
	}
}

func TestUploadProjection_DraftConflictBeforeStore(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	testutil.SeedHeader(t, ctx, tx, cyc.ID, "v1", types.ProjectionDraft, false)

	bucket := newFakeBucket()
	u := New(testDeps(t, tx, bucket, nil))

	_, err := u.UploadProjection(ctx, UploadInput{
		CycleID:  cyc.ID,
		FileName: "plan.csv",
		Data:     []byte("fecha,pp,sob\n2025-03-03,1,100\n"),
	})
	wantCode(t, err, "draft_projection_already_exists")

	if bucket.len() != 0 {
		t.Fatalf("conflicting upload must not reach storage")
	}
}

func TestUploadProjection_CycleGuards(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	u := New(testDeps(t, tx, newFakeBucket(), nil))
	in := UploadInput{
		CycleID:  uuid.New(),
		FileName: "plan.csv",
		Data:     []byte("fecha,pp,sob\n2025-03-03,1,100\n"),
	}
	_, err := u.UploadProjection(ctx, in)
	wantCode(t, err, "cycle_not_found")

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))
	cyc.Status = types.CycleClosed
	if err := tx.WithContext(ctx).Save(cyc).Error; err != nil {
		t.Fatalf("close cycle: %v", err)
	}
	in.CycleID = cyc.ID
	_, err = u.UploadProjection(ctx, in)
	wantCode(t, err, "cycle_closed")
}

func TestUploadProjection_ParseFailureMarksRow(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))

	bucket := newFakeBucket()
	deps := testDeps(t, tx, bucket, nil)
	u := New(deps)

	// Parses as CSV but lacks the survival column.
	_, err := u.UploadProjection(ctx, UploadInput{
		CycleID:  cyc.ID,
		FileName: "plan.csv",
		Data:     []byte("fecha,pp\n2025-03-03,1\n"),
	})
	wantCode(t, err, "missing_required_columns")

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	rows, err := deps.Uploads.ListByCycle(dbc, cyc.ID)
	if err != nil {
		t.Fatalf("list uploads: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("rows=%d want 1", len(rows))
	}
	row := rows[0]
	if row.Status != types.UploadFailed {
		t.Fatalf("status=%q want failed", row.Status)
	}
	if !strings.Contains(row.Error, "missing_required_columns") {
		t.Fatalf("error=%q", row.Error)
	}
	if row.HeaderID != nil {
		t.Fatalf("failed upload must not link a header")
	}
	// The raw document stays stored for inspection.
	if bucket.len() != 1 {
		t.Fatalf("objects=%d want 1", bucket.len())
	}
}

func TestGetAndListUploads(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	farm := testutil.SeedFarm(t, ctx, tx, "La Perla")
	cyc := testutil.SeedCycle(t, ctx, tx, farm.ID, day(2025, 3, 3))

	deps := testDeps(t, tx, newFakeBucket(), nil)
	u := New(deps)

	_, err := u.GetUpload(ctx, uuid.New())
	wantCode(t, err, "upload_not_found")

	_, err = u.ListUploads(ctx, uuid.New())
	wantCode(t, err, "cycle_not_found")

	dbc := dbctx.Context{Ctx: ctx, Tx: tx}
	row := &types.ProjectionUpload{
		ID:        uuid.New(),
		CycleID:   cyc.ID,
		ObjectKey: "cycles/x/uploads/y.csv",
		Status:    types.UploadPending,
	}
	if _, err := deps.Uploads.Create(dbc, row); err != nil {
		t.Fatalf("seed upload: %v", err)
	}

	got, err := u.GetUpload(ctx, row.ID)
	if err != nil {
		t.Fatalf("GetUpload: %v", err)
	}
	if got.ID != row.ID {
		t.Fatalf("got=%+v", got)
	}

	rows, err := u.ListUploads(ctx, cyc.ID)
	if err != nil {
		t.Fatalf("ListUploads: %v", err)
	}
	if len(rows) != 1 || rows[0].ID != row.ID {
		t.Fatalf("rows=%+v", rows)
	}
}
