package services

import (
	"context"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/data/repos/testutil"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/ctxutil"
)

func newUserForTest(tb testing.TB, tx *gorm.DB) UserService {
	tb.Helper()
	log := testutil.Logger(tb)
	return NewUserService(tx, log, repos.NewUserRepo(tx, log), repos.NewUserTokenRepo(tx, log))
}

func TestGetMe(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	auth := newAuthForTest(t, tx, 15*time.Minute, time.Hour)
	svc := newUserForTest(t, tx)

	created, err := auth.Register(ctx, RegisterInput{
		Email: "mariana@acme.mx", Password: "shrimp2025", FirstName: "Mariana", LastName: "Ríos",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	_, err = svc.GetMe(dbctx.Context{Ctx: ctx, Tx: tx})
	wantCode(t, err, "unauthorized")

	authed := ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: created.ID, Role: created.Role})
	me, err := svc.GetMe(dbctx.Context{Ctx: authed, Tx: tx})
	if err != nil {
		t.Fatalf("getme: %v", err)
	}
	if me.Email != "mariana@acme.mx" {
		t.Fatalf("email %q", me.Email)
	}
}

func TestUpdateName(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	auth := newAuthForTest(t, tx, 15*time.Minute, time.Hour)
	svc := newUserForTest(t, tx)

	created, err := auth.Register(ctx, RegisterInput{
		Email: "nombre@acme.mx", Password: "shrimp2025", FirstName: "Before", LastName: "Change",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	authed := ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: created.ID, Role: created.Role})

	_, err = svc.UpdateName(authed, "  ", "Ríos")
	wantCode(t, err, "name_required")

	got, err := svc.UpdateName(authed, "  Mariana ", "Ríos")
	if err != nil {
		t.Fatalf("update name: %v", err)
	}
	if got.FirstName != "Mariana" || got.LastName != "Ríos" {
		t.Fatalf("name %q %q", got.FirstName, got.LastName)
	}
}

func TestChangePassword_RevokesSessions(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	auth := newAuthForTest(t, tx, 15*time.Minute, time.Hour)
	svc := newUserForTest(t, tx)

	created, err := auth.Register(ctx, RegisterInput{
		Email: "clave@acme.mx", Password: "shrimp2025", FirstName: "K", LastName: "L",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	_, pair, err := auth.Login(ctx, "clave@acme.mx", "shrimp2025")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	authed := ctxutil.WithRequestData(ctx, &ctxutil.RequestData{UserID: created.ID, Role: created.Role})

	err = svc.ChangePassword(authed, "wrong-current1", "newpass2026")
	wantCode(t, err, "invalid_current_password")

	err = svc.ChangePassword(authed, "shrimp2025", "weak")
	wantCode(t, err, "weak_password")

	if err := svc.ChangePassword(authed, "shrimp2025", "newpass2026"); err != nil {
		t.Fatalf("change password: %v", err)
	}

	// Old sessions die with the old password.
	_, err = auth.Refresh(ctx, pair.RefreshToken)
	wantCode(t, err, "invalid_refresh_token")

	_, _, err = auth.Login(ctx, "clave@acme.mx", "shrimp2025")
	wantCode(t, err, "invalid_credentials")
	if _, _, err := auth.Login(ctx, "clave@acme.mx", "newpass2026"); err != nil {
		t.Fatalf("login with new password: %v", err)
	}
}
