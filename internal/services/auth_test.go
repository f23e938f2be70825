package services

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/data/repos/testutil"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
)

func wantCode(tb testing.TB, err error, code string) {
	tb.Helper()
	var ae *apierr.Error
	if !errors.As(err, &ae) {
		tb.Fatalf("expected api error %q, got %v", code, err)
	}
	if ae.Code != code {
		tb.Fatalf("code=%q want %q", ae.Code, code)
	}
}

func newAuthForTest(tb testing.TB, tx *gorm.DB, accessTTL, refreshTTL time.Duration) AuthService {
	tb.Helper()
	log := testutil.Logger(tb)
	return NewAuthService(tx, log,
		repos.NewUserRepo(tx, log),
		repos.NewUserTokenRepo(tx, log),
		"test-signing-secret", accessTTL, refreshTTL)
}

func TestCheckPasswordStrength(t *testing.T) {
	wantCode(t, checkPasswordStrength("ab1"), "weak_password")
	wantCode(t, checkPasswordStrength("onlyletters"), "weak_password")
	wantCode(t, checkPasswordStrength("12345678"), "weak_password")
	if err := checkPasswordStrength("shrimp2025"); err != nil {
		t.Fatalf("good password rejected: %v", err)
	}
}

func TestRegister_InputValidation(t *testing.T) {
	// Input checks run before any database work.
	svc := NewAuthService(nil, testutil.Logger(t), nil, nil, "s", time.Minute, time.Hour)
	ctx := context.Background()

	_, err := svc.Register(ctx, RegisterInput{Email: "not-an-email", Password: "shrimp2025", FirstName: "A", LastName: "B"})
	wantCode(t, err, "invalid_email")

	_, err = svc.Register(ctx, RegisterInput{Email: "ana@acme.mx", Password: "short1", FirstName: "A", LastName: "B"})
	wantCode(t, err, "weak_password")

	_, err = svc.Register(ctx, RegisterInput{Email: "ana@acme.mx", Password: "shrimp2025", FirstName: " ", LastName: "B"})
	wantCode(t, err, "name_required")

	_, err = svc.Register(ctx, RegisterInput{Email: "ana@acme.mx", Password: "shrimp2025", FirstName: "A", LastName: "B", Role: "superuser"})
	wantCode(t, err, "invalid_role")
}

func TestParseAccess(t *testing.T) {
	svc := NewAuthService(nil, testutil.Logger(t), nil, nil, "test-signing-secret", 15*time.Minute, time.Hour)
	userID := uuid.New()

	sign := func(secret string, expiresAt time.Time) string {
		claims := accessClaims{
			Role: "manager",
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   userID.String(),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
				ExpiresAt: jwt.NewNumericDate(expiresAt),
			},
		}
		tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return tok
	}

	rd, err := svc.ParseAccess(sign("test-signing-secret", time.Now().Add(time.Minute)))
	if err != nil {
		t.Fatalf("valid token rejected: %v", err)
	}
	if rd.UserID != userID || rd.Role != "manager" {
		t.Fatalf("request data %+v", rd)
	}

	_, err = svc.ParseAccess(sign("wrong-secret", time.Now().Add(time.Minute)))
	wantCode(t, err, "invalid_token")

	_, err = svc.ParseAccess(sign("test-signing-secret", time.Now().Add(-time.Minute)))
	wantCode(t, err, "invalid_token")

	_, err = svc.ParseAccess("garbage")
	wantCode(t, err, "invalid_token")
}

func TestRegisterLoginRefreshLogout(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()
	svc := newAuthForTest(t, tx, 15*time.Minute, 30*24*time.Hour)

	created, err := svc.Register(ctx, RegisterInput{
		Email:     "  Ana.Lopez@Acme.MX ",
		Password:  "shrimp2025",
		FirstName: "Ana",
		LastName:  "López",
	})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if created.Email != "ana.lopez@acme.mx" {
		t.Fatalf("email not normalized: %q", created.Email)
	}
	if created.Role != "operator" {
		t.Fatalf("default role %q", created.Role)
	}
	if !strings.HasPrefix(created.Password, "$2") {
		t.Fatalf("password not bcrypt-hashed")
	}

	_, err = svc.Register(ctx, RegisterInput{
		Email: "ana.lopez@acme.mx", Password: "shrimp2025", FirstName: "X", LastName: "Y",
	})
	wantCode(t, err, "email_exists")

	_, _, err = svc.Login(ctx, "ana.lopez@acme.mx", "wrong-pass-1")
	wantCode(t, err, "invalid_credentials")
	_, _, err = svc.Login(ctx, "nobody@acme.mx", "shrimp2025")
	wantCode(t, err, "invalid_credentials")

	user, pair, err := svc.Login(ctx, "ANA.LOPEZ@acme.mx", "shrimp2025")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if user.ID != created.ID {
		t.Fatalf("login user %s want %s", user.ID, created.ID)
	}
	rd, err := svc.ParseAccess(pair.AccessToken)
	if err != nil {
		t.Fatalf("parse access: %v", err)
	}
	if rd.UserID != created.ID || rd.Role != "operator" {
		t.Fatalf("access claims %+v", rd)
	}

	// Rotation kills the presented token.
	next, err := svc.Refresh(ctx, pair.RefreshToken)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if next.RefreshToken == pair.RefreshToken {
		t.Fatalf("refresh token not rotated")
	}
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	wantCode(t, err, "invalid_refresh_token")

	if err := svc.Logout(ctx, next.RefreshToken); err != nil {
		t.Fatalf("logout: %v", err)
	}
	_, err = svc.Refresh(ctx, next.RefreshToken)
	wantCode(t, err, "invalid_refresh_token")
	// Logging out a dead session is a no-op.
	if err := svc.Logout(ctx, next.RefreshToken); err != nil {
		t.Fatalf("second logout: %v", err)
	}
}

func TestRefresh_ExpiredToken(t *testing.T) {
	gdb := testutil.DB(t)
	tx := testutil.Tx(t, gdb)
	ctx := context.Background()

	// Negative refresh TTL mints tokens that are already expired.
	svc := newAuthForTest(t, tx, 15*time.Minute, -time.Hour)
	if _, err := svc.Register(ctx, RegisterInput{
		Email: "caduco@acme.mx", Password: "shrimp2025", FirstName: "C", LastName: "D",
	}); err != nil {
		t.Fatalf("register: %v", err)
	}
	_, pair, err := svc.Login(ctx, "caduco@acme.mx", "shrimp2025")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	_, err = svc.Refresh(ctx, pair.RefreshToken)
	wantCode(t, err, "invalid_refresh_token")
}
