package services

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/normalization"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/ctxutil"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

// TokenPair is what a successful login or refresh hands back: a short-lived
// signed access token and an opaque refresh token. The refresh token is shown
// to the client exactly once; only its SHA-256 is stored.
type TokenPair struct {
	AccessToken     string    `json:"access_token"`
	RefreshToken    string    `json:"refresh_token"`
	AccessExpiresAt time.Time `json:"access_expires_at"`
}

type RegisterInput struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}

type AuthService interface {
	Register(ctx context.Context, input RegisterInput) (*types.User, error)
	Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*TokenPair, error)
	Logout(ctx context.Context, refreshToken string) error
	ParseAccess(tokenString string) (*ctxutil.RequestData, error)
	CleanupExpired(ctx context.Context) (int64, error)
	AccessTTL() time.Duration
}

type accessClaims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

type authService struct {
	db         *gorm.DB
	log        *logger.Logger
	users      repos.UserRepo
	tokens     repos.UserTokenRepo
	jwtSecret  []byte
	accessTTL  time.Duration
	refreshTTL time.Duration
}

func NewAuthService(
	db *gorm.DB,
	baseLog *logger.Logger,
	users repos.UserRepo,
	tokens repos.UserTokenRepo,
	jwtSecret string,
	accessTTL time.Duration,
	refreshTTL time.Duration,
) AuthService {
	return &authService{
		db:         db,
		log:        baseLog.With("service", "AuthService"),
		users:      users,
		tokens:     tokens,
		jwtSecret:  []byte(jwtSecret),
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
	}
}

func (s *authService) Register(ctx context.Context, input RegisterInput) (*types.User, error) {
	email := normalization.ParseInputString(input.Email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apierr.Validation("invalid_email", fmt.Errorf("register: %w", err))
	}
	if err := checkPasswordStrength(input.Password); err != nil {
		return nil, err
	}
	firstName := strings.TrimSpace(input.FirstName)
	lastName := strings.TrimSpace(input.LastName)
	if firstName == "" || lastName == "" {
		return nil, apierr.Validation("name_required", fmt.Errorf("first and last name are required"))
	}
	role := strings.TrimSpace(input.Role)
	if role == "" {
		role = types.RoleOperator
	}
	switch role {
	case types.RoleAdmin, types.RoleManager, types.RoleOperator:
	default:
		return nil, apierr.Validation("invalid_role", fmt.Errorf("unknown role %q", input.Role))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	var created *types.User
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		exists, err := s.users.EmailExists(dbc, email)
		if err != nil {
			return err
		}
		if exists {
			return apierr.Conflict("email_exists", fmt.Errorf("email %s is already registered", email))
		}
		created, err = s.users.Create(dbc, &types.User{
			Email:     email,
			Password:  string(hash),
			FirstName: firstName,
			LastName:  lastName,
			Role:      role,
		})
		return err
	}); err != nil {
		return nil, err
	}

	s.log.Info("user registered", "user_id", created.ID, "role", created.Role)
	return created, nil
}

func (s *authService) Login(ctx context.Context, email, password string) (*types.User, *TokenPair, error) {
	email = normalization.ParseInputString(email)
	found, err := s.users.GetByEmail(dbctx.Context{Ctx: ctx}, email)
	if err != nil {
		return nil, nil, fmt.Errorf("login lookup: %w", err)
	}
	// Same code for a missing account and a wrong password.
	if found == nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("unknown email"))
	}
	if err := bcrypt.CompareHashAndPassword([]byte(found.Password), []byte(password)); err != nil {
		return nil, nil, apierr.New(http.StatusUnauthorized, "invalid_credentials", fmt.Errorf("password mismatch"))
	}

	var pair *TokenPair
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		p, err := s.issueTokens(dbctx.Context{Ctx: ctx, Tx: tx}, found)
		if err != nil {
			return err
		}
		pair = p
		return nil
	}); err != nil {
		return nil, nil, err
	}

	s.log.Info("user logged in", "user_id", found.ID)
	return found, pair, nil
}

func (s *authService) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return nil, apierr.New(http.StatusUnauthorized, "refresh_token_required", fmt.Errorf("empty refresh token"))
	}

	var pair *TokenPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.tokens.GetByHash(dbc, hashToken(refreshToken))
		if err != nil {
			return fmt.Errorf("refresh lookup: %w", err)
		}
		if row == nil {
			return apierr.New(http.StatusUnauthorized, "invalid_refresh_token", fmt.Errorf("unknown or revoked refresh token"))
		}
		if time.Now().After(row.ExpiresAt) {
			return apierr.New(http.StatusUnauthorized, "invalid_refresh_token", fmt.Errorf("refresh token expired"))
		}
		user, err := s.users.GetByID(dbc, row.UserID)
		if err != nil {
			return fmt.Errorf("refresh user lookup: %w", err)
		}
		if user == nil {
			return apierr.New(http.StatusUnauthorized, "invalid_refresh_token", fmt.Errorf("token user no longer exists"))
		}
		// Rotation: the presented token dies in the same transaction that
		// grants its successor.
		if err := s.tokens.RevokeByID(dbc, row.ID); err != nil {
			return fmt.Errorf("revoke rotated token: %w", err)
		}
		pair, err = s.issueTokens(dbc, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return pair, nil
}

func (s *authService) Logout(ctx context.Context, refreshToken string) error {
	if strings.TrimSpace(refreshToken) == "" {
		return nil
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		row, err := s.tokens.GetByHash(dbc, hashToken(refreshToken))
		if err != nil {
			return fmt.Errorf("logout lookup: %w", err)
		}
		// Logging out an already-dead session is not an error.
		if row == nil {
			return nil
		}
		return s.tokens.RevokeByID(dbc, row.ID)
	})
}

// ParseAccess validates a signed access token and returns the identity it
// carries. Used by the auth middleware on every request.
func (s *authService) ParseAccess(tokenString string) (*ctxutil.RequestData, error) {
	parsed, err := jwt.ParseWithClaims(tokenString, &accessClaims{}, func(t *jwt.Token) (interface{}, error) {
		return s.jwtSecret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_token", err)
	}
	claims, ok := parsed.Claims.(*accessClaims)
	if !ok || !parsed.Valid {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("unexpected claims"))
	}
	userID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return nil, apierr.New(http.StatusUnauthorized, "invalid_token", fmt.Errorf("subject is not a user id: %w", err))
	}
	return &ctxutil.RequestData{UserID: userID, Role: claims.Role}, nil
}

// CleanupExpired hard-deletes refresh tokens whose expiry has passed.
// Meant for a periodic janitor, not the request path.
func (s *authService) CleanupExpired(ctx context.Context) (int64, error) {
	return s.tokens.DeleteExpired(dbctx.Context{Ctx: ctx}, time.Now().UTC())
}

func (s *authService) AccessTTL() time.Duration { return s.accessTTL }

func (s *authService) issueTokens(dbc dbctx.Context, user *types.User) (*TokenPair, error) {
	now := time.Now().UTC()
	accessExpiry := now.Add(s.accessTTL)
	claims := accessClaims{
		Role: user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(accessExpiry),
		},
	}
	access, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.jwtSecret)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}

	refresh, err := newRefreshToken()
	if err != nil {
		return nil, err
	}
	if _, err := s.tokens.Create(dbc, &types.UserToken{
		UserID:    user.ID,
		TokenHash: hashToken(refresh),
		ExpiresAt: now.Add(s.refreshTTL),
	}); err != nil {
		return nil, fmt.Errorf("persist refresh token: %w", err)
	}

	return &TokenPair{AccessToken: access, RefreshToken: refresh, AccessExpiresAt: accessExpiry}, nil
}

// newRefreshToken mints an opaque 256-bit token. Callers store only its hash.
func newRefreshToken() (string, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("refresh token entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

func hashToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// checkPasswordStrength enforces the minimum policy: eight characters with at
// least one letter and one digit.
func checkPasswordStrength(password string) error {
	if len(password) < 8 {
		return apierr.Validation("weak_password", fmt.Errorf("password must be at least 8 characters"))
	}
	var hasLetter, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsLetter(r):
			hasLetter = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasLetter || !hasDigit {
		return apierr.Validation("weak_password", fmt.Errorf("password must mix letters and digits"))
	}
	return nil
}
