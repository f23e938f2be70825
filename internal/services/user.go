package services

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	types "github.com/aquaforge/pondops-backend/internal/domain"
	"github.com/aquaforge/pondops-backend/internal/pkg/dbctx"
	"github.com/aquaforge/pondops-backend/internal/platform/apierr"
	"github.com/aquaforge/pondops-backend/internal/platform/ctxutil"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type UserService interface {
	GetMe(dbc dbctx.Context) (*types.User, error)
	UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error)
	ChangePassword(ctx context.Context, currentPassword, newPassword string) error
}

type userService struct {
	db     *gorm.DB
	log    *logger.Logger
	users  repos.UserRepo
	tokens repos.UserTokenRepo
}

func NewUserService(db *gorm.DB, baseLog *logger.Logger, users repos.UserRepo, tokens repos.UserTokenRepo) UserService {
	return &userService{
		db:     db,
		log:    baseLog.With("service", "UserService"),
		users:  users,
		tokens: tokens,
	}
}

func (us *userService) GetMe(dbc dbctx.Context) (*types.User, error) {
	rd := ctxutil.GetRequestData(dbc.Ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("no authenticated user in context"))
	}
	found, err := us.users.GetByID(dbc, rd.UserID)
	if err != nil {
		return nil, err
	}
	if found == nil {
		return nil, apierr.NotFound("user_not_found", fmt.Errorf("user %s does not exist", rd.UserID))
	}
	return found, nil
}

func (us *userService) UpdateName(ctx context.Context, firstName, lastName string) (*types.User, error) {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return nil, apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("no authenticated user in context"))
	}
	firstName = strings.TrimSpace(firstName)
	lastName = strings.TrimSpace(lastName)
	if firstName == "" || lastName == "" {
		return nil, apierr.Validation("name_required", fmt.Errorf("first and last name are required"))
	}

	var out *types.User
	if err := us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		if err := us.users.UpdateName(dbc, rd.UserID, firstName, lastName); err != nil {
			return err
		}
		reloaded, err := us.users.GetByID(dbc, rd.UserID)
		if err != nil {
			return err
		}
		if reloaded == nil {
			return apierr.NotFound("user_not_found", fmt.Errorf("user %s does not exist", rd.UserID))
		}
		out = reloaded
		return nil
	}); err != nil {
		return nil, err
	}
	return out, nil
}

func (us *userService) ChangePassword(ctx context.Context, currentPassword, newPassword string) error {
	rd := ctxutil.GetRequestData(ctx)
	if rd == nil || rd.UserID == uuid.Nil {
		return apierr.New(http.StatusUnauthorized, "unauthorized", fmt.Errorf("no authenticated user in context"))
	}
	if err := checkPasswordStrength(newPassword); err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	return us.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		dbc := dbctx.Context{Ctx: ctx, Tx: tx}
		found, err := us.users.GetByID(dbc, rd.UserID)
		if err != nil {
			return err
		}
		if found == nil {
			return apierr.NotFound("user_not_found", fmt.Errorf("user %s does not exist", rd.UserID))
		}
		if err := bcrypt.CompareHashAndPassword([]byte(found.Password), []byte(currentPassword)); err != nil {
			return apierr.New(http.StatusUnauthorized, "invalid_current_password", fmt.Errorf("current password mismatch"))
		}
		if err := us.users.UpdatePassword(dbc, rd.UserID, string(hash)); err != nil {
			return err
		}
		// A password change ends every outstanding refresh session.
		return us.tokens.RevokeAllForUser(dbc, rd.UserID)
	})
}
