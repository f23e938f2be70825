package app

import (
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/services"
)

type Services struct {
	Auth services.AuthService
	User services.UserService
}

func wireServices(db *gorm.DB, log *logger.Logger, cfg Config, reposet Repos) Services {
	log.Info("Wiring services...")
	return Services{
		Auth: services.NewAuthService(
			db, log,
			reposet.User, reposet.UserToken,
			cfg.JWTSecretKey, cfg.AccessTokenTTL, cfg.RefreshTokenTTL,
		),
		User: services.NewUserService(db, log, reposet.User, reposet.UserToken),
	}
}
