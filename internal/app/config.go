package app

import (
	"time"

	"github.com/aquaforge/pondops-backend/internal/platform/envutil"
)

type Config struct {
	Port        string
	Environment string
	Version     string

	JWTSecretKey    string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration

	// Empty disables the Prometheus endpoint.
	MetricsAddr string

	// How often expired refresh tokens are purged.
	TokenSweepInterval time.Duration
}

func LoadConfig() Config {
	return Config{
		Port:        envutil.String("PORT", "8080"),
		Environment: envutil.String("APP_ENV", "development"),
		Version:     envutil.String("APP_VERSION", "dev"),

		JWTSecretKey:    envutil.String("JWT_SECRET_KEY", "defaultsecret"),
		AccessTokenTTL:  time.Duration(envutil.Int("ACCESS_TOKEN_TTL", 3600)) * time.Second,
		RefreshTokenTTL: time.Duration(envutil.Int("REFRESH_TOKEN_TTL", 86400)) * time.Second,

		MetricsAddr: envutil.String("METRICS_ADDR", ":9091"),

		TokenSweepInterval: time.Duration(envutil.Int("TOKEN_SWEEP_INTERVAL_SECONDS", 3600)) * time.Second,
	}
}
