package db

import (
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/aquaforge/pondops-backend/internal/platform/envutil"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

// Service owns the GORM handle. Postgres is the primary driver; sqlite
// serves local runs and throwaway environments (DB_DRIVER=sqlite).
type Service struct {
	db     *gorm.DB
	log    *logger.Logger
	driver string
}

func New(logg *logger.Logger) (*Service, error) {
	serviceLog := logg.With("service", "DBService")

	driver := strings.ToLower(envutil.String("DB_DRIVER", "postgres"))

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             1 * time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	}

	switch driver {
	case "sqlite":
		path := envutil.String("SQLITE_PATH", "pondops.db")
		gdb, err := gorm.Open(sqlite.Open(path), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to open sqlite at %s: %w", path, err)
		}
		serviceLog.Warn("running on sqlite; intended for local and throwaway environments", "path", path)
		return &Service{db: gdb, log: serviceLog, driver: driver}, nil

	case "postgres":
		dsn := fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=%s",
			envutil.String("POSTGRES_USER", "postgres"),
			envutil.String("POSTGRES_PASSWORD", ""),
			envutil.String("POSTGRES_HOST", "localhost"),
			envutil.String("POSTGRES_PORT", "5432"),
			envutil.String("POSTGRES_NAME", "pondops"),
			envutil.String("POSTGRES_SSLMODE", "disable"),
		)
		gdb, err := gorm.Open(postgres.Open(dsn), cfg)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
		}
		return &Service{db: gdb, log: serviceLog, driver: driver}, nil

	default:
		return nil, fmt.Errorf("unknown DB_DRIVER %q", driver)
	}
}

func (s *Service) DB() *gorm.DB   { return s.db }
func (s *Service) Driver() string { return s.driver }

func (s *Service) AutoMigrate() error {
	return AutoMigrateAll(s.db)
}
