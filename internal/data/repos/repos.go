package repos

import (
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos/auth"
	"github.com/aquaforge/pondops-backend/internal/data/repos/cycle"
	"github.com/aquaforge/pondops-backend/internal/data/repos/harvest"
	"github.com/aquaforge/pondops-backend/internal/data/repos/ingestion"
	"github.com/aquaforge/pondops-backend/internal/data/repos/projection"
	"github.com/aquaforge/pondops-backend/internal/data/repos/sampling"
	"github.com/aquaforge/pondops-backend/internal/data/repos/tenancy"
	"github.com/aquaforge/pondops-backend/internal/data/repos/user"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type UserRepo = user.UserRepo
type UserTokenRepo = auth.UserTokenRepo

type FarmRepo = tenancy.FarmRepo
type PondRepo = tenancy.PondRepo

type CycleRepo = cycle.CycleRepo
type SeedingPlanRepo = cycle.SeedingPlanRepo

type ProjectionHeaderRepo = projection.HeaderRepo
type ProjectionLineRepo = projection.LineRepo

type BiometryRepo = sampling.BiometryRepo
type SurvivalChangeRepo = sampling.SurvivalChangeRepo

type HarvestWaveRepo = harvest.WaveRepo
type HarvestWaveLineRepo = harvest.WaveLineRepo

type ProjectionUploadRepo = ingestion.UploadRepo

func NewUserRepo(db *gorm.DB, baseLog *logger.Logger) UserRepo { return user.NewUserRepo(db, baseLog) }
func NewUserTokenRepo(db *gorm.DB, baseLog *logger.Logger) UserTokenRepo {
	return auth.NewUserTokenRepo(db, baseLog)
}

func NewFarmRepo(db *gorm.DB, baseLog *logger.Logger) FarmRepo {
	return tenancy.NewFarmRepo(db, baseLog)
}
func NewPondRepo(db *gorm.DB, baseLog *logger.Logger) PondRepo {
	return tenancy.NewPondRepo(db, baseLog)
}

func NewCycleRepo(db *gorm.DB, baseLog *logger.Logger) CycleRepo {
	return cycle.NewCycleRepo(db, baseLog)
}
func NewSeedingPlanRepo(db *gorm.DB, baseLog *logger.Logger) SeedingPlanRepo {
	return cycle.NewSeedingPlanRepo(db, baseLog)
}

func NewProjectionHeaderRepo(db *gorm.DB, baseLog *logger.Logger) ProjectionHeaderRepo {
	return projection.NewHeaderRepo(db, baseLog)
}
func NewProjectionLineRepo(db *gorm.DB, baseLog *logger.Logger) ProjectionLineRepo {
	return projection.NewLineRepo(db, baseLog)
}

func NewBiometryRepo(db *gorm.DB, baseLog *logger.Logger) BiometryRepo {
	return sampling.NewBiometryRepo(db, baseLog)
}
func NewSurvivalChangeRepo(db *gorm.DB, baseLog *logger.Logger) SurvivalChangeRepo {
	return sampling.NewSurvivalChangeRepo(db, baseLog)
}

func NewHarvestWaveRepo(db *gorm.DB, baseLog *logger.Logger) HarvestWaveRepo {
	return harvest.NewWaveRepo(db, baseLog)
}
func NewHarvestWaveLineRepo(db *gorm.DB, baseLog *logger.Logger) HarvestWaveLineRepo {
	return harvest.NewWaveLineRepo(db, baseLog)
}

func NewProjectionUploadRepo(db *gorm.DB, baseLog *logger.Logger) ProjectionUploadRepo {
	return ingestion.NewUploadRepo(db, baseLog)
}
