package app

import (
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/repos"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type Repos struct {
	User      repos.UserRepo
	UserToken repos.UserTokenRepo

	Farm        repos.FarmRepo
	Pond        repos.PondRepo
	Cycle       repos.CycleRepo
	SeedingPlan repos.SeedingPlanRepo

	ProjectionHeader repos.ProjectionHeaderRepo
	ProjectionLine   repos.ProjectionLineRepo

	Biometry       repos.BiometryRepo
	SurvivalChange repos.SurvivalChangeRepo

	HarvestWave     repos.HarvestWaveRepo
	HarvestWaveLine repos.HarvestWaveLineRepo

	ProjectionUpload repos.ProjectionUploadRepo
}

func wireRepos(db *gorm.DB, log *logger.Logger) Repos {
	log.Info("Wiring repos...")
	return Repos{
		User:      repos.NewUserRepo(db, log),
		UserToken: repos.NewUserTokenRepo(db, log),

		Farm:        repos.NewFarmRepo(db, log),
		Pond:        repos.NewPondRepo(db, log),
		Cycle:       repos.NewCycleRepo(db, log),
		SeedingPlan: repos.NewSeedingPlanRepo(db, log),

		ProjectionHeader: repos.NewProjectionHeaderRepo(db, log),
		ProjectionLine:   repos.NewProjectionLineRepo(db, log),

		Biometry:       repos.NewBiometryRepo(db, log),
		SurvivalChange: repos.NewSurvivalChangeRepo(db, log),

		HarvestWave:     repos.NewHarvestWaveRepo(db, log),
		HarvestWaveLine: repos.NewHarvestWaveLineRepo(db, log),

		ProjectionUpload: repos.NewProjectionUploadRepo(db, log),
	}
}
