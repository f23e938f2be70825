package db

import (
	"gorm.io/gorm"

	types "github.com/aquaforge/pondops-backend/internal/domain"
)

func AutoMigrateAll(db *gorm.DB) error {
	return db.AutoMigrate(

		// =========================
		// Identity + auth
		// =========================
		&types.User{},
		&types.UserToken{},

		// =========================
		// Tenancy
		// =========================
		&types.Farm{},
		&types.Pond{},

		// =========================
		// Cycle + seeding
		// =========================
		&types.Cycle{},
		&types.SeedingPlan{},

		// =========================
		// Projection timeline
		// =========================
		&types.ProjectionHeader{},
		&types.ProjectionLine{},

		// =========================
		// Sampling + survival ledger
		// =========================
		&types.BiometrySample{},
		&types.SurvivalChange{},

		// =========================
		// Harvest
		// =========================
		&types.HarvestWave{},
		&types.HarvestWaveLine{},

		// =========================
		// File-sourced projections
		// =========================
		&types.ProjectionUpload{},
	)
}
