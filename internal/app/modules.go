package app

import (
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/modules/analytics"
	"github.com/aquaforge/pondops-backend/internal/modules/ingestion"
	"github.com/aquaforge/pondops-backend/internal/modules/ledger"
	"github.com/aquaforge/pondops-backend/internal/modules/operations"
	"github.com/aquaforge/pondops-backend/internal/modules/projection"
	"github.com/aquaforge/pondops-backend/internal/modules/tenancy"
	"github.com/aquaforge/pondops-backend/internal/platform/gcp"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/realtime/bus"
)

type Modules struct {
	Tenancy    tenancy.Usecases
	Ledger     ledger.Usecases
	Projection projection.Usecases
	// Reforecaster shifts the published curve after observed biometry
	// and harvests; operations fires it as a post-commit hook.
	Reforecaster *projection.Reforecaster
	Operations   operations.Usecases
	Analytics    analytics.Usecases
	Ingestion    ingestion.Usecases
}

func wireModules(
	db *gorm.DB,
	log *logger.Logger,
	reposet Repos,
	sseBus bus.Bus,
	bucket gcp.BucketService,
	docs gcp.Document,
	temporal temporalsdkclient.Client,
) Modules {
	log.Info("Wiring modules...")

	tenancyUC := tenancy.New(tenancy.UsecasesDeps{
		DB:  db,
		Log: log,

		Farms:  reposet.Farm,
		Ponds:  reposet.Pond,
		Cycles: reposet.Cycle,

		Seeding:   reposet.SeedingPlan,
		Biometry:  reposet.Biometry,
		Waves:     reposet.HarvestWave,
		WaveLines: reposet.HarvestWaveLine,
		Headers:   reposet.ProjectionHeader,
		Uploads:   reposet.ProjectionUpload,
	})

	ledgerUC := ledger.New(ledger.UsecasesDeps{
		Log: log,

		Cycles:    reposet.Cycle,
		Ponds:     reposet.Pond,
		Seeding:   reposet.SeedingPlan,
		Headers:   reposet.ProjectionHeader,
		Lines:     reposet.ProjectionLine,
		Biometry:  reposet.Biometry,
		Survival:  reposet.SurvivalChange,
		WaveLines: reposet.HarvestWaveLine,
	})

	projDeps := projection.UsecasesDeps{
		DB:  db,
		Log: log,

		Cycles:    reposet.Cycle,
		Seeding:   reposet.SeedingPlan,
		Headers:   reposet.ProjectionHeader,
		Lines:     reposet.ProjectionLine,
		Ponds:     reposet.Pond,
		Waves:     reposet.HarvestWave,
		WaveLines: reposet.HarvestWaveLine,
		Biometry:  reposet.Biometry,

		Bus: sseBus,
	}
	projectionUC := projection.New(projDeps)
	reforecaster := projection.NewReforecaster(projDeps, projection.LoadConfig(log))

	operationsUC := operations.New(operations.UsecasesDeps{
		DB:  db,
		Log: log,

		Cycles:    reposet.Cycle,
		Ponds:     reposet.Pond,
		Seeding:   reposet.SeedingPlan,
		Biometry:  reposet.Biometry,
		Survival:  reposet.SurvivalChange,
		Waves:     reposet.HarvestWave,
		WaveLines: reposet.HarvestWaveLine,

		Reforecaster: reforecaster,
		Bus:          sseBus,
	})

	analyticsUC := analytics.New(analytics.UsecasesDeps{
		Log: log,

		Cycles:    reposet.Cycle,
		Ponds:     reposet.Pond,
		Seeding:   reposet.SeedingPlan,
		Biometry:  reposet.Biometry,
		Waves:     reposet.HarvestWave,
		WaveLines: reposet.HarvestWaveLine,

		Ledger: ledgerUC,
	})

	ingestionUC := ingestion.New(ingestion.UsecasesDeps{
		Log: log,

		Cycles:  reposet.Cycle,
		Uploads: reposet.ProjectionUpload,
		Headers: reposet.ProjectionHeader,

		Projections: projectionUC,

		Bucket: bucket,
		Docs:   docs,

		Temporal: temporal,
		Bus:      sseBus,
	})

	return Modules{
		Tenancy:      tenancyUC,
		Ledger:       ledgerUC,
		Projection:   projectionUC,
		Reforecaster: reforecaster,
		Operations:   operationsUC,
		Analytics:    analyticsUC,
		Ingestion:    ingestionUC,
	}
}
