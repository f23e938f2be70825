package app

import (
	"github.com/aquaforge/pondops-backend/internal/http"
	httpH "github.com/aquaforge/pondops-backend/internal/http/handlers"
	httpMW "github.com/aquaforge/pondops-backend/internal/http/middleware"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/realtime"
)

type Middleware struct {
	Auth *httpMW.AuthMiddleware
}

type Handlers struct {
	Health   *httpH.HealthHandler
	Auth     *httpH.AuthHandler
	User     *httpH.UserHandler
	Realtime *httpH.RealtimeHandler

	Farm       *httpH.FarmHandler
	Pond       *httpH.PondHandler
	Cycle      *httpH.CycleHandler
	Seeding    *httpH.SeedingHandler
	Biometry   *httpH.BiometryHandler
	Harvest    *httpH.HarvestHandler
	Projection *httpH.ProjectionHandler
	Upload     *httpH.UploadHandler
	Analytics  *httpH.AnalyticsHandler
}

func wireHandlers(log *logger.Logger, serviceset Services, moduleset Modules, hub *realtime.SSEHub) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:   httpH.NewHealthHandler(),
		Auth:     httpH.NewAuthHandler(serviceset.Auth),
		User:     httpH.NewUserHandler(serviceset.User),
		Realtime: httpH.NewRealtimeHandler(log, hub),

		Farm:       httpH.NewFarmHandler(moduleset.Tenancy),
		Pond:       httpH.NewPondHandler(moduleset.Tenancy),
		Cycle:      httpH.NewCycleHandler(moduleset.Tenancy),
		Seeding:    httpH.NewSeedingHandler(moduleset.Operations),
		Biometry:   httpH.NewBiometryHandler(moduleset.Operations),
		Harvest:    httpH.NewHarvestHandler(moduleset.Operations),
		Projection: httpH.NewProjectionHandler(moduleset.Projection, moduleset.Reforecaster),
		Upload:     httpH.NewUploadHandler(moduleset.Ingestion),
		Analytics:  httpH.NewAnalyticsHandler(moduleset.Analytics),
	}
}

func wireMiddleware(log *logger.Logger, serviceset Services) Middleware {
	log.Info("Wiring middleware...")
	return Middleware{
		Auth: httpMW.NewAuthMiddleware(log, serviceset.Auth),
	}
}

func wireRouter(log *logger.Logger, handlerset Handlers, middleware Middleware) *http.Server {
	return http.NewServer(http.RouterConfig{
		Log: log,

		AuthMiddleware: middleware.Auth,

		AuthHandler:     handlerset.Auth,
		UserHandler:     handlerset.User,
		RealtimeHandler: handlerset.Realtime,

		FarmHandler:       handlerset.Farm,
		PondHandler:       handlerset.Pond,
		CycleHandler:      handlerset.Cycle,
		SeedingHandler:    handlerset.Seeding,
		BiometryHandler:   handlerset.Biometry,
		HarvestHandler:    handlerset.Harvest,
		ProjectionHandler: handlerset.Projection,
		UploadHandler:     handlerset.Upload,
		AnalyticsHandler:  handlerset.Analytics,

		HealthHandler: handlerset.Health,
	})
}
