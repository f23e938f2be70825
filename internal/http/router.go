package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/aquaforge/pondops-backend/internal/http/handlers"
	httpMW "github.com/aquaforge/pondops-backend/internal/http/middleware"
	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
)

type RouterConfig struct {
	Log *logger.Logger

	AuthMiddleware *httpMW.AuthMiddleware

	AuthHandler       *httpH.AuthHandler
	UserHandler       *httpH.UserHandler
	FarmHandler       *httpH.FarmHandler
	PondHandler       *httpH.PondHandler
	CycleHandler      *httpH.CycleHandler
	SeedingHandler    *httpH.SeedingHandler
	BiometryHandler   *httpH.BiometryHandler
	HarvestHandler    *httpH.HarvestHandler
	ProjectionHandler *httpH.ProjectionHandler
	UploadHandler     *httpH.UploadHandler
	AnalyticsHandler  *httpH.AnalyticsHandler
	RealtimeHandler   *httpH.RealtimeHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.Default()
	r.Use(otelgin.Middleware("pondops"))
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.CORS())
	if cfg.Log != nil {
		r.Use(httpMW.RequestLogger(cfg.Log))
	}
	r.Use(httpMW.Metrics(observability.Current()))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}

	api := r.Group("/api")
	{
		// Auth (public). Refresh and logout authenticate with the
		// refresh token itself so an expired access token cannot lock
		// the client out.
		if cfg.AuthHandler != nil {
			api.POST("/register", cfg.AuthHandler.Register)
			api.POST("/login", cfg.AuthHandler.Login)
			api.POST("/refresh", cfg.AuthHandler.Refresh)
			api.POST("/logout", cfg.AuthHandler.Logout)
		}
	}

	protected := api.Group("/")
	{
		if cfg.AuthMiddleware != nil {
			protected.Use(cfg.AuthMiddleware.RequireAuth())
		}

		// Realtime (SSE)
		if cfg.RealtimeHandler != nil {
			protected.GET("/sse/stream", cfg.RealtimeHandler.SSEStream)
			protected.POST("/sse/subscribe", cfg.RealtimeHandler.SSESubscribe)
			protected.POST("/sse/unsubscribe", cfg.RealtimeHandler.SSEUnsubscribe)
		}

		// User (Me)
		if cfg.UserHandler != nil {
			protected.GET("/me", cfg.UserHandler.GetMe)
			protected.PATCH("/user/name", cfg.UserHandler.ChangeName)
			protected.PATCH("/user/password", cfg.UserHandler.ChangePassword)
		}

		// Farms
		if cfg.FarmHandler != nil {
			protected.POST("/farms", cfg.FarmHandler.Create)
			protected.GET("/farms", cfg.FarmHandler.List)
			protected.GET("/farms/:id", cfg.FarmHandler.Get)
			protected.PATCH("/farms/:id", cfg.FarmHandler.Update)
			protected.DELETE("/farms/:id", cfg.FarmHandler.Delete)
		}

		// Ponds
		if cfg.PondHandler != nil {
			protected.POST("/farms/:id/ponds", cfg.PondHandler.Create)
			protected.GET("/farms/:id/ponds", cfg.PondHandler.List)
			protected.GET("/ponds/:id", cfg.PondHandler.Get)
			protected.PATCH("/ponds/:id", cfg.PondHandler.Update)
			protected.DELETE("/ponds/:id", cfg.PondHandler.Delete)
		}

		// Cycles
		if cfg.CycleHandler != nil {
			protected.POST("/farms/:id/cycles", cfg.CycleHandler.Create)
			protected.GET("/farms/:id/cycles", cfg.CycleHandler.List)
			protected.GET("/farms/:id/cycles/active", cfg.CycleHandler.Active)
			protected.GET("/cycles/:id", cfg.CycleHandler.Get)
			protected.PATCH("/cycles/:id", cfg.CycleHandler.Update)
			protected.POST("/cycles/:id/close", cfg.CycleHandler.Close)
			protected.DELETE("/cycles/:id", cfg.CycleHandler.Delete)
		}

		// Seeding plans
		if cfg.SeedingHandler != nil {
			protected.POST("/cycles/:id/seeding-plans", cfg.SeedingHandler.Create)
			protected.POST("/cycles/:id/seeding-plans/bulk", cfg.SeedingHandler.PlanCycle)
			protected.GET("/cycles/:id/seeding-plans", cfg.SeedingHandler.List)
			protected.PATCH("/seeding-plans/:id", cfg.SeedingHandler.Reprogram)
			protected.POST("/seeding-plans/:id/confirm", cfg.SeedingHandler.Confirm)
		}

		// Biometry
		if cfg.BiometryHandler != nil {
			protected.POST("/cycles/:id/biometry", cfg.BiometryHandler.Record)
			protected.GET("/cycles/:id/biometry", cfg.BiometryHandler.List)
			protected.GET("/cycles/:id/survival", cfg.BiometryHandler.SurvivalHistory)
		}

		// Harvest waves
		if cfg.HarvestHandler != nil {
			protected.POST("/cycles/:id/waves", cfg.HarvestHandler.CreateWave)
			protected.GET("/cycles/:id/waves", cfg.HarvestHandler.ListWaves)
			protected.GET("/waves/:id", cfg.HarvestHandler.GetWave)
			protected.POST("/waves/:id/sync-lines", cfg.HarvestHandler.SyncLines)
			protected.POST("/waves/:id/cancel", cfg.HarvestHandler.CancelWave)
			protected.POST("/wave-lines/:id/confirm", cfg.HarvestHandler.ConfirmLine)
		}

		// Projections
		if cfg.ProjectionHandler != nil {
			protected.POST("/cycles/:id/projections", cfg.ProjectionHandler.Create)
			protected.GET("/cycles/:id/projections", cfg.ProjectionHandler.List)
			protected.POST("/cycles/:id/reforecast", cfg.ProjectionHandler.Reforecast)
			protected.GET("/projections/:id", cfg.ProjectionHandler.Get)
			protected.PUT("/projections/:id/lines", cfg.ProjectionHandler.ReplaceLines)
			protected.POST("/projections/:id/publish", cfg.ProjectionHandler.Publish)
			protected.POST("/projections/:id/current", cfg.ProjectionHandler.SetCurrent)
			protected.POST("/projections/:id/cancel", cfg.ProjectionHandler.Cancel)
			protected.DELETE("/projections/:id", cfg.ProjectionHandler.Delete)
		}

		// Plan uploads
		if cfg.UploadHandler != nil {
			protected.POST("/cycles/:id/uploads", cfg.UploadHandler.Upload)
			protected.GET("/cycles/:id/uploads", cfg.UploadHandler.List)
			protected.GET("/uploads/:id", cfg.UploadHandler.Get)
		}

		// Analytics
		if cfg.AnalyticsHandler != nil {
			protected.GET("/cycles/:id/dashboard", cfg.AnalyticsHandler.CycleDashboard)
			protected.GET("/cycles/:id/ponds/:pond_id/dashboard", cfg.AnalyticsHandler.PondDashboard)
			protected.GET("/cycles/:id/report", cfg.AnalyticsHandler.Report)
		}
	}

	return r
}
