package app

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	temporalsdkclient "go.temporal.io/sdk/client"
	"gorm.io/gorm"

	"github.com/aquaforge/pondops-backend/internal/data/db"
	httppkg "github.com/aquaforge/pondops-backend/internal/http"
	"github.com/aquaforge/pondops-backend/internal/observability"
	"github.com/aquaforge/pondops-backend/internal/platform/gcp"
	"github.com/aquaforge/pondops-backend/internal/platform/logger"
	"github.com/aquaforge/pondops-backend/internal/realtime"
	"github.com/aquaforge/pondops-backend/internal/realtime/bus"
	"github.com/aquaforge/pondops-backend/internal/temporalx"
)

type App struct {
	Log    *logger.Logger
	DB     *gorm.DB
	Server *httppkg.Server
	Router *gin.Engine
	Cfg    Config

	Repos    Repos
	Services Services
	Modules  Modules

	Hub *realtime.SSEHub
	Bus bus.Bus

	Temporal temporalsdkclient.Client

	metrics      *observability.Metrics
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New() (*App, error) {
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	log.Info("Loading environment variables...")
	cfg := LoadConfig()

	dbsvc, err := db.New(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init database: %w", err)
	}
	if err := dbsvc.AutoMigrate(); err != nil {
		log.Sync()
		return nil, fmt.Errorf("automigrate: %w", err)
	}
	theDB := dbsvc.DB()

	metrics := observability.Init(log)
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "pondops",
		Environment: cfg.Environment,
		Version:     cfg.Version,
	})

	hub := realtime.NewSSEHub(log)

	// A configured Redis address is a hard dependency; without one the
	// in-process bus delivers events to this instance only.
	var sseBus bus.Bus
	if strings.TrimSpace(os.Getenv("REDIS_ADDR")) != "" {
		sseBus, err = bus.NewRedisBus(log)
		if err != nil {
			log.Sync()
			return nil, fmt.Errorf("init redis bus: %w", err)
		}
	} else {
		sseBus = bus.NewLocalBus(hub)
	}

	// Object storage and Document AI back plan uploads; the rest of the
	// API works without them, so a failed init disables uploads instead
	// of blocking startup.
	bucket, err := gcp.NewBucketService(log)
	if err != nil {
		log.Warn("Object storage unavailable; plan uploads disabled", "error", err)
		bucket = nil
	}
	docs, err := gcp.NewDocument(log)
	if err != nil {
		log.Warn("Document AI unavailable; PDF extraction disabled", "error", err)
		docs = nil
	}

	temporal, err := temporalx.NewClient(log)
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init temporal: %w", err)
	}
	if temporal != nil {
		tcfg := temporalx.LoadConfig()
		if err := temporalx.EnsureNamespace(context.Background(), temporal, tcfg.Namespace, log); err != nil {
			log.Warn("Temporal namespace registration failed", "namespace", tcfg.Namespace, "error", err)
		}
	}

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(theDB, log, cfg, reposet)
	moduleset := wireModules(theDB, log, reposet, sseBus, bucket, docs, temporal)

	handlerset := wireHandlers(log, serviceset, moduleset, hub)
	middleware := wireMiddleware(log, serviceset)
	server := wireRouter(log, handlerset, middleware)

	return &App{
		Log:      log,
		DB:       theDB,
		Server:   server,
		Router:   server.Engine,
		Cfg:      cfg,
		Repos:    reposet,
		Services: serviceset,
		Modules:  moduleset,
		Hub:      hub,
		Bus:      sseBus,
		Temporal: temporal,

		metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

func (a *App) Start() {
	if a == nil || a.cancel != nil {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	if a.Bus != nil {
		if err := a.Bus.StartForwarder(ctx, a.Hub.Broadcast); err != nil {
			a.Log.Error("SSE forwarder failed to start", "error", err)
		}
	}

	if a.metrics != nil {
		if a.Cfg.MetricsAddr != "" {
			a.metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
		}
		a.metrics.StartPostgresCollector(ctx, a.Log, a.DB)
		a.metrics.StartRedisCollector(ctx, a.Log, strings.TrimSpace(os.Getenv("REDIS_ADDR")))
		a.metrics.StartUploadQueueCollector(ctx, a.Log, a.DB)
		a.metrics.StartSLOEvaluator(ctx, a.Log)
	}

	go a.sweepExpiredTokens(ctx)
}

// sweepExpiredTokens purges refresh tokens past their expiry so the
// token table does not grow unbounded.
func (a *App) sweepExpiredTokens(ctx context.Context) {
	interval := a.Cfg.TokenSweepInterval
	if interval <= 0 {
		interval = time.Hour
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Services.Auth.CleanupExpired(ctx)
			if err != nil {
				a.Log.Error("Token sweep failed", "error", err)
				continue
			}
			if n > 0 {
				a.Log.Info("Expired tokens purged", "count", n)
			}
		}
	}
}

func (a *App) Run(addr string) error {
	if a == nil || a.Server == nil {
		return fmt.Errorf("app not initialized")
	}
	return a.Server.Run(addr)
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Bus != nil {
		ewrap(a.Log, "close sse bus", a.Bus.Close())
	}
	if a.Temporal != nil {
		a.Temporal.Close()
	}
	if a.otelShutdown != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		ewrap(a.Log, "shutdown otel", a.otelShutdown(ctx))
		cancel()
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}

func ewrap(log *logger.Logger, what string, err error) {
	if err != nil && log != nil {
		log.Warn("Shutdown step failed", "step", what, "error", err)
	}
}
