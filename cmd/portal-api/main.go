package main

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/redis/go-redis/v9"

	"github.com/hackvento/portal-api/internal/handler"
	"github.com/hackvento/portal-api/internal/middleware"
	"github.com/hackvento/portal-api/internal/repository"
	"github.com/hackvento/portal-api/internal/service"
	"github.com/hackvento/portal-api/pkg/cache"
	"github.com/hackvento/portal-api/pkg/config"
	"github.com/hackvento/portal-api/pkg/database"
	"github.com/hackvento/portal-api/pkg/logger"
	corsmiddleware "github.com/hackvento/portal-api/pkg/middleware/cors"
	reqidmiddleware "github.com/hackvento/portal-api/pkg/middleware/requestid"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	ctx := context.Background()

	var (
		catalogRepo repository.Catalog
		ledgerRepo  repository.Ledger
	)
	switch cfg.Store.Backend {
	case config.StoreBackendFile:
		store, err := repository.NewFileStore(cfg.Store.FilePath)
		if err != nil {
			logr.Sugar().Fatalw("failed to open file store", "path", cfg.Store.FilePath, "error", err)
		}
		catalogRepo = store
		ledgerRepo = store.Ledger()
	default:
		db, err := database.NewPostgres(cfg.Database)
		if err != nil {
			logr.Sugar().Fatalw("failed to connect to postgres", "error", err)
		}
		defer db.Close() //nolint:errcheck
		if err := repository.Migrate(ctx, db); err != nil {
			logr.Sugar().Fatalw("failed to apply schema", "error", err)
		}
		catalogRepo = repository.NewPostgresCatalog(db)
		ledgerRepo = repository.NewPostgresLedger(db)
	}

	var redisClient *redis.Client
	if cfg.RateLimit.Enabled {
		redisClient, err = cache.NewRedis(cfg.Redis)
		if err != nil {
			logr.Sugar().Warnw("redis unavailable, rate limiting disabled", "error", err)
		}
	}

	validate := validator.New()
	metricsSvc := service.NewMetricsService()

	projections := service.NewProjectionService(catalogRepo, ledgerRepo, logr, cfg.Store.OpTimeout)
	broadcaster := service.NewBroadcastService(projections, cfg.Events, metricsSvc, logr)
	broadcaster.Start(ctx)
	defer broadcaster.Stop()

	registrations := service.NewRegistrationService(ledgerRepo, broadcaster, metricsSvc, validate, logr, cfg.Store.OpTimeout)
	catalog := service.NewCatalogService(catalogRepo, broadcaster, validate, logr, cfg.Store.OpTimeout)
	exports := service.NewExportService(projections, logr)

	problemStatements := handler.NewProblemStatementHandler(catalog, projections)
	registrationHandler := handler.NewRegistrationHandler(registrations, projections)
	events := handler.NewEventsHandler(broadcaster)
	exportHandler := handler.NewExportHandler(exports)
	metricsHandler := handler.NewMetricsHandler(metricsSvc)

	if cfg.Env == config.EnvProduction {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(reqidmiddleware.Middleware())
	r.Use(logger.GinMiddleware(logr))
	r.Use(corsmiddleware.New(cfg.CORS.AllowedOrigins))
	r.Use(middleware.Metrics(metricsSvc))

	r.GET("/health", metricsHandler.Health)
	r.GET("/ready", metricsHandler.Health)
	r.GET("/metrics", metricsHandler.Prometheus)

	api := r.Group(cfg.APIPrefix)
	api.GET("/problem-statements", problemStatements.List)
	api.POST("/problem-statements", problemStatements.Create)
	api.POST("/problem-statements/bulk", problemStatements.BulkImport)
	api.PUT("/problem-statements/:id", problemStatements.Update)
	api.DELETE("/problem-statements/:id", problemStatements.Delete)

	api.POST("/register", middleware.RateLimit(redisClient, cfg.RateLimit, logr), registrationHandler.Register)
	api.GET("/registrations", registrationHandler.List)
	api.DELETE("/registration/:teamNumber", registrationHandler.Delete)

	api.GET("/events", events.Stream)

	if cfg.Exports.Enabled {
		api.GET("/registrations/export", exportHandler.Registrations)
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	logr.Sugar().Infow("server starting", "addr", addr, "env", cfg.Env, "store", cfg.Store.Backend)
	srv := &http.Server{Addr: addr, Handler: r}
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logr.Sugar().Fatalw("server failed", "error", err)
	}
}
