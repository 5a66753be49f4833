package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/SAP-F-2025/cat-service/internal/cache"
	"github.com/SAP-F-2025/cat-service/internal/config"
	"github.com/SAP-F-2025/cat-service/internal/handlers"
	"github.com/SAP-F-2025/cat-service/internal/irt"
	"github.com/SAP-F-2025/cat-service/internal/repositories/postgres"
	"github.com/SAP-F-2025/cat-service/internal/services"
	"github.com/SAP-F-2025/cat-service/internal/utils"
	"github.com/SAP-F-2025/cat-service/internal/validator"
	"github.com/SAP-F-2025/cat-service/pkg"
	"github.com/gin-gonic/gin"
)

func main() {
	if err := run(); err != nil {
		slog.Error("Server exited with error", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}

	logger := utils.NewLogger(cfg.Environment)
	slog.SetDefault(logger)

	db, err := pkg.InitDatabase(cfg)
	if err != nil {
		return err
	}

	redisClient, err := pkg.NewRedisClient(cfg)
	if err != nil {
		return err
	}

	var (
		cacheService cache.CacheService
		exposure     cache.ExposureTracker
	)
	if redisClient != nil {
		defer redisClient.Close()
		cacheService = cache.NewRedisCache(redisClient, logger)
		exposure = cache.NewRedisExposureTracker(redisClient, cfg.Exposure.Window, logger)
	} else {
		logger.Warn("REDIS_URL not set, using in-process cache and exposure counters")
		cacheService = cache.NewMemoryCache()
		exposure = cache.NewMemoryExposureTracker(cfg.Exposure.Window)
	}

	publisher, err := cfg.Events.CreateEventPublisher(logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	v := validator.New()
	plans, err := config.LoadExamPlans(cfg.ExamPlansFile, v)
	if err != nil {
		return err
	}
	logger.Info("Exam plans loaded", "exam_types", plans.Names())

	estimator := irt.DefaultEstimatorConfig()
	estimator.MaxIterations = cfg.Estimator.MaxIterations
	estimator.Tolerance = cfg.Estimator.Tolerance
	estimator.MaxStandardError = cfg.Estimator.MaxStandardError

	serviceManager := services.NewServiceManager(services.Dependencies{
		Repo:      postgres.NewRepository(db),
		Plans:     plans,
		Estimator: estimator,
		Exposure:  exposure,
		Policy:    services.ExposurePolicy{Cap: cfg.Exposure.Cap},
		Cache:     cacheService,
		Publisher: publisher,
		Logger:    logger,
		Validator: v,
	})

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	handlers.NewHandlerManager(serviceManager, utils.NewSlogLogger(logger)).SetupRoutes(router)

	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "port", cfg.Port, "environment", cfg.Environment)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
		close(serverErr)
	}()

	select {
	case err := <-serverErr:
		return err
	case <-ctx.Done():
		logger.Info("Shutting down server")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}

	logger.Info("Server shutdown completed")
	return nil
}
