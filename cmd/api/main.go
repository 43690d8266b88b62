package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	"github.com/citylineapps/permitflow-backend/api/routes"
	"github.com/citylineapps/permitflow-backend/internal/audit"
	"github.com/citylineapps/permitflow-backend/internal/documents"
	"github.com/citylineapps/permitflow-backend/internal/ocr"
	"github.com/citylineapps/permitflow-backend/pkg/config"
	"github.com/citylineapps/permitflow-backend/pkg/db"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
	"github.com/citylineapps/permitflow-backend/pkg/metrics"
	"github.com/citylineapps/permitflow-backend/pkg/migrate"
	"github.com/citylineapps/permitflow-backend/pkg/redis"
	"github.com/citylineapps/permitflow-backend/pkg/storage/gcs"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	gcsClient, err := gcs.NewClient(context.Background(), cfg.GCS, cfg.GCP, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap storage", err)
		os.Exit(1)
	}
	defer func() {
		if err := gcsClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing storage client", err)
		}
	}()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	auditRecorder, err := audit.NewRecorder(dbClient.DB(), logg)
	if err != nil {
		logg.Error(context.Background(), "failed to create audit recorder", err)
		os.Exit(1)
	}

	documentsRepo := documents.NewRepository(dbClient.DB())
	documentsService, err := documents.NewService(
		documentsRepo,
		gcsClient,
		auditRecorder,
		nil,
		metrics.NewIntakeMetrics(registry),
		logg,
		documents.Config{
			MaxUploadBytes: cfg.Documents.MaxUploadBytes(),
			ImageMaxWidth:  cfg.Documents.ImageMaxWidth,
			ImageMaxHeight: cfg.Documents.ImageMaxHeight,
			ImageQuality:   cfg.Documents.ImageQuality,
			VirusScan:      cfg.FeatureFlags.VirusScan,
		},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create documents service", err)
		os.Exit(1)
	}

	ocrClient, err := ocr.NewClient(cfg.OCR.BaseURL, cfg.OCR.Timeout)
	if err != nil {
		logg.Error(context.Background(), "failed to create ocr client", err)
		os.Exit(1)
	}
	ocrService, err := ocr.NewService(
		documentsRepo,
		gcsClient,
		ocrClient,
		auditRecorder,
		metrics.NewOCRMetrics(registry),
		logg,
		ocr.Config{BatchConcurrency: cfg.OCR.BatchConcurrency},
	)
	if err != nil {
		logg.Error(context.Background(), "failed to create ocr service", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(
			cfg,
			logg,
			dbClient,
			redisClient,
			gcsClient,
			registry,
			documentsService,
			ocrService,
		),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
