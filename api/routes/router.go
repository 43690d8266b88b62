package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/citylineapps/permitflow-backend/api/controllers"
	"github.com/citylineapps/permitflow-backend/api/middleware"
	"github.com/citylineapps/permitflow-backend/internal/documents"
	"github.com/citylineapps/permitflow-backend/internal/ocr"
	"github.com/citylineapps/permitflow-backend/pkg/config"
	"github.com/citylineapps/permitflow-backend/pkg/logger"
	"github.com/citylineapps/permitflow-backend/pkg/redis"
)

func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP controllers.Pinger,
	redisClient *redis.Client,
	gcsClient controllers.Pinger,
	metricsRegistry *prometheus.Registry,
	documentsService documents.Service,
	ocrService ocr.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient, gcsClient))
	})

	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}))

	apiPolicy := middleware.NewRateLimitPolicy("api", cfg.RateLimit.Window, cfg.RateLimit.Requests)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, logg))
		r.Use(middleware.Idempotency(redisClient, logg))
		r.Use(middleware.RateLimit(apiPolicy, redisClient, logg))

		r.Route("/documents", func(r chi.Router) {
			r.Post("/", controllers.DocumentUpload(documentsService, cfg.Documents.MaxUploadBytes(), logg))
			r.Get("/search", controllers.DocumentSearch(ocrService, logg))
			r.Post("/ocr/batch", controllers.OCRBatch(ocrService, logg))

			r.Route("/{documentId}", func(r chi.Router) {
				r.Get("/", controllers.DocumentGet(documentsService, logg))
				r.Get("/download", controllers.DocumentDownload(documentsService, logg))
				r.Delete("/", controllers.DocumentDelete(documentsService, logg))
				r.Patch("/metadata", controllers.DocumentMetadataPatch(documentsService, logg))
				r.Post("/ocr", controllers.OCRProcess(ocrService, logg))
				r.Post("/ocr/reprocess", controllers.OCRReprocess(ocrService, logg))
				r.Get("/ocr/status", controllers.OCRStatus(ocrService, logg))
			})
		})

		r.Get("/permits/{permitId}/documents", controllers.DocumentsByPermit(documentsService, logg))
		r.Get("/projects/{projectId}/documents", controllers.DocumentsByProject(documentsService, logg))
	})

	return r
}
