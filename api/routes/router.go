package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberline/storefront-backend/api/controllers"
	"github.com/emberline/storefront-backend/api/middleware"
	"github.com/emberline/storefront-backend/internal/catalog"
	"github.com/emberline/storefront-backend/internal/products"
	"github.com/emberline/storefront-backend/pkg/config"
	"github.com/emberline/storefront-backend/pkg/logger"
)

type ingestRunner interface {
	Ingest(ctx context.Context, dir string) (*catalog.BatchReport, error)
}

type imageAttacher interface {
	AttachImages(ctx context.Context, images map[string][]byte) (int, error)
}

// Deps carries everything the router wires into handlers. Nil health probes
// are skipped; Registry may be nil to disable the metrics endpoint.
type Deps struct {
	DB       controllers.Pinger
	Redis    controllers.Pinger
	Blobs    controllers.Pinger
	Products *products.Service
	Pipeline ingestRunner
	Attacher imageAttacher
	Registry *prometheus.Registry
}

func NewRouter(cfg *config.Config, logg *logger.Logger, deps Deps) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	probes := map[string]controllers.Pinger{}
	if deps.DB != nil {
		probes["db"] = deps.DB
	}
	if deps.Redis != nil {
		probes["redis"] = deps.Redis
	}
	if deps.Blobs != nil {
		probes["blob_storage"] = deps.Blobs
	}

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, probes))
	})

	if deps.Registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/products", func(r chi.Router) {
		r.Get("/", controllers.ProductsList(deps.Products, logg))
		r.Get("/categories", controllers.ProductCategories(deps.Products, logg))
		r.Get("/{productId}", controllers.ProductDetail(deps.Products, logg))
	})

	r.Route("/api/admin/v1", func(r chi.Router) {
		r.Post("/ingest", controllers.AdminIngest(deps.Pipeline, logg))
		r.Post("/images/attach", controllers.AdminAttachImages(deps.Attacher, logg))
	})

	return r
}
