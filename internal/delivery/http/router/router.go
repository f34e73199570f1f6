package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/delivery/http/handler"
	"github.com/user/image-scraper-service/internal/delivery/http/middleware"
)

// Options configures the router middleware stack.
type Options struct {
	AllowedOrigins []string
	RequestTimeout time.Duration
}

func New(h *handler.Handler, opts Options, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logging(logger))
	r.Use(chimw.Recoverer)
	r.Use(middleware.Metrics)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition", "X-Archive-Id"},
		MaxAge:         300,
	}))
	if opts.RequestTimeout > 0 {
		r.Use(chimw.Timeout(opts.RequestTimeout))
	}

	r.Get("/", h.HandleRoot)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	r.Post("/scrape", h.HandleScrape)
	r.Get("/proxy", h.HandleProxy)
	r.Post("/download-image", h.HandleDownloadImage)
	r.Post("/download-selected", h.HandleDownloadSelected)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.HandleHealthCheck)
		r.Get("/status", h.HandleGetScrapeStatus)
	})

	return r
}
