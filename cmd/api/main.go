package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/adapter/chromedp_browser"
	"github.com/user/image-scraper-service/internal/adapter/httpfetch"
	"github.com/user/image-scraper-service/internal/adapter/postgres"
	redis_adapter "github.com/user/image-scraper-service/internal/adapter/redis"
	"github.com/user/image-scraper-service/internal/delivery/http/handler"
	"github.com/user/image-scraper-service/internal/delivery/http/router"
	"github.com/user/image-scraper-service/internal/extractor"
	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/internal/usecase"
	"github.com/user/image-scraper-service/pkg/config"
	"github.com/user/image-scraper-service/pkg/logger"
	"github.com/user/image-scraper-service/pkg/urlnorm"
)

const (
	connectTimeout  = 5 * time.Second
	shutdownTimeout = 15 * time.Second
)

func main() {
	// --- Configuration ---
	cfg, err := config.Load(".env")
	if err != nil {
		log.Fatalf("could not load config: %v", err)
	}

	// --- Logger ---
	zl, err := logger.New(cfg.LogLevel)
	if err != nil {
		log.Fatalf("could not build logger: %v", err)
	}
	defer zl.Sync()

	ctx := context.Background()
	checks := make(map[string]handler.HealthCheck)

	// --- Optional Stores ---
	var relayCache repository.RelayCacheRepository
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, connectTimeout)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			zl.Warn("redis unreachable, relay cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			rdb.Close()
		} else {
			defer rdb.Close()
			relayCache = redis_adapter.NewRelayCacheRepo(rdb)
			checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
			zl.Info("redis connection established", zap.String("addr", cfg.RedisAddr))
		}
	}

	var scrapeEvents repository.ScrapeEventRepository
	if cfg.PostgresURL != "" {
		if dbpool, err := connectPostgres(ctx, cfg.PostgresURL); err != nil {
			zl.Warn("postgres unreachable, scrape history disabled", zap.Error(err))
		} else {
			defer dbpool.Close()
			scrapeEvents = postgres.NewScrapeEventRepo(dbpool)
			checks["postgres"] = dbpool.Ping
			zl.Info("postgresql connection pool established")
		}
	}

	// --- Adapters ---
	rotation, err := httpfetch.NewRotation(cfg.OutboundProxies, cfg.UserAgents)
	if err != nil {
		zl.Fatal("invalid outbound proxy", zap.Error(err))
	}
	fetcher := httpfetch.NewClient(httpfetch.Options{
		Timeout:      cfg.FetchTimeout,
		MaxBodyBytes: cfg.MaxBodyBytes,
		Rotation:     rotation,
	}, zl.Named("fetch"))

	normalizer, err := urlnorm.New(cfg.CDNHosts)
	if err != nil {
		zl.Fatal("invalid CDN host pattern", zap.Error(err))
	}

	browser := chromedp_browser.NewChromedpBrowser(chromedp_browser.Options{
		ExecPath:  cfg.ChromePath,
		UserAgent: rotation.UserAgent(),
		Timeout:   cfg.RenderTimeout,
	}, zl.Named("chrome"))

	// --- Use Cases ---
	fast := extractor.NewStaticExtractor(fetcher, normalizer, cfg.LazyAttributes, zl.Named("static"))
	deep := extractor.NewRenderedExtractor(browser, normalizer, extractor.RenderConfig{
		MaxScrollRounds: cfg.ScrollRounds,
		ScrollPause:     cfg.ScrollPause,
		FinalPause:      cfg.FinalPause,
	}, zl.Named("rendered"))

	scraper := usecase.NewScraper(fast, deep, scrapeEvents, zl.Named("scraper"))
	relay := usecase.NewImageRelay(fetcher, relayCache, usecase.RelayCacheOptions{
		TTL:      cfg.RelayCacheTTL,
		MaxBytes: cfg.RelayCacheMaxBytes,
	}, cfg.FilenameMaxLength, zl.Named("relay"))
	archives := usecase.NewArchiveBuilder(fetcher, cfg.ArchiveWorkers, cfg.FilenameMaxLength, zl.Named("archive"))

	// --- HTTP Server ---
	apiHandler := handler.NewHandler(scraper, relay, archives, scrapeEvents, checks, zl)
	httpRouter := router.New(apiHandler, router.Options{
		AllowedOrigins: cfg.AllowedOrigins,
		RequestTimeout: cfg.RequestTimeout,
	}, zl.Named("http"))

	server := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           httpRouter,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      cfg.RequestTimeout + 10*time.Second,
		IdleTimeout:       120 * time.Second,
	}

	// --- Graceful Shutdown ---
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Fatal("could not start server", zap.Error(err))
		}
	}()
	zl.Info("server started", zap.String("port", cfg.ServerPort))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zl.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zl.Error("server forced to shutdown", zap.Error(err))
	}

	zl.Info("server exiting")
}

func connectPostgres(ctx context.Context, connString string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	dbpool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, err
	}
	if err := dbpool.Ping(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	if err := postgres.NewScrapeEventRepo(dbpool).EnsureSchema(ctx); err != nil {
		dbpool.Close()
		return nil, err
	}
	return dbpool, nil
}
