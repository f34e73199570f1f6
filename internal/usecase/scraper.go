package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/pkg/metrics"
	"github.com/user/image-scraper-service/pkg/utils"
)

const eventWriteTimeout = 2 * time.Second

// Scraper defines the interface for discovering images on a page.
type Scraper interface {
	Scrape(ctx context.Context, req entity.ScrapeRequest) ([]entity.ImageRef, error)
}

type scraperUseCase struct {
	extractors map[entity.ScrapeMode]repository.ImageExtractor
	eventRepo  repository.ScrapeEventRepository
	logger     *zap.Logger
}

// NewScraper creates a new Scraper use case. eventRepo may be nil, in which
// case no scrape history is recorded.
func NewScraper(
	fast repository.ImageExtractor,
	deep repository.ImageExtractor,
	eventRepo repository.ScrapeEventRepository,
	logger *zap.Logger,
) Scraper {
	return &scraperUseCase{
		extractors: map[entity.ScrapeMode]repository.ImageExtractor{
			entity.ScrapeModeFast: fast,
			entity.ScrapeModeDeep: deep,
		},
		eventRepo: eventRepo,
		logger:    logger,
	}
}

func (uc *scraperUseCase) Scrape(ctx context.Context, req entity.ScrapeRequest) ([]entity.ImageRef, error) {
	if req.PageURL == "" {
		return nil, &entity.ValidationError{Field: "url", Reason: "URL is required"}
	}
	if _, err := utils.ParseHTTPURL(req.PageURL); err != nil {
		return nil, &entity.ValidationError{Field: "url", Reason: err.Error()}
	}

	mode := req.Mode
	if mode == "" {
		mode = entity.ScrapeModeFast
	}
	extractor, ok := uc.extractors[mode]
	if !ok || extractor == nil {
		return nil, &entity.ValidationError{Field: "mode", Reason: fmt.Sprintf("unsupported mode %q", req.Mode)}
	}

	uc.logger.Info("scraping page", zap.String("url", req.PageURL), zap.String("mode", string(mode)))

	start := time.Now()
	images, err := extractor.Extract(ctx, req.PageURL)
	duration := time.Since(start)
	metrics.ScrapeDuration.WithLabelValues(string(mode)).Observe(duration.Seconds())

	event := &entity.ScrapeEvent{
		PageURL:    req.PageURL,
		Mode:       mode,
		DurationMS: duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	if err != nil {
		metrics.ScrapesTotal.WithLabelValues(string(mode), "failure").Inc()
		uc.logger.Error("scrape failed", zap.String("url", req.PageURL), zap.String("mode", string(mode)), zap.Error(err))
		event.Status = "failure"
		event.Error = err.Error()
		uc.recordEvent(ctx, event)
		return nil, err
	}

	metrics.ScrapesTotal.WithLabelValues(string(mode), "success").Inc()
	metrics.ImagesExtracted.WithLabelValues(string(mode)).Add(float64(len(images)))
	uc.logger.Info("scrape completed",
		zap.String("url", req.PageURL),
		zap.String("mode", string(mode)),
		zap.Int("images", len(images)),
		zap.Int64("duration_ms", duration.Milliseconds()),
	)
	event.Status = "success"
	event.ImageCount = len(images)
	uc.recordEvent(ctx, event)

	return images, nil
}

// recordEvent is best effort: history must never fail a scrape.
func (uc *scraperUseCase) recordEvent(ctx context.Context, event *entity.ScrapeEvent) {
	if uc.eventRepo == nil {
		return
	}
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), eventWriteTimeout)
	defer cancel()
	if err := uc.eventRepo.Save(saveCtx, event); err != nil {
		uc.logger.Warn("failed to record scrape event", zap.String("url", event.PageURL), zap.Error(err))
	}
}
