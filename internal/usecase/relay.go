package usecase

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/pkg/metrics"
	"github.com/user/image-scraper-service/pkg/utils"
)

// RelayCacheOptions configures the optional relay cache.
type RelayCacheOptions struct {
	TTL time.Duration
	// MaxBytes is the largest body that will be cached.
	MaxBytes int
}

// ImageRelay defines the interface for fetching images on behalf of the browser client.
type ImageRelay interface {
	// Relay returns the upstream bytes and content type unchanged.
	Relay(ctx context.Context, imageURL string) (*entity.RelayedImage, error)
	// Download relays the image and names it after alt.
	Download(ctx context.Context, imageURL, alt string) (*entity.RelayedImage, error)
}

type imageRelayUseCase struct {
	fetcher      repository.Fetcher
	cache        repository.RelayCacheRepository
	cacheOpts    RelayCacheOptions
	maxNameRunes int
	logger       *zap.Logger
}

// NewImageRelay creates a new ImageRelay use case. cache may be nil.
func NewImageRelay(
	fetcher repository.Fetcher,
	cache repository.RelayCacheRepository,
	cacheOpts RelayCacheOptions,
	maxNameRunes int,
	logger *zap.Logger,
) ImageRelay {
	return &imageRelayUseCase{
		fetcher:      fetcher,
		cache:        cache,
		cacheOpts:    cacheOpts,
		maxNameRunes: maxNameRunes,
		logger:       logger,
	}
}

func (uc *imageRelayUseCase) Relay(ctx context.Context, imageURL string) (*entity.RelayedImage, error) {
	if imageURL == "" {
		return nil, &entity.ValidationError{Field: "url", Reason: "URL is required"}
	}
	if _, err := utils.ParseHTTPURL(imageURL); err != nil {
		return nil, &entity.ValidationError{Field: "url", Reason: err.Error()}
	}

	if img := uc.cached(ctx, imageURL); img != nil {
		metrics.RelayRequestsTotal.WithLabelValues("cache_hit").Inc()
		return img, nil
	}

	origin, err := utils.Origin(imageURL)
	if err != nil {
		return nil, &entity.ValidationError{Field: "url", Reason: err.Error()}
	}

	res, err := uc.fetcher.Fetch(ctx, imageURL, http.Header{"Referer": {origin}})
	if err != nil {
		metrics.RelayRequestsTotal.WithLabelValues("failure").Inc()
		uc.logger.Warn("image relay failed", zap.String("url", imageURL), zap.Error(err))
		return nil, err
	}
	metrics.RelayRequestsTotal.WithLabelValues("fetched").Inc()

	img := &entity.RelayedImage{
		SourceURL:   imageURL,
		ContentType: res.ContentType,
		Body:        res.Body,
	}
	uc.store(ctx, img)
	return img, nil
}

func (uc *imageRelayUseCase) Download(ctx context.Context, imageURL, alt string) (*entity.RelayedImage, error) {
	img, err := uc.Relay(ctx, imageURL)
	if err != nil {
		return nil, err
	}
	named := *img
	named.Filename = DeriveFilename(alt, img.ContentType, imageURL, uc.maxNameRunes)
	return &named, nil
}

func (uc *imageRelayUseCase) cached(ctx context.Context, imageURL string) *entity.RelayedImage {
	if uc.cache == nil {
		return nil
	}
	img, err := uc.cache.Get(ctx, imageURL)
	if err != nil {
		uc.logger.Warn("relay cache lookup failed", zap.String("url", imageURL), zap.Error(err))
		return nil
	}
	return img
}

func (uc *imageRelayUseCase) store(ctx context.Context, img *entity.RelayedImage) {
	if uc.cache == nil || uc.cacheOpts.TTL <= 0 || len(img.Body) > uc.cacheOpts.MaxBytes {
		return
	}
	if err := uc.cache.Put(ctx, img, uc.cacheOpts.TTL); err != nil {
		uc.logger.Warn("failed to cache relayed image", zap.String("url", img.SourceURL), zap.Error(err))
	}
}
