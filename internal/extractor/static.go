package extractor

import (
	"bytes"
	"context"
	"fmt"
	"net/http"

	"go.uber.org/zap"
	"golang.org/x/net/html/charset"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
)

// StaticExtractor reads images from the markup a server delivers, without running scripts.
type StaticExtractor struct {
	fetcher   repository.Fetcher
	norm      URLNormalizer
	lazyAttrs []string
	logger    *zap.Logger
}

// NewStaticExtractor creates a new StaticExtractor.
func NewStaticExtractor(fetcher repository.Fetcher, norm URLNormalizer, lazyAttrs []string, logger *zap.Logger) *StaticExtractor {
	return &StaticExtractor{
		fetcher:   fetcher,
		norm:      norm,
		lazyAttrs: lazyAttrs,
		logger:    logger,
	}
}

// Extract fetches pageURL once and returns the images referenced by its markup.
func (e *StaticExtractor) Extract(ctx context.Context, pageURL string) ([]entity.ImageRef, error) {
	header := http.Header{"Accept": {"text/html,application/xhtml+xml;q=0.9,*/*;q=0.8"}}
	page, err := e.fetcher.Fetch(ctx, pageURL, header)
	if err != nil {
		return nil, err
	}

	body, err := charset.NewReader(bytes.NewReader(page.Body), page.ContentType)
	if err != nil {
		e.logger.Debug("unknown page charset, parsing raw bytes", zap.String("url", pageURL), zap.Error(err))
		body = bytes.NewReader(page.Body)
	}

	images, err := ExtractImages(body, pageURL, e.lazyAttrs, e.norm)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", pageURL, err)
	}

	e.logger.Info("extracted images from page markup",
		zap.String("url", pageURL),
		zap.Int("images", len(images)),
	)
	return images, nil
}

var _ repository.ImageExtractor = (*StaticExtractor)(nil)
