package repository

import (
	"context"

	"github.com/user/image-scraper-service/internal/entity"
)

// ImageExtractor defines the contract for discovering images on a single page.
type ImageExtractor interface {
	// Extract returns the images found on pageURL. Every returned reference has
	// an absolute source URL and non-blank alt text.
	Extract(ctx context.Context, pageURL string) ([]entity.ImageRef, error)
}
