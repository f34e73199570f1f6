package repository

import (
	"context"
	"time"

	"github.com/user/image-scraper-service/internal/entity"
)

// RelayCacheRepository defines a short-lived cache of relayed upstream images.
type RelayCacheRepository interface {
	// Get returns the cached image for url, or (nil, nil) on a miss.
	Get(ctx context.Context, url string) (*entity.RelayedImage, error)
	// Put stores img under url for ttl.
	Put(ctx context.Context, img *entity.RelayedImage, ttl time.Duration) error
}
