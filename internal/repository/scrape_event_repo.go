package repository

import (
	"context"

	"github.com/user/image-scraper-service/internal/entity"
)

// ScrapeEventRepository defines the interface for recording scrape call outcomes.
type ScrapeEventRepository interface {
	// Save appends one event.
	Save(ctx context.Context, event *entity.ScrapeEvent) error
	// Recent returns the latest events for pageURL, newest first.
	Recent(ctx context.Context, pageURL string, limit int) ([]*entity.ScrapeEvent, error)
}
