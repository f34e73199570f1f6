package repository

import (
	"context"
	"net/http"

	"github.com/user/image-scraper-service/internal/entity"
)

// Fetcher defines the outbound HTTP capability used by the extractors, the relay and the archive builder.
type Fetcher interface {
	// Fetch issues one GET to rawURL with the extra headers merged over the
	// client defaults. Transport failures and non-2xx statuses are returned as
	// *entity.FetchError.
	Fetch(ctx context.Context, rawURL string, header http.Header) (*entity.FetchedResource, error)
}
