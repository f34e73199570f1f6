package postgres

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
)

const createScrapeEventsTable = `
	CREATE TABLE IF NOT EXISTS scrape_events (
		id           BIGSERIAL PRIMARY KEY,
		page_url     TEXT        NOT NULL,
		mode         TEXT        NOT NULL,
		status       TEXT        NOT NULL,
		image_count  INTEGER     NOT NULL DEFAULT 0,
		error        TEXT        NOT NULL DEFAULT '',
		duration_ms  BIGINT      NOT NULL DEFAULT 0,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
	CREATE INDEX IF NOT EXISTS scrape_events_page_url_created_at_idx
		ON scrape_events (page_url, created_at DESC);
`

const insertScrapeEvent = `
	INSERT INTO scrape_events (page_url, mode, status, image_count, error, duration_ms, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	RETURNING id;
`

// selectRecentScrapeEvents lists columns in the order Recent scans them.
const selectRecentScrapeEvents = `
	SELECT id, page_url, mode, status, image_count, error, duration_ms, created_at
	FROM scrape_events
	WHERE page_url = $1
	ORDER BY created_at DESC, id DESC
	LIMIT $2;
`

// ScrapeEventRepoImpl provides a concrete implementation for the ScrapeEventRepository interface using PostgreSQL.
type ScrapeEventRepoImpl struct {
	db *pgxpool.Pool
}

// NewScrapeEventRepo creates a new instance of ScrapeEventRepoImpl.
func NewScrapeEventRepo(db *pgxpool.Pool) *ScrapeEventRepoImpl {
	return &ScrapeEventRepoImpl{db: db}
}

// EnsureSchema creates the scrape_events table if it does not exist yet.
func (r *ScrapeEventRepoImpl) EnsureSchema(ctx context.Context) error {
	_, err := r.db.Exec(ctx, createScrapeEventsTable)
	return err
}

// Save inserts one event and fills in its generated id.
func (r *ScrapeEventRepoImpl) Save(ctx context.Context, event *entity.ScrapeEvent) error {
	return r.db.QueryRow(ctx, insertScrapeEvent,
		event.PageURL,
		string(event.Mode),
		event.Status,
		event.ImageCount,
		event.Error,
		event.DurationMS,
		event.CreatedAt,
	).Scan(&event.ID)
}

// Recent retrieves the latest events for a page, newest first.
func (r *ScrapeEventRepoImpl) Recent(ctx context.Context, pageURL string, limit int) ([]*entity.ScrapeEvent, error) {
	rows, err := r.db.Query(ctx, selectRecentScrapeEvents, pageURL, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := []*entity.ScrapeEvent{}
	for rows.Next() {
		var ev entity.ScrapeEvent
		if err := rows.Scan(
			&ev.ID,
			&ev.PageURL,
			&ev.Mode,
			&ev.Status,
			&ev.ImageCount,
			&ev.Error,
			&ev.DurationMS,
			&ev.CreatedAt,
		); err != nil {
			return nil, err
		}
		events = append(events, &ev)
	}

	return events, rows.Err()
}

var _ repository.ScrapeEventRepository = (*ScrapeEventRepoImpl)(nil)
