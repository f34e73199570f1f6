package entity

import "time"

// ScrapeEvent mirrors the `scrape_events` PostgreSQL table schema.
// It records how a scrape call went, never the images it found.
type ScrapeEvent struct {
	ID         int64
	PageURL    string
	Mode       ScrapeMode
	Status     string // "success", "failure"
	ImageCount int
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}
