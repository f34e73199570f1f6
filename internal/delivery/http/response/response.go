package response

import "time"

// ImageResponse is one scraped image as the browser client expects it.
type ImageResponse struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type"` // "validation", "fetch", "render", "internal"
}

type HealthResponse struct {
	Status       string            `json:"status"` // "ok" or "degraded"
	Dependencies map[string]string `json:"dependencies,omitempty"`
}

// ScrapeEventResponse is a DTO for one recorded scrape, mirroring entity.ScrapeEvent.
type ScrapeEventResponse struct {
	Mode       string    `json:"mode"`
	Status     string    `json:"status"`
	ImageCount int       `json:"image_count"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

type ScrapeStatusResponse struct {
	URL    string                `json:"url"`
	Events []ScrapeEventResponse `json:"events"`
}
