package entity

import "strings"

// ScrapeMode selects the extraction strategy for a page.
type ScrapeMode string

const (
	// ScrapeModeFast fetches the page once over HTTP and parses the delivered markup.
	ScrapeModeFast ScrapeMode = "fast"
	// ScrapeModeDeep renders the page in a headless browser before parsing.
	ScrapeModeDeep ScrapeMode = "deep"
)

// ImageRef identifies an image discovered on a page.
type ImageRef struct {
	SourceURL string `json:"src"`
	AltText   string `json:"alt"`
}

// HasAlt reports whether the reference carries usable alt text.
func (r ImageRef) HasAlt() bool {
	return strings.TrimSpace(r.AltText) != ""
}

// ScrapeRequest is one scrape call.
type ScrapeRequest struct {
	PageURL string
	Mode    ScrapeMode
}

// RelayedImage is an upstream image fetched on behalf of the client.
type RelayedImage struct {
	SourceURL   string
	ContentType string
	Body        []byte
	// Filename is set only when the image is served as a download.
	Filename string
}

// FetchedResource is the outcome of a single outbound GET.
type FetchedResource struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}
