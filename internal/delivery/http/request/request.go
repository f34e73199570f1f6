package request

import "github.com/user/image-scraper-service/internal/entity"

type ScrapeRequest struct {
	URL  string `json:"url"`
	Mode string `json:"mode"` // "fast" (default) or "deep"
}

type DownloadImageRequest struct {
	URL string `json:"url"`
	Alt string `json:"alt"`
}

type DownloadSelectedRequest struct {
	Images []SelectedImage `json:"images"`
}

// SelectedImage is one entry of a scrape result echoed back by the client.
type SelectedImage struct {
	Src string `json:"src"`
	Alt string `json:"alt"`
}

// Selection converts the request body into the domain selection.
func (r DownloadSelectedRequest) Selection() entity.DownloadSelection {
	selection := make(entity.DownloadSelection, 0, len(r.Images))
	for _, img := range r.Images {
		selection = append(selection, entity.ImageRef{SourceURL: img.Src, AltText: img.Alt})
	}
	return selection
}
