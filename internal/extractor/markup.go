// Package extractor holds the two page-extraction strategies: a single HTTP
// fetch of the delivered markup, and a headless-browser render with
// scroll-triggered lazy loading.
package extractor

import (
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/pkg/utils"
)

// URLNormalizer rewrites a resolved image URL; *urlnorm.Normalizer satisfies it.
type URLNormalizer interface {
	Normalize(rawURL string) string
}

// ExtractImages parses an HTML document and returns one reference per img
// element that has a source and non-blank alt text. lazyAttrs are consulted in
// order before src; pass none to read src only.
func ExtractImages(r io.Reader, pageURL string, lazyAttrs []string, norm URLNormalizer) ([]entity.ImageRef, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}

	base := pageURL
	if href, found := doc.Find("base[href]").First().Attr("href"); found {
		if resolved, err := utils.ToAbsoluteURL(pageURL, href); err == nil {
			base = resolved
		}
	}

	images := []entity.ImageRef{}
	doc.Find("img").Each(func(i int, s *goquery.Selection) {
		src := imageSource(s, lazyAttrs)
		if src == "" {
			return
		}
		alt := strings.TrimSpace(s.AttrOr("alt", ""))
		if alt == "" {
			return
		}
		abs, err := utils.ToAbsoluteURL(base, src)
		if err != nil {
			return
		}
		if norm != nil {
			abs = norm.Normalize(abs)
		}
		images = append(images, entity.ImageRef{SourceURL: abs, AltText: alt})
	})

	return images, nil
}

func imageSource(s *goquery.Selection, lazyAttrs []string) string {
	for _, attr := range lazyAttrs {
		if v := strings.TrimSpace(s.AttrOr(attr, "")); v != "" {
			return v
		}
	}
	return strings.TrimSpace(s.AttrOr("src", ""))
}
