package usecase

import (
	"mime"
	"net/url"
	"path"
	"strings"
)

const fallbackFilename = "image"

var filenameReplacer = strings.NewReplacer(
	"\r", "", "\n", "",
	"_", " ",
	`\`, "", "/", "", "*", "", "?", "", ":", "", `"`, "", "<", "", ">", "", "|", "",
)

// contentTypeExtensions maps image media types to the extension used in downloads.
var contentTypeExtensions = map[string]string{
	"image/jpeg":               ".jpg",
	"image/jpg":                ".jpg",
	"image/pjpeg":              ".jpg",
	"image/png":                ".png",
	"image/gif":                ".gif",
	"image/webp":               ".webp",
	"image/svg+xml":            ".svg",
	"image/bmp":                ".bmp",
	"image/avif":               ".avif",
	"image/x-icon":             ".ico",
	"image/vnd.microsoft.icon": ".ico",
	"image/tiff":               ".tiff",
}

var pathExtensions = map[string]string{
	".jpg": ".jpg", ".jpeg": ".jpg", ".png": ".png", ".gif": ".gif",
	".webp": ".webp", ".svg": ".svg", ".bmp": ".bmp", ".avif": ".avif",
	".ico": ".ico", ".tif": ".tiff", ".tiff": ".tiff",
}

// SanitizeFilename turns alt text into a filesystem-safe base name of at most maxLen runes.
func SanitizeFilename(alt string, maxLen int) string {
	name := strings.TrimSpace(filenameReplacer.Replace(alt))
	if runes := []rune(name); maxLen > 0 && len(runes) > maxLen {
		name = strings.TrimSpace(string(runes[:maxLen]))
	}
	if name == "" {
		return fallbackFilename
	}
	return name
}

// ImageExtension picks a file extension from the response content type, then
// from the URL path, and finally defaults to .jpg.
func ImageExtension(contentType, rawURL string) string {
	if mediaType, _, err := mime.ParseMediaType(contentType); err == nil {
		if ext, ok := contentTypeExtensions[strings.ToLower(mediaType)]; ok {
			return ext
		}
	}
	if u, err := url.Parse(rawURL); err == nil {
		if ext, ok := pathExtensions[strings.ToLower(path.Ext(u.Path))]; ok {
			return ext
		}
	}
	return ".jpg"
}

// DeriveFilename builds the download name for one image.
func DeriveFilename(alt, contentType, rawURL string, maxLen int) string {
	return SanitizeFilename(alt, maxLen) + ImageExtension(contentType, rawURL)
}
