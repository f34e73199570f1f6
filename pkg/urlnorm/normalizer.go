// Package urlnorm rewrites CDN thumbnail URLs to the full-resolution asset they were scaled from.
package urlnorm

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gobwas/glob"
)

// DefaultCDNHosts are the host patterns of the wiki CDN that serves
// /revision/latest/scale-to-width-down/<n> thumbnails.
var DefaultCDNHosts = []string{
	"static.wikia.nocookie.net",
	"vignette*.wikia.nocookie.net",
}

var imageExtensions = []string{
	".jpg", ".jpeg", ".png", ".gif", ".webp", ".svg", ".bmp", ".avif", ".ico", ".tif", ".tiff",
}

// Normalizer is immutable after construction and safe for concurrent use.
type Normalizer struct {
	hosts []glob.Glob
}

// New compiles the host patterns. An empty list disables normalization.
func New(hostPatterns []string) (*Normalizer, error) {
	n := &Normalizer{}
	for _, p := range hostPatterns {
		p = strings.ToLower(strings.TrimSpace(p))
		if p == "" {
			continue
		}
		g, err := glob.Compile(p, '.')
		if err != nil {
			return nil, fmt.Errorf("compile cdn host pattern %q: %w", p, err)
		}
		n.hosts = append(n.hosts, g)
	}
	return n, nil
}

// Normalize truncates the path of a matching CDN URL right after the first
// segment that carries an image extension, keeping query and fragment.
// Anything else is returned as is.
func (n *Normalizer) Normalize(rawURL string) string {
	if n == nil || len(n.hosts) == 0 {
		return rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" || !n.matchHost(u.Hostname()) {
		return rawURL
	}

	path := u.EscapedPath()
	segments := strings.Split(path, "/")
	cut := -1
	for i, seg := range segments {
		if hasImageExtension(seg) {
			cut = i
			break
		}
	}
	if cut < 0 {
		return rawURL
	}
	trimmed := strings.Join(segments[:cut+1], "/")
	if trimmed == path {
		return rawURL
	}

	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host)
	b.WriteString(trimmed)
	if u.RawQuery != "" || u.ForceQuery {
		b.WriteByte('?')
		b.WriteString(u.RawQuery)
	}
	if u.Fragment != "" {
		b.WriteByte('#')
		b.WriteString(u.EscapedFragment())
	}
	return b.String()
}

func (n *Normalizer) matchHost(host string) bool {
	host = strings.ToLower(host)
	for _, g := range n.hosts {
		if g.Match(host) {
			return true
		}
	}
	return false
}

func hasImageExtension(segment string) bool {
	seg := strings.ToLower(segment)
	for _, ext := range imageExtensions {
		if strings.HasSuffix(seg, ext) && len(seg) > len(ext) {
			return true
		}
	}
	return false
}
