package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"

	whatwgUrl "github.com/nlnwa/whatwg-url/url"
)

var urlParser = whatwgUrl.NewParser(whatwgUrl.WithPercentEncodeSinglePercentSign())

// HashURL creates a SHA256 hash of a URL string.
// This is useful for creating consistent, safe keys for Redis.
func HashURL(rawURL string) string {
	h := sha256.New()
	h.Write([]byte(rawURL))
	return hex.EncodeToString(h.Sum(nil))
}

// ToAbsoluteURL resolves ref against base the way a browser resolves an attribute value.
func ToAbsoluteURL(base, ref string) (string, error) {
	u, err := urlParser.ParseRef(base, strings.TrimSpace(ref))
	if err != nil {
		return "", err
	}
	return u.Href(false), nil
}

// ParseHTTPURL parses rawURL and requires an absolute http or https URL with a host.
func ParseHTTPURL(rawURL string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return nil, err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("scheme must be http or https")
	}
	if u.Host == "" {
		return nil, errors.New("host is missing")
	}
	return u, nil
}

// Origin returns scheme://host/ for rawURL, suitable as a Referer header.
func Origin(rawURL string) (string, error) {
	u, err := ParseHTTPURL(rawURL)
	if err != nil {
		return "", err
	}
	return u.Scheme + "://" + u.Host + "/", nil
}
