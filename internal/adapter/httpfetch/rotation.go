package httpfetch

import (
	"math/rand/v2"
	"net/http"
	"net/url"
	"sync"
)

// DefaultUserAgents are used when no pool is configured.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
	"Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
}

// Rotation hands out outbound proxies round-robin and user agents at random.
type Rotation struct {
	proxies    []*url.URL
	userAgents []string
	mu         sync.Mutex
	proxyIndex int
}

// NewRotation parses the proxy list. Unparseable proxies are reported, not skipped.
func NewRotation(proxies, userAgents []string) (*Rotation, error) {
	r := &Rotation{userAgents: userAgents}
	if len(r.userAgents) == 0 {
		r.userAgents = DefaultUserAgents
	}
	for _, p := range proxies {
		if p == "" {
			continue
		}
		u, err := url.Parse(p)
		if err != nil {
			return nil, err
		}
		r.proxies = append(r.proxies, u)
	}
	return r, nil
}

// Proxy is an http.Transport Proxy func. With no proxies configured it defers
// to the environment (HTTP_PROXY, HTTPS_PROXY, NO_PROXY).
func (r *Rotation) Proxy(req *http.Request) (*url.URL, error) {
	if len(r.proxies) == 0 {
		return http.ProxyFromEnvironment(req)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	p := r.proxies[r.proxyIndex]
	r.proxyIndex = (r.proxyIndex + 1) % len(r.proxies)
	return p, nil
}

// UserAgent returns a random user agent string from the pool.
func (r *Rotation) UserAgent() string {
	return r.userAgents[rand.IntN(len(r.userAgents))]
}
