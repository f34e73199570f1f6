package httpfetch

import (
	"compress/gzip"
	"compress/zlib"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/entity"
)

const defaultMaxBodyBytes = 50 << 20

// Options configures a Client.
type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	Rotation     *Rotation
	// Transport overrides the default transport; Rotation proxies are then not applied.
	Transport http.RoundTripper
}

// Client provides a concrete implementation of repository.Fetcher over net/http
// with browser-like request headers.
type Client struct {
	http         *http.Client
	rotation     *Rotation
	maxBodyBytes int64
	logger       *zap.Logger
}

// NewClient creates a new Client.
func NewClient(opts Options, logger *zap.Logger) *Client {
	rotation := opts.Rotation
	if rotation == nil {
		rotation, _ = NewRotation(nil, nil)
	}
	transport := opts.Transport
	if transport == nil {
		t := http.DefaultTransport.(*http.Transport).Clone()
		t.Proxy = rotation.Proxy
		// Encoding is negotiated and decoded here so brotli can be offered.
		t.DisableCompression = true
		transport = t
	}
	maxBody := opts.MaxBodyBytes
	if maxBody <= 0 {
		maxBody = defaultMaxBodyBytes
	}
	return &Client{
		http: &http.Client{
			Transport: transport,
			Timeout:   opts.Timeout,
		},
		rotation:     rotation,
		maxBodyBytes: maxBody,
		logger:       logger,
	}
}

// Fetch performs one GET, following redirects, and returns the decoded body.
func (c *Client) Fetch(ctx context.Context, rawURL string, header http.Header) (*entity.FetchedResource, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &entity.FetchError{URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.rotation.UserAgent())
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/avif,image/webp,image/apng,*/*;q=0.8")
	req.Header.Set("Accept-Language", "en-US,en;q=0.9")
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")
	for k, vs := range header {
		req.Header.Del(k)
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Debug("outbound request failed", zap.String("url", rawURL), zap.Error(err))
		return nil, &entity.FetchError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &entity.FetchError{URL: rawURL, StatusCode: resp.StatusCode}
	}

	body, err := c.readBody(resp)
	if err != nil {
		return nil, &entity.FetchError{URL: rawURL, Err: err}
	}

	c.logger.Debug("outbound request completed",
		zap.String("url", rawURL),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return &entity.FetchedResource{
		URL:         rawURL,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

func (c *Client) readBody(resp *http.Response) ([]byte, error) {
	var r io.Reader = resp.Body
	switch strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding"))) {
	case "", "identity":
	case "gzip", "x-gzip":
		gr, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("gzip body: %w", err)
		}
		defer gr.Close()
		r = gr
	case "br":
		r = brotli.NewReader(resp.Body)
	case "deflate":
		zr, err := zlib.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("deflate body: %w", err)
		}
		defer zr.Close()
		r = zr
	default:
		return nil, fmt.Errorf("unsupported content encoding %q", resp.Header.Get("Content-Encoding"))
	}

	body, err := io.ReadAll(io.LimitReader(r, c.maxBodyBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(body)) > c.maxBodyBytes {
		return nil, errors.New("response body exceeds size limit")
	}
	return body, nil
}
