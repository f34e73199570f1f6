package extractor

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/pkg/metrics"
)

const (
	scrollToBottomScript = `window.scrollTo(0, document.body.scrollHeight);`
	scrollHeightScript   = `document.body.scrollHeight`
)

// RenderConfig bounds the scroll-stabilization loop.
type RenderConfig struct {
	// MaxScrollRounds caps the number of scroll-and-wait rounds.
	MaxScrollRounds int
	// ScrollPause is the wait after each scroll for lazy content to arrive.
	ScrollPause time.Duration
	// FinalPause is the wait after the loop, before the DOM is read.
	FinalPause time.Duration
}

// DefaultRenderConfig returns 5 rounds of 2 seconds plus a 2 second settle.
func DefaultRenderConfig() RenderConfig {
	return RenderConfig{
		MaxScrollRounds: 5,
		ScrollPause:     2 * time.Second,
		FinalPause:      2 * time.Second,
	}
}

// RenderedExtractor renders the page in a headless browser, scrolls until the
// document height stops changing, and reads images from the final DOM.
type RenderedExtractor struct {
	browser repository.Browser
	norm    URLNormalizer
	cfg     RenderConfig
	logger  *zap.Logger
}

// NewRenderedExtractor creates a new RenderedExtractor.
func NewRenderedExtractor(browser repository.Browser, norm URLNormalizer, cfg RenderConfig, logger *zap.Logger) *RenderedExtractor {
	return &RenderedExtractor{
		browser: browser,
		norm:    norm,
		cfg:     cfg,
		logger:  logger,
	}
}

// Extract renders pageURL and returns the images present once scrolling has settled.
// The browser session is released before Extract returns, whatever the outcome.
func (e *RenderedExtractor) Extract(ctx context.Context, pageURL string) ([]entity.ImageRef, error) {
	session, err := e.browser.Acquire(ctx)
	if err != nil {
		return nil, &entity.RenderError{URL: pageURL, Op: "acquire browser", Err: err}
	}
	defer func() {
		if err := session.Release(); err != nil {
			e.logger.Warn("failed to release browser session", zap.String("url", pageURL), zap.Error(err))
		}
	}()

	if err := session.Navigate(ctx, pageURL); err != nil {
		return nil, &entity.RenderError{URL: pageURL, Op: "navigate", Err: err}
	}

	rounds, err := e.scrollUntilStable(ctx, session)
	metrics.ScrollRounds.Observe(float64(rounds))
	if err != nil {
		return nil, &entity.RenderError{URL: pageURL, Op: "scroll", Err: err}
	}

	if err := pause(ctx, e.cfg.FinalPause); err != nil {
		return nil, &entity.RenderError{URL: pageURL, Op: "settle", Err: err}
	}

	html, err := session.PageSource(ctx)
	if err != nil {
		return nil, &entity.RenderError{URL: pageURL, Op: "read page source", Err: err}
	}

	// Scripts have resolved every lazy source by now, so only src is read.
	images, err := ExtractImages(strings.NewReader(html), pageURL, nil, e.norm)
	if err != nil {
		return nil, &entity.RenderError{URL: pageURL, Op: "parse page source", Err: err}
	}

	e.logger.Info("extracted images from rendered page",
		zap.String("url", pageURL),
		zap.Int("scroll_rounds", rounds),
		zap.Int("images", len(images)),
	)
	return images, nil
}

// scrollUntilStable returns the number of scroll rounds performed.
func (e *RenderedExtractor) scrollUntilStable(ctx context.Context, session repository.BrowserSession) (int, error) {
	lastHeight, err := readScrollHeight(ctx, session)
	if err != nil {
		return 0, err
	}

	rounds := 0
	for rounds < e.cfg.MaxScrollRounds {
		if err := session.Evaluate(ctx, scrollToBottomScript, nil); err != nil {
			return rounds, err
		}
		rounds++

		if err := pause(ctx, e.cfg.ScrollPause); err != nil {
			return rounds, err
		}

		height, err := readScrollHeight(ctx, session)
		if err != nil {
			return rounds, err
		}
		if height == lastHeight {
			break
		}
		lastHeight = height
	}
	return rounds, nil
}

func readScrollHeight(ctx context.Context, session repository.BrowserSession) (int64, error) {
	var height int64
	err := session.Evaluate(ctx, scrollHeightScript, &height)
	return height, err
}

func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ repository.ImageExtractor = (*RenderedExtractor)(nil)
