package chromedp_browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/pkg/metrics"
)

// Options configures the headless Chrome instances.
type Options struct {
	// ExecPath overrides Chrome discovery when set.
	ExecPath string
	// UserAgent is sent by every browser instance.
	UserAgent string
	// Timeout bounds each individual browser operation.
	Timeout time.Duration
}

type ChromedpBrowser struct {
	opts   Options
	logger *zap.Logger
}

// NewChromedpBrowser creates a browser factory backed by chromedp. No Chrome
// process is started until Acquire is called.
func NewChromedpBrowser(opts Options, logger *zap.Logger) *ChromedpBrowser {
	return &ChromedpBrowser{opts: opts, logger: logger}
}

func (b *ChromedpBrowser) allocatorOptions() []chromedp.ExecAllocatorOption {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
	)
	if b.opts.UserAgent != "" {
		opts = append(opts, chromedp.UserAgent(b.opts.UserAgent))
	}
	if b.opts.ExecPath != "" {
		opts = append(opts, chromedp.ExecPath(b.opts.ExecPath))
	}
	return opts
}

// Acquire launches a dedicated Chrome process. Each scrape gets its own
// instance so no cookies or storage leak between calls.
func (b *ChromedpBrowser) Acquire(ctx context.Context) (repository.BrowserSession, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), b.allocatorOptions()...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, chromedp.WithLogf(b.logger.Sugar().Debugf))

	s := &session{
		tabCtx:  tabCtx,
		cancel:  func() { tabCancel(); allocCancel() },
		timeout: b.opts.Timeout,
		logger:  b.logger,
	}

	if err := s.start(ctx); err != nil {
		s.cancel()
		return nil, fmt.Errorf("start chrome: %w", err)
	}

	chromedp.ListenTarget(tabCtx, s.onEvent)
	metrics.BrowserSessionsActive.Inc()
	return s, nil
}

type session struct {
	tabCtx  context.Context
	cancel  context.CancelFunc
	timeout time.Duration
	logger  *zap.Logger

	mu             sync.Mutex
	documentStatus int64

	releaseOnce sync.Once
	releaseErr  error
}

// onEvent records the status of the top-level document response.
func (s *session) onEvent(ev any) {
	if e, ok := ev.(*network.EventResponseReceived); ok && e.Type == network.ResourceTypeDocument {
		s.mu.Lock()
		if s.documentStatus == 0 {
			s.documentStatus = e.Response.Status
		}
		s.mu.Unlock()
	}
}

// start launches the browser process. The first Run must receive tabCtx
// itself because chromedp binds the Chrome process to that context; a derived
// context cancelled on return would kill it. A watchdog tears the session
// down if startup outlives the timeout or the caller's context.
func (s *session) start(ctx context.Context) error {
	var (
		watchCtx    context.Context
		cancelWatch context.CancelFunc
	)
	if s.timeout > 0 {
		watchCtx, cancelWatch = context.WithTimeout(ctx, s.timeout)
	} else {
		watchCtx, cancelWatch = context.WithCancel(ctx)
	}
	defer cancelWatch()

	stopWatchdog := context.AfterFunc(watchCtx, s.cancel)

	err := chromedp.Run(s.tabCtx)
	if !stopWatchdog() {
		// The watchdog already fired and the browser is gone.
		if ctxErr := watchCtx.Err(); ctxErr != nil {
			return ctxErr
		}
		return context.Canceled
	}
	return err
}

// run executes actions on an already started tab, bounded by both the
// caller's context and the per-operation timeout. Cancelling a context derived
// from tabCtx after the first Run only aborts the actions, not the browser.
func (s *session) run(ctx context.Context, actions ...chromedp.Action) error {
	runCtx := s.tabCtx
	var cancel context.CancelFunc
	if s.timeout > 0 {
		runCtx, cancel = context.WithTimeout(runCtx, s.timeout)
	} else {
		runCtx, cancel = context.WithCancel(runCtx)
	}
	defer cancel()

	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if err := chromedp.Run(runCtx, actions...); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		return err
	}
	return nil
}

func (s *session) Navigate(ctx context.Context, url string) error {
	s.mu.Lock()
	s.documentStatus = 0
	s.mu.Unlock()

	err := s.run(ctx,
		network.Enable(),
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
	if err != nil {
		return err
	}

	s.mu.Lock()
	status := s.documentStatus
	s.mu.Unlock()
	if status >= 400 {
		return fmt.Errorf("document responded with status %d", status)
	}
	return nil
}

func (s *session) Evaluate(ctx context.Context, script string, res any) error {
	return s.run(ctx, chromedp.Evaluate(script, res))
}

func (s *session) PageSource(ctx context.Context) (string, error) {
	var html string
	if err := s.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", err
	}
	return html, nil
}

func (s *session) Release() error {
	s.releaseOnce.Do(func() {
		s.releaseErr = chromedp.Cancel(s.tabCtx)
		s.cancel()
		metrics.BrowserSessionsActive.Dec()
		s.logger.Debug("browser session released")
	})
	return s.releaseErr
}

var _ repository.Browser = (*ChromedpBrowser)(nil)
