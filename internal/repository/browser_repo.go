package repository

import "context"

// Browser hands out exclusive headless browser sessions.
type Browser interface {
	// Acquire starts a browser instance owned by the caller until Release.
	Acquire(ctx context.Context) (BrowserSession, error)
}

// BrowserSession is the narrow capability the rendered extractor drives.
type BrowserSession interface {
	// Navigate loads url and waits for the document body.
	Navigate(ctx context.Context, url string) error
	// Evaluate runs script in the page and decodes its result into res, which may be nil.
	Evaluate(ctx context.Context, script string, res any) error
	// PageSource returns the outer HTML of the current document.
	PageSource(ctx context.Context) (string, error)
	// Release terminates the browser instance. It is safe to call more than once.
	Release() error
}
