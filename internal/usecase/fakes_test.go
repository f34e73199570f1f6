package usecase

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/user/image-scraper-service/internal/entity"
)

type fakeResponse struct {
	contentType string
	body        []byte
	status      int
	delay       time.Duration
	// ignoreCancel makes the delay run to completion even after ctx is done.
	ignoreCancel bool
}

// fakeFetcher serves canned responses keyed by URL and records requests.
type fakeFetcher struct {
	responses map[string]fakeResponse

	mu      sync.Mutex
	headers map[string]http.Header
	calls   int

	inFlight    atomic.Int32
	maxInFlight atomic.Int32
}

func newFakeFetcher(responses map[string]fakeResponse) *fakeFetcher {
	return &fakeFetcher{responses: responses, headers: make(map[string]http.Header)}
}

func (f *fakeFetcher) Fetch(ctx context.Context, rawURL string, header http.Header) (*entity.FetchedResource, error) {
	n := f.inFlight.Add(1)
	defer f.inFlight.Add(-1)
	for {
		m := f.maxInFlight.Load()
		if n <= m || f.maxInFlight.CompareAndSwap(m, n) {
			break
		}
	}

	f.mu.Lock()
	f.calls++
	f.headers[rawURL] = header.Clone()
	f.mu.Unlock()

	resp, ok := f.responses[rawURL]
	if resp.delay > 0 && resp.ignoreCancel {
		time.Sleep(resp.delay)
	} else if resp.delay > 0 {
		select {
		case <-time.After(resp.delay):
		case <-ctx.Done():
			return nil, &entity.FetchError{URL: rawURL, Err: ctx.Err()}
		}
	}
	if !ok {
		return nil, &entity.FetchError{URL: rawURL, StatusCode: http.StatusNotFound}
	}
	if resp.status >= 400 {
		return nil, &entity.FetchError{URL: rawURL, StatusCode: resp.status}
	}
	return &entity.FetchedResource{
		URL:         rawURL,
		FinalURL:    rawURL,
		StatusCode:  http.StatusOK,
		ContentType: resp.contentType,
		Body:        resp.body,
	}, nil
}

func (f *fakeFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeFetcher) headerFor(rawURL string) http.Header {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.headers[rawURL]
}
