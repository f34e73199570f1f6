package extractor

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
)

// fakeSession replays a scripted sequence of document heights.
type fakeSession struct {
	mu          sync.Mutex
	heights     []int64
	heightReads int
	scrolls     int
	html        string
	navigateErr error
	sourceErr   error
	released    int
}

func (s *fakeSession) Navigate(ctx context.Context, url string) error {
	return s.navigateErr
}

func (s *fakeSession) Evaluate(ctx context.Context, script string, res any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch script {
	case scrollToBottomScript:
		s.scrolls++
		return nil
	case scrollHeightScript:
		i := s.heightReads
		if i >= len(s.heights) {
			i = len(s.heights) - 1
		}
		s.heightReads++
		raw, _ := json.Marshal(s.heights[i])
		return json.Unmarshal(raw, res)
	}
	return errors.New("unexpected script")
}

func (s *fakeSession) PageSource(ctx context.Context) (string, error) {
	return s.html, s.sourceErr
}

func (s *fakeSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return nil
}

type fakeBrowser struct {
	session    *fakeSession
	acquireErr error
}

func (b *fakeBrowser) Acquire(ctx context.Context) (repository.BrowserSession, error) {
	if b.acquireErr != nil {
		return nil, b.acquireErr
	}
	return b.session, nil
}

func newRenderedExtractor(t *testing.T, session *fakeSession, rounds int) *RenderedExtractor {
	t.Helper()
	cfg := RenderConfig{MaxScrollRounds: rounds}
	return NewRenderedExtractor(&fakeBrowser{session: session}, nil, cfg, zaptest.NewLogger(t))
}

func TestRenderedExtractor_StopsWhenHeightStabilizes(t *testing.T) {
	session := &fakeSession{
		heights: []int64{1000, 2000, 2000},
		html:    `<img src="/a.jpg" alt="A">`,
	}

	images, err := newRenderedExtractor(t, session, 5).Extract(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, 2, session.scrolls)
	assert.Equal(t, 1, session.released)
	assert.Equal(t, []entity.ImageRef{{SourceURL: "https://example.com/a.jpg", AltText: "A"}}, images)
}

func TestRenderedExtractor_CapsScrollRounds(t *testing.T) {
	session := &fakeSession{
		heights: []int64{100, 200, 300, 400, 500, 600, 700, 800},
		html:    `<body></body>`,
	}

	images, err := newRenderedExtractor(t, session, 5).Extract(context.Background(), "https://example.com/")
	require.NoError(t, err)

	assert.Equal(t, 5, session.scrolls)
	assert.Empty(t, images)
	assert.Equal(t, 1, session.released)
}

func TestRenderedExtractor_ReadsEagerSourceOnly(t *testing.T) {
	session := &fakeSession{
		heights: []int64{500},
		html:    `<img src="/loaded.jpg" data-src="/stale.jpg" alt="Loaded"><img src="/x.jpg" alt=" ">`,
	}

	images, err := newRenderedExtractor(t, session, 5).Extract(context.Background(), "https://example.com/post")
	require.NoError(t, err)
	assert.Equal(t, []entity.ImageRef{{SourceURL: "https://example.com/loaded.jpg", AltText: "Loaded"}}, images)
}

func TestRenderedExtractor_ReleasesSessionOnFailure(t *testing.T) {
	boom := errors.New("net::ERR_NAME_NOT_RESOLVED")
	session := &fakeSession{heights: []int64{1}, navigateErr: boom}

	images, err := newRenderedExtractor(t, session, 5).Extract(context.Background(), "https://nowhere.invalid/")
	require.Error(t, err)
	assert.Nil(t, images)
	assert.Equal(t, 1, session.released)

	var renderErr *entity.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "navigate", renderErr.Op)
	assert.ErrorIs(t, err, boom)
}

func TestRenderedExtractor_PageSourceFailure(t *testing.T) {
	session := &fakeSession{heights: []int64{1}, sourceErr: errors.New("target closed")}

	_, err := newRenderedExtractor(t, session, 5).Extract(context.Background(), "https://example.com/")
	var renderErr *entity.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, 1, session.released)
}

func TestRenderedExtractor_AcquireFailure(t *testing.T) {
	browser := &fakeBrowser{acquireErr: errors.New("chrome not found")}
	e := NewRenderedExtractor(browser, nil, RenderConfig{MaxScrollRounds: 5}, zaptest.NewLogger(t))

	_, err := e.Extract(context.Background(), "https://example.com/")
	var renderErr *entity.RenderError
	require.True(t, errors.As(err, &renderErr))
	assert.Equal(t, "acquire browser", renderErr.Op)
}

func TestRenderedExtractor_CancelledContextStopsPause(t *testing.T) {
	session := &fakeSession{heights: []int64{1, 2, 3}}
	cfg := DefaultRenderConfig()
	e := NewRenderedExtractor(&fakeBrowser{session: session}, nil, cfg, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := e.Extract(ctx, "https://example.com/")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, session.released)
}
