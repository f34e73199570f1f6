package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/user/image-scraper-service/internal/entity"
)

func readZip(t *testing.T, data []byte) map[string][]byte {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)

	files := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		files[f.Name] = body
	}
	return files
}

func TestArchiveBuilder_Build(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakeResponse{
		"https://img.test/a":     {contentType: "image/png", body: []byte("A")},
		"https://img.test/b.gif": {contentType: "", body: []byte("B")},
		"https://img.test/c":     {contentType: "image/jpeg", body: []byte("C")},
	})
	builder := NewArchiveBuilder(fetcher, 4, 100, zaptest.NewLogger(t))

	archive, err := builder.Build(context.Background(), entity.DownloadSelection{
		{SourceURL: "https://img.test/a", AltText: "Alpha_one"},
		{SourceURL: "https://img.test/b.gif", AltText: "Beta"},
		{SourceURL: "https://img.test/c", AltText: "Gamma?"},
	})
	require.NoError(t, err)
	require.NotEmpty(t, archive.ID)

	files := readZip(t, archive.Data)
	assert.Equal(t, map[string][]byte{
		"Alpha one.png": []byte("A"),
		"Beta.gif":      []byte("B"),
		"Gamma.jpg":     []byte("C"),
	}, files)
	assert.Equal(t, []string{"Alpha one.png", "Beta.gif", "Gamma.jpg"}, archive.Entries)
	assert.Zero(t, archive.Duplicates)
	assert.Zero(t, archive.Failures)
}

func TestArchiveBuilder_DropsDuplicateFilenames(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakeResponse{
		"https://img.test/1": {contentType: "image/png", body: []byte("one")},
		"https://img.test/2": {contentType: "image/png", body: []byte("two")},
		"https://img.test/3": {contentType: "image/png", body: []byte("three")},
		"https://img.test/4": {contentType: "image/webp", body: []byte("four")},
	})
	builder := NewArchiveBuilder(fetcher, 10, 100, zaptest.NewLogger(t))

	archive, err := builder.Build(context.Background(), entity.DownloadSelection{
		{SourceURL: "https://img.test/1", AltText: "Same"},
		{SourceURL: "https://img.test/2", AltText: "Other"},
		{SourceURL: "https://img.test/3", AltText: "Same"},
		{SourceURL: "https://img.test/4", AltText: "Same"},
	})
	require.NoError(t, err)

	files := readZip(t, archive.Data)
	require.Len(t, files, 3)
	assert.Contains(t, files, "Other.png")
	assert.Contains(t, files, "Same.webp")
	// Completion order picks the survivor; only its uniqueness is fixed.
	same := string(files["Same.png"])
	assert.Contains(t, []string{"one", "three"}, same)
	assert.Equal(t, 1, archive.Duplicates)
}

func TestArchiveBuilder_OmitsFailedFetches(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakeResponse{
		"https://img.test/ok":     {contentType: "image/png", body: []byte("ok")},
		"https://img.test/broken": {status: http.StatusInternalServerError},
	})
	builder := NewArchiveBuilder(fetcher, 2, 100, zaptest.NewLogger(t))

	archive, err := builder.Build(context.Background(), entity.DownloadSelection{
		{SourceURL: "https://img.test/ok", AltText: "Good"},
		{SourceURL: "https://img.test/broken", AltText: "Bad"},
		{SourceURL: "https://img.test/missing", AltText: "Gone"},
		{SourceURL: "", AltText: "Nothing"},
	})
	require.NoError(t, err)

	files := readZip(t, archive.Data)
	assert.Equal(t, map[string][]byte{"Good.png": []byte("ok")}, files)
	assert.Equal(t, 3, archive.Failures)
	assert.Equal(t, 3, fetcher.callCount())
}

func TestArchiveBuilder_AllFailuresStillProducesArchive(t *testing.T) {
	builder := NewArchiveBuilder(newFakeFetcher(nil), 2, 100, zaptest.NewLogger(t))

	archive, err := builder.Build(context.Background(), entity.DownloadSelection{
		{SourceURL: "https://img.test/x", AltText: "X"},
	})
	require.NoError(t, err)
	assert.Empty(t, readZip(t, archive.Data))
	assert.Empty(t, archive.Entries)
}

func TestArchiveBuilder_EmptySelection(t *testing.T) {
	fetcher := newFakeFetcher(nil)
	builder := NewArchiveBuilder(fetcher, 2, 100, zaptest.NewLogger(t))

	for _, sel := range []entity.DownloadSelection{nil, {}} {
		archive, err := builder.Build(context.Background(), sel)
		assert.Nil(t, archive)

		var validationErr *entity.ValidationError
		require.True(t, errors.As(err, &validationErr))
		assert.Equal(t, "images", validationErr.Field)
	}
	assert.Zero(t, fetcher.callCount())
}

func TestArchiveBuilder_BoundsConcurrency(t *testing.T) {
	responses := make(map[string]fakeResponse)
	var selection entity.DownloadSelection
	for i := range 12 {
		u := fmt.Sprintf("https://img.test/%d", i)
		responses[u] = fakeResponse{contentType: "image/png", body: []byte{byte(i)}, delay: 20 * time.Millisecond}
		selection = append(selection, entity.ImageRef{SourceURL: u, AltText: fmt.Sprintf("img %d", i)})
	}
	fetcher := newFakeFetcher(responses)
	builder := NewArchiveBuilder(fetcher, 3, 100, zaptest.NewLogger(t))

	archive, err := builder.Build(context.Background(), selection)
	require.NoError(t, err)

	assert.LessOrEqual(t, fetcher.maxInFlight.Load(), int32(3))
	assert.Len(t, archive.Entries, 12)
}

func TestArchiveBuilder_FetchesWithoutReferer(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakeResponse{
		"https://img.test/a": {contentType: "image/png", body: []byte("A")},
	})
	builder := NewArchiveBuilder(fetcher, 1, 100, zaptest.NewLogger(t))

	_, err := builder.Build(context.Background(), entity.DownloadSelection{{SourceURL: "https://img.test/a", AltText: "A"}})
	require.NoError(t, err)
	assert.Empty(t, fetcher.headerFor("https://img.test/a").Get("Referer"))
}

func TestFilenameSet_Claim(t *testing.T) {
	s := newFilenameSet()
	assert.True(t, s.claim("a.png"))
	assert.False(t, s.claim("a.png"))
	assert.True(t, s.claim("b.png"))
}

func TestArchiveBuilder_DeadlineMidBuildKeepsFinishedEntries(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakeResponse{
		"https://img.test/fast": {contentType: "image/png", body: []byte("fast")},
		"https://img.test/slow": {contentType: "image/png", body: []byte("slow"), delay: 5 * time.Second},
	})
	builder := NewArchiveBuilder(fetcher, 2, 100, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	archive, err := builder.Build(ctx, entity.DownloadSelection{
		{SourceURL: "https://img.test/fast", AltText: "Fast"},
		{SourceURL: "https://img.test/slow", AltText: "Slow"},
	})
	require.NoError(t, err)
	require.NotNil(t, archive)

	assert.Equal(t, map[string][]byte{"Fast.png": []byte("fast")}, readZip(t, archive.Data))
	assert.Equal(t, []string{"Fast.png"}, archive.Entries)
	assert.Equal(t, 1, archive.Failures)
}

func TestArchiveBuilder_FetchCompletingAfterDeadlineIsKept(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakeResponse{
		"https://img.test/a": {contentType: "image/png", body: []byte("A")},
		"https://img.test/b": {contentType: "image/gif", body: []byte("B"), delay: 80 * time.Millisecond, ignoreCancel: true},
	})
	builder := NewArchiveBuilder(fetcher, 2, 100, zaptest.NewLogger(t))

	ctx, cancel := context.WithTimeout(context.Background(), 40*time.Millisecond)
	defer cancel()

	archive, err := builder.Build(ctx, entity.DownloadSelection{
		{SourceURL: "https://img.test/a", AltText: "A"},
		{SourceURL: "https://img.test/b", AltText: "B"},
	})
	require.NoError(t, err)
	require.NotNil(t, archive)
	assert.Equal(t, map[string][]byte{"A.png": []byte("A"), "B.gif": []byte("B")}, readZip(t, archive.Data))
	assert.Zero(t, archive.Failures)
}

func TestArchiveBuilder_CancelledBeforeStartReturnsEmptyZip(t *testing.T) {
	fetcher := newFakeFetcher(map[string]fakeResponse{
		"https://img.test/a": {contentType: "image/png", body: []byte("A"), delay: time.Second},
	})
	builder := NewArchiveBuilder(fetcher, 1, 100, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	archive, err := builder.Build(ctx, entity.DownloadSelection{{SourceURL: "https://img.test/a", AltText: "A"}})
	require.NoError(t, err)
	assert.Empty(t, readZip(t, archive.Data))
	assert.Equal(t, 1, archive.Failures)
}
