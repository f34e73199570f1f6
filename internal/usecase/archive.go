package usecase

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/pkg/metrics"
)

// ArchiveBuilder defines the interface for bundling selected images into a zip archive.
type ArchiveBuilder interface {
	Build(ctx context.Context, selection entity.DownloadSelection) (*entity.Archive, error)
}

type archiveBuilderUseCase struct {
	fetcher      repository.Fetcher
	workers      int
	maxNameRunes int
	logger       *zap.Logger
}

// NewArchiveBuilder creates a new ArchiveBuilder use case that fetches at most
// workers images at a time.
func NewArchiveBuilder(fetcher repository.Fetcher, workers, maxNameRunes int, logger *zap.Logger) ArchiveBuilder {
	if workers < 1 {
		workers = 1
	}
	return &archiveBuilderUseCase{
		fetcher:      fetcher,
		workers:      workers,
		maxNameRunes: maxNameRunes,
		logger:       logger,
	}
}

// filenameSet admits each archive filename once.
type filenameSet struct {
	mu    sync.Mutex
	names map[string]struct{}
}

func newFilenameSet() *filenameSet {
	return &filenameSet{names: make(map[string]struct{})}
}

// claim reports whether name was free and reserves it if so.
func (s *filenameSet) claim(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, taken := s.names[name]; taken {
		return false
	}
	s.names[name] = struct{}{}
	return true
}

type entryOutcome int

const (
	outcomeFailed entryOutcome = iota
	outcomeDuplicate
	outcomeAdded
)

func (uc *archiveBuilderUseCase) Build(ctx context.Context, selection entity.DownloadSelection) (*entity.Archive, error) {
	if len(selection) == 0 {
		return nil, &entity.ValidationError{Field: "images", Reason: "no images selected"}
	}

	id := uuid.NewString()
	logger := uc.logger.With(zap.String("archive_id", id))
	start := time.Now()
	defer func() {
		metrics.ArchiveBuildDuration.Observe(time.Since(start).Seconds())
	}()

	names := newFilenameSet()
	staged := make([]*entity.ArchiveEntry, len(selection))
	outcomes := make([]entryOutcome, len(selection))

	var g errgroup.Group
	g.SetLimit(uc.workers)
	for i, ref := range selection {
		g.Go(func() error {
			staged[i], outcomes[i] = uc.fetchEntry(ctx, ref, names, logger)
			return nil
		})
	}
	// Entry tasks never return an error; a failed image is only left out.
	_ = g.Wait()

	// Once validation passes the caller always gets a zip. Fetches cut short
	// by the request context ending are counted as failures like any other.
	if err := ctx.Err(); err != nil {
		logger.Warn("request context ended during archive build, zipping staged entries", zap.Error(err))
	}

	archive := &entity.Archive{ID: id, Entries: []string{}}
	for _, outcome := range outcomes {
		switch outcome {
		case outcomeFailed:
			archive.Failures++
			metrics.ArchiveEntriesTotal.WithLabelValues("failed").Inc()
		case outcomeDuplicate:
			archive.Duplicates++
			metrics.ArchiveEntriesTotal.WithLabelValues("duplicate").Inc()
		case outcomeAdded:
			metrics.ArchiveEntriesTotal.WithLabelValues("added").Inc()
		}
	}

	data, err := writeZip(staged)
	if err != nil {
		return nil, fmt.Errorf("failed to write archive %s: %w", id, err)
	}
	archive.Data = data
	for _, entry := range staged {
		if entry != nil {
			archive.Entries = append(archive.Entries, entry.Filename)
		}
	}

	logger.Info("archive built",
		zap.Int("selected", len(selection)),
		zap.Int("entries", len(archive.Entries)),
		zap.Int("duplicates", archive.Duplicates),
		zap.Int("failures", archive.Failures),
		zap.Int("bytes", len(archive.Data)),
	)
	return archive, nil
}

func (uc *archiveBuilderUseCase) fetchEntry(ctx context.Context, ref entity.ImageRef, names *filenameSet, logger *zap.Logger) (*entity.ArchiveEntry, entryOutcome) {
	if ref.SourceURL == "" {
		logger.Warn("skipping selected image without a source", zap.String("alt", ref.AltText))
		return nil, outcomeFailed
	}

	res, err := uc.fetcher.Fetch(ctx, ref.SourceURL, nil)
	if err != nil {
		logger.Warn("failed to download selected image", zap.String("url", ref.SourceURL), zap.Error(err))
		return nil, outcomeFailed
	}

	name := DeriveFilename(ref.AltText, res.ContentType, ref.SourceURL, uc.maxNameRunes)
	if !names.claim(name) {
		logger.Debug("dropping duplicate archive filename", zap.String("filename", name), zap.String("url", ref.SourceURL))
		return nil, outcomeDuplicate
	}
	return &entity.ArchiveEntry{Filename: name, Body: res.Body}, outcomeAdded
}

func writeZip(entries []*entity.ArchiveEntry) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, entry := range entries {
		if entry == nil {
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{
			Name:     entry.Filename,
			Method:   zip.Deflate,
			Modified: time.Now(),
		})
		if err != nil {
			return nil, err
		}
		if _, err := w.Write(entry.Body); err != nil {
			return nil, err
		}
	}
	if err := zw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
