package handler

import (
	"context"
	"encoding/json"
	"errors"
	"mime"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/user/image-scraper-service/internal/delivery/http/request"
	"github.com/user/image-scraper-service/internal/delivery/http/response"
	"github.com/user/image-scraper-service/internal/entity"
	"github.com/user/image-scraper-service/internal/repository"
	"github.com/user/image-scraper-service/internal/usecase"
	"github.com/user/image-scraper-service/pkg/utils"
)

const (
	maxRequestBodyBytes = 1 << 20
	archiveFilename     = "images.zip"
	defaultStatusLimit  = 10
	maxStatusLimit      = 100
	healthCheckTimeout  = 2 * time.Second
)

// HealthCheck probes one optional dependency.
type HealthCheck func(ctx context.Context) error

type Handler struct {
	scraper  usecase.Scraper
	relay    usecase.ImageRelay
	archives usecase.ArchiveBuilder
	events   repository.ScrapeEventRepository
	checks   map[string]HealthCheck
	logger   *zap.Logger
}

// NewHandler wires the use cases into HTTP handlers. events and checks may be
// nil when the optional stores are not configured.
func NewHandler(
	scraper usecase.Scraper,
	relay usecase.ImageRelay,
	archives usecase.ArchiveBuilder,
	events repository.ScrapeEventRepository,
	checks map[string]HealthCheck,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		scraper:  scraper,
		relay:    relay,
		archives: archives,
		events:   events,
		checks:   checks,
		logger:   logger,
	}
}

func (h *Handler) HandleRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Backend is running."))
}

func (h *Handler) HandleScrape(w http.ResponseWriter, r *http.Request) {
	var req request.ScrapeRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	images, err := h.scraper.Scrape(r.Context(), entity.ScrapeRequest{
		PageURL: req.URL,
		Mode:    entity.ScrapeMode(req.Mode),
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	resp := make([]response.ImageResponse, 0, len(images))
	for _, img := range images {
		resp = append(resp, response.ImageResponse{Src: img.SourceURL, Alt: img.AltText})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleProxy(w http.ResponseWriter, r *http.Request) {
	img, err := h.relay.Relay(r.Context(), r.URL.Query().Get("url"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeBinary(w, img.ContentType, "", img.Body)
}

func (h *Handler) HandleDownloadImage(w http.ResponseWriter, r *http.Request) {
	var req request.DownloadImageRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	img, err := h.relay.Download(r.Context(), req.URL, req.Alt)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.writeBinary(w, img.ContentType, img.Filename, img.Body)
}

func (h *Handler) HandleDownloadSelected(w http.ResponseWriter, r *http.Request) {
	var req request.DownloadSelectedRequest
	if !h.decodeJSON(w, r, &req) {
		return
	}

	archive, err := h.archives.Build(r.Context(), req.Selection())
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	w.Header().Set("X-Archive-Id", archive.ID)
	h.writeBinary(w, "application/zip", archiveFilename, archive.Data)
}

func (h *Handler) HandleGetScrapeStatus(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		h.writeJSONError(w, "Scrape history is not enabled", "unavailable", http.StatusServiceUnavailable)
		return
	}

	rawURL := r.URL.Query().Get("url")
	if rawURL == "" {
		h.writeJSONError(w, "URL query parameter is required", "validation", http.StatusBadRequest)
		return
	}
	if _, err := utils.ParseHTTPURL(rawURL); err != nil {
		h.writeJSONError(w, "Invalid URL format in query parameter", "validation", http.StatusBadRequest)
		return
	}

	limit := defaultStatusLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			h.writeJSONError(w, "limit must be a positive integer", "validation", http.StatusBadRequest)
			return
		}
		limit = min(n, maxStatusLimit)
	}

	events, err := h.events.Recent(r.Context(), rawURL, limit)
	if err != nil {
		h.logger.Error("failed to load scrape events", zap.String("url", rawURL), zap.Error(err))
		h.writeJSONError(w, "Internal server error", "internal", http.StatusInternalServerError)
		return
	}
	if len(events) == 0 {
		h.writeJSONError(w, "No scrapes recorded for the given URL", "not_found", http.StatusNotFound)
		return
	}

	resp := response.ScrapeStatusResponse{URL: rawURL, Events: make([]response.ScrapeEventResponse, 0, len(events))}
	for _, ev := range events {
		resp.Events = append(resp.Events, response.ScrapeEventResponse{
			Mode:       string(ev.Mode),
			Status:     ev.Status,
			ImageCount: ev.ImageCount,
			Error:      ev.Error,
			DurationMS: ev.DurationMS,
			CreatedAt:  ev.CreatedAt,
		})
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()

	resp := response.HealthResponse{Status: "ok"}
	if len(h.checks) > 0 {
		resp.Dependencies = make(map[string]string, len(h.checks))
	}
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			h.logger.Error("health check failed", zap.String("dependency", name), zap.Error(err))
			resp.Dependencies[name] = "unhealthy"
			resp.Status = "degraded"
			continue
		}
		resp.Dependencies[name] = "healthy"
	}

	// Optional stores only degrade the service, so the endpoint stays 200.
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		h.writeJSONError(w, "Invalid request body", "validation", http.StatusBadRequest)
		return false
	}
	return true
}

// writeError maps domain errors onto HTTP statuses.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		validationErr *entity.ValidationError
		fetchErr      *entity.FetchError
		renderErr     *entity.RenderError
	)
	switch {
	case errors.As(err, &validationErr):
		h.writeJSONError(w, validationErr.Error(), "validation", http.StatusBadRequest)
	case errors.As(err, &fetchErr):
		h.writeJSONError(w, fetchErr.Error(), "fetch", http.StatusBadGateway)
	case errors.As(err, &renderErr):
		h.writeJSONError(w, renderErr.Error(), "render", http.StatusInternalServerError)
	default:
		h.logger.Error("request failed", zap.String("path", r.URL.Path), zap.Error(err))
		h.writeJSONError(w, err.Error(), "internal", http.StatusInternalServerError)
	}
}

func (h *Handler) writeBinary(w http.ResponseWriter, contentType, filename string, body []byte) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	if filename != "" {
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filename}))
	}
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		h.logger.Warn("failed to write response body", zap.Error(err))
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write JSON response", zap.Error(err))
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, message, kind string, status int) {
	h.writeJSON(w, status, response.ErrorResponse{Error: message, Type: kind})
}
