// Package server exposes the search pipeline over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/tyarity/boothlens/internal/index"
	"github.com/tyarity/boothlens/internal/metrics"
	"github.com/tyarity/boothlens/pkg/i18n"
	"github.com/tyarity/boothlens/pkg/render"
	"github.com/tyarity/boothlens/pkg/results"
	"github.com/tyarity/boothlens/pkg/search"
	"github.com/tyarity/boothlens/pkg/types"
)

// Searcher is the slice of the search service the handlers need.
type Searcher interface {
	Search(ctx context.Context, imageData []byte, filters search.Filters) ([]types.SearchResultItem, error)
}

// Config holds handler settings.
type Config struct {
	ImagesDir      string
	UploadMaxBytes int64
	RequestTimeout time.Duration
}

// Server wires handlers to their collaborators. All dependencies are
// injected; nothing is looked up ambiently.
type Server struct {
	searcher Searcher
	seeder   *index.Seeder
	table    *i18n.Table
	renderer *results.Renderer
	cfg      Config
}

// New builds a Server. seeder may be nil when no background seeding runs.
func New(searcher Searcher, seeder *index.Seeder, table *i18n.Table, cfg Config) *Server {
	if cfg.UploadMaxBytes <= 0 {
		cfg.UploadMaxBytes = 10 << 20
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &Server{
		searcher: searcher,
		seeder:   seeder,
		table:    table,
		renderer: results.NewRenderer(table),
		cfg:      cfg,
	}
}

// Routes returns the HTTP handler tree.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/search", s.handleSearch)
	mux.HandleFunc("GET /search", s.handleSearchPage)
	mux.HandleFunc("POST /search", s.handleSearchPage)
	mux.HandleFunc("GET /{$}", s.handleStatus)
	if s.cfg.ImagesDir != "" {
		mux.Handle("GET /api/images/", http.StripPrefix("/api/images/", http.FileServer(http.Dir(s.cfg.ImagesDir))))
	}
	return mux
}

type statusResponse struct {
	Status   string       `json:"status"`
	Indexing index.Status `json:"indexing"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	resp := statusResponse{Status: "Search API running"}
	if s.seeder != nil {
		resp.Indexing = s.seeder.Status()
	} else {
		resp.Indexing.IsComplete = true
	}
	writeJSON(w, http.StatusOK, resp)
}

type errorResponse struct {
	Error string `json:"error"`
}

// handleSearch accepts a multipart upload in field "file" with optional
// percentage crop fields x/y/width/height and returns ranked matches.
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	lang := s.language(r)
	start := time.Now()

	if s.seeder != nil && !s.seeder.Started() {
		writeJSON(w, http.StatusServiceUnavailable,
			errorResponse{Error: "Search engine is still initializing. Please wait a few moments."})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	blob, err := s.uploadedImage(r)
	if err != nil {
		slog.Warn("Rejected search upload", "error", err)
		metrics.SearchDuration.WithLabelValues("bad_request").Observe(time.Since(start).Seconds())
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: s.table.T(lang, "search.error")})
		return
	}

	items, err := s.searcher.Search(ctx, blob, filtersFrom(r))
	switch {
	case errors.Is(err, search.ErrInFlight):
		metrics.SearchRejectedBusy.Inc()
		metrics.SearchDuration.WithLabelValues("busy").Observe(time.Since(start).Seconds())
		writeJSON(w, http.StatusTooManyRequests, errorResponse{Error: s.table.T(lang, "search.busy")})
		return
	case err != nil:
		// Every internal failure collapses to the one generic message.
		slog.Error("Search failed", "error", err)
		metrics.SearchDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: s.table.T(lang, "search.error")})
		return
	}

	metrics.SearchDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	writeJSON(w, http.StatusOK, types.SearchResponse{Results: items})
}

// handleSearchPage is the server-rendered flow: GET shows the empty
// state, POST runs a search and renders result cards.
func (s *Server) handleSearchPage(w http.ResponseWriter, r *http.Request) {
	lang := s.language(r)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	if r.Method == http.MethodGet {
		if err := s.renderer.Render(w, lang, nil); err != nil {
			slog.Error("Render failed", "error", err)
		}
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.RequestTimeout)
	defer cancel()

	blob, err := s.uploadedImage(r)
	if err == nil {
		var items []types.SearchResultItem
		items, err = s.searcher.Search(ctx, blob, filtersFrom(r))
		if err == nil {
			if err := s.renderer.Render(w, lang, items); err != nil {
				slog.Error("Render failed", "error", err)
			}
			return
		}
	}
	slog.Error("Search failed", "error", err)
	msgID := "search.error"
	if errors.Is(err, search.ErrInFlight) {
		msgID = "search.busy"
	}
	_, _ = io.WriteString(w, `<p class="error">`+s.table.T(lang, msgID)+`</p>`)
}

// uploadedImage extracts the image blob from the multipart body and
// applies the optional percentage crop server-side.
func (s *Server) uploadedImage(r *http.Request) ([]byte, error) {
	r.Body = http.MaxBytesReader(nil, r.Body, s.cfg.UploadMaxBytes)
	if err := r.ParseMultipartForm(s.cfg.UploadMaxBytes); err != nil {
		return nil, err
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, err
	}
	defer file.Close()
	blob, err := io.ReadAll(file)
	if err != nil {
		return nil, err
	}

	rect, hasCrop := cropFrom(r)
	if !hasCrop {
		return blob, nil
	}

	img, err := render.Decode(blob)
	if err != nil {
		return nil, err
	}
	bounds := img.Bounds()
	pixels := rect.Clamp().ToPixels(bounds.Dx(), bounds.Dy())
	return render.New().RenderCropImage(img, pixels)
}

// cropFrom reads the percentage crop rectangle from form fields. All
// four fields must be present for a crop to apply.
func cropFrom(r *http.Request) (types.Rect, bool) {
	var rect types.Rect
	fields := []struct {
		name string
		dst  *float64
	}{
		{"x", &rect.X}, {"y", &rect.Y}, {"width", &rect.W}, {"height", &rect.H},
	}
	for _, f := range fields {
		raw := r.FormValue(f.name)
		if raw == "" {
			return types.Rect{}, false
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return types.Rect{}, false
		}
		*f.dst = v
	}
	return rect, true
}

func filtersFrom(r *http.Request) search.Filters {
	return search.Filters{
		Category: r.FormValue("category"),
		Avatars:  r.Form["avatar"],
		Colors:   r.Form["color"],
	}
}

// language picks the response language: query parameter first, then
// cookie, falling back to English. Tags outside the closed set resolve
// as English.
func (s *Server) language(r *http.Request) string {
	if lang := r.URL.Query().Get("lang"); lang != "" && s.table.Supported(lang) {
		return lang
	}
	if c, err := r.Cookie("lang"); err == nil && s.table.Supported(c.Value) {
		return c.Value
	}
	return i18n.DefaultTag
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}
