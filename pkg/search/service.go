// Package search runs the full query pipeline: normalize the uploaded
// crop, embed it, query the vector index and collapse per-image hits into
// per-listing results.
package search

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"image/jpeg"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tyarity/boothlens/pkg/clip"
	"github.com/tyarity/boothlens/pkg/render"
	"github.com/tyarity/boothlens/pkg/types"
	"github.com/tyarity/boothlens/pkg/vectorstore"
)

// ErrInFlight rejects a submission while another search is running. At
// most one search is in progress at a time; callers surface the localized
// busy message instead of queueing.
var ErrInFlight = errors.New("search: request already in flight")

// DefaultLimit is the number of unique listings returned per search.
const DefaultLimit = 12

// fetchMultiplier oversamples the index so deduplication by listing URL
// still fills the limit.
const fetchMultiplier = 3

// cacheTTL bounds how long a cached result set stays valid.
const cacheTTL = 15 * time.Minute

// ExclusionSource supplies the shop identifiers that must never appear
// in results.
type ExclusionSource interface {
	Excluded() []string
}

type noExclusions struct{}

func (noExclusions) Excluded() []string { return nil }

// Options tune a Service beyond its required collaborators.
type Options struct {
	// Limit is the maximum number of unique listings per response.
	Limit int
	// Exclusions feeds shop opt-outs into every query. Nil means none.
	Exclusions ExclusionSource
	// Cache enables result caching keyed by the crop bytes. Nil
	// disables caching.
	Cache *redis.Client
	// Quality is the JPEG quality used when re-encoding the upload.
	Quality int
}

// Service is the search pipeline. Safe for concurrent use; concurrent
// searches beyond the first are rejected with ErrInFlight.
type Service struct {
	embedder   clip.Embedder
	store      vectorstore.Store
	exclusions ExclusionSource
	cache      *redis.Client
	limit      int
	quality    int
	inFlight   atomic.Bool
}

// New wires a Service from its collaborators.
func New(embedder clip.Embedder, store vectorstore.Store, opts Options) *Service {
	if opts.Limit <= 0 {
		opts.Limit = DefaultLimit
	}
	if opts.Exclusions == nil {
		opts.Exclusions = noExclusions{}
	}
	if opts.Quality <= 0 || opts.Quality > 100 {
		opts.Quality = 90
	}
	return &Service{
		embedder:   embedder,
		store:      store,
		exclusions: opts.Exclusions,
		cache:      opts.Cache,
		limit:      opts.Limit,
		quality:    opts.Quality,
	}
}

// Search runs the pipeline for one uploaded image blob and returns ranked
// unique listings. Filters restrict candidates by payload fields; zero
// values mean unfiltered.
func (s *Service) Search(ctx context.Context, imageData []byte, filters Filters) ([]types.SearchResultItem, error) {
	if !s.inFlight.CompareAndSwap(false, true) {
		return nil, ErrInFlight
	}
	defer s.inFlight.Store(false)

	if cached, ok := s.cached(ctx, imageData, filters); ok {
		return cached, nil
	}

	normalized, err := s.normalizeUpload(imageData)
	if err != nil {
		return nil, fmt.Errorf("search: decode upload: %w", err)
	}

	vector, err := s.embedder.Embed(ctx, normalized)
	if err != nil {
		return nil, fmt.Errorf("search: embed: %w", err)
	}

	hits, err := s.store.Search(ctx, vectorstore.Query{
		Vector:        vector,
		Limit:         s.limit * fetchMultiplier,
		ExcludedShops: s.exclusions.Excluded(),
		Category:      filters.Category,
		Avatars:       filters.Avatars,
		Colors:        filters.Colors,
	})
	if err != nil {
		return nil, fmt.Errorf("search: index query: %w", err)
	}

	items := dedupeByListing(hits, s.limit)
	s.storeCache(ctx, imageData, filters, items)
	return items, nil
}

// Filters narrow a query by indexed payload fields.
type Filters struct {
	Category string
	Avatars  []string
	Colors   []string
}

// normalizeUpload decodes the blob (first frame only for animated
// inputs), flattens transparency onto white and re-encodes as JPEG, the
// shape the embedding service expects.
func (s *Service) normalizeUpload(data []byte) ([]byte, error) {
	img, err := render.Decode(data)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, render.Flatten(img), &jpeg.Options{Quality: s.quality}); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// dedupeByListing keeps the best-scoring hit per listing URL. Hits arrive
// ordered by score, so first wins.
func dedupeByListing(hits []vectorstore.Hit, limit int) []types.SearchResultItem {
	items := make([]types.SearchResultItem, 0, limit)
	seen := make(map[string]bool, len(hits))
	for _, hit := range hits {
		payload := hit.Payload
		if seen[payload.BoothURL] {
			continue
		}
		seen[payload.BoothURL] = true
		items = append(items, types.SearchResultItem{
			ID:      hit.ID,
			Score:   hit.Score,
			Payload: &payload,
		})
		if len(items) >= limit {
			break
		}
	}
	return items
}

func (s *Service) cacheKey(imageData []byte, filters Filters) string {
	h := sha256.New()
	h.Write(imageData)
	if filters.Category != "" || len(filters.Avatars) > 0 || len(filters.Colors) > 0 {
		enc, _ := json.Marshal(filters)
		h.Write(enc)
	}
	return "boothlens:search:" + hex.EncodeToString(h.Sum(nil))
}

func (s *Service) cached(ctx context.Context, imageData []byte, filters Filters) ([]types.SearchResultItem, bool) {
	if s.cache == nil {
		return nil, false
	}
	raw, err := s.cache.Get(ctx, s.cacheKey(imageData, filters)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			slog.Warn("Result cache read failed", "error", err)
		}
		return nil, false
	}
	var items []types.SearchResultItem
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, false
	}
	return items, true
}

func (s *Service) storeCache(ctx context.Context, imageData []byte, filters Filters, items []types.SearchResultItem) {
	if s.cache == nil {
		return
	}
	enc, err := json.Marshal(items)
	if err != nil {
		return
	}
	if err := s.cache.Set(ctx, s.cacheKey(imageData, filters), enc, cacheTTL).Err(); err != nil {
		slog.Warn("Result cache write failed", "error", err)
	}
}
