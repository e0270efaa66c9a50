// Package index seeds the vector store from scraped listing metadata. It
// is run in the background at server startup and as a one-shot job by
// cmd/indexer.
package index

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tyarity/boothlens/internal/metrics"
	"github.com/tyarity/boothlens/pkg/clip"
	"github.com/tyarity/boothlens/pkg/types"
	"github.com/tyarity/boothlens/pkg/vectorstore"
)

// Config tunes one seeding run.
type Config struct {
	MetadataPath string
	ImagesDir    string
	Workers      int
	BatchSize    int
	// SkipLimit stops the run after this many consecutive listings whose
	// images were all indexed already. Metadata is processed newest
	// first, so a long run of already-indexed items means the rest of
	// the file is stale.
	SkipLimit    int
	FetchTimeout time.Duration
}

// Status is a snapshot of seeding progress, served on the status page.
type Status struct {
	Total      int    `json:"total"`
	Current    int    `json:"current"`
	IsComplete bool   `json:"is_complete"`
	LastItem   string `json:"last_item,omitempty"`
	Indexed    int    `json:"indexed"`
}

// Seeder embeds listing images and upserts them into the store.
type Seeder struct {
	embedder   clip.Embedder
	store      vectorstore.Store
	cfg        Config
	httpClient *http.Client

	mu     sync.Mutex
	status Status
}

// New creates a Seeder.
func New(embedder clip.Embedder, store vectorstore.Store, cfg Config) *Seeder {
	if cfg.Workers <= 0 {
		cfg.Workers = 8
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 50
	}
	if cfg.SkipLimit <= 0 {
		cfg.SkipLimit = 200
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	return &Seeder{
		embedder:   embedder,
		store:      store,
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.FetchTimeout},
	}
}

// Status returns the current progress snapshot.
func (s *Seeder) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Started reports whether the run has processed or completed anything.
// The search endpoint returns 503 until this is true with either
// progress or completion.
func (s *Seeder) Started() bool {
	st := s.Status()
	return st.IsComplete || st.Current > 0
}

// Run executes one seeding pass. Missing metadata completes immediately;
// the store simply stays as it was.
func (s *Seeder) Run(ctx context.Context) error {
	records, err := readMetadata(s.cfg.MetadataPath)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Warn("No seed metadata found, skipping seeding", "path", s.cfg.MetadataPath)
			s.setComplete()
			return nil
		}
		s.setComplete()
		return fmt.Errorf("index: read metadata: %w", err)
	}

	s.mu.Lock()
	s.status = Status{Total: len(records)}
	s.mu.Unlock()

	slog.Info("Seeding vector index", "items", len(records))

	var batch []vectorstore.Point
	consecutiveSkips := 0
	indexed := 0

	// Newest entries sit at the end of the file; process them first.
	for idx := len(records) - 1; idx >= 0; idx-- {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		rec := records[idx]
		s.advance(len(records)-idx, rec.Title, indexed)

		if len(rec.Images) == 0 || rec.URL == "" {
			continue
		}

		points, allIndexed, err := s.itemPoints(ctx, rec)
		if err != nil {
			slog.Error("Item processing error", "url", rec.URL, "error", err)
			continue
		}
		if allIndexed {
			consecutiveSkips++
			if consecutiveSkips >= s.cfg.SkipLimit {
				slog.Info("Reached consecutive-skip limit, stopping early", "limit", s.cfg.SkipLimit)
				break
			}
			continue
		}
		consecutiveSkips = 0
		batch = append(batch, points...)
		indexed += len(points)

		if len(batch) >= s.cfg.BatchSize {
			if err := s.flush(ctx, batch); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}

	if len(batch) > 0 {
		if err := s.flush(ctx, batch); err != nil {
			return err
		}
	}

	s.setComplete()
	if n, err := s.store.Count(ctx); err == nil {
		metrics.IndexedPoints.Set(float64(n))
	}
	slog.Info("Seeding complete", "new_images", indexed)
	return nil
}

// itemPoints builds points for every not-yet-indexed image of a listing.
// Image fetch and embedding run concurrently, bounded by cfg.Workers.
func (s *Seeder) itemPoints(ctx context.Context, rec types.ListingRecord) ([]vectorstore.Point, bool, error) {
	ids := make([]string, len(rec.Images))
	for i, img := range rec.Images {
		ids[i] = vectorstore.PointID(img)
	}
	existing, err := s.store.HasPoints(ctx, ids)
	if err != nil {
		return nil, false, err
	}

	var pending []int
	for i := range rec.Images {
		if !existing[ids[i]] {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return nil, true, nil
	}

	payload := payloadFor(rec)

	var mu sync.Mutex
	var points []vectorstore.Point

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Workers)
	for _, i := range pending {
		imgPath := rec.Images[i]
		pointID := ids[i]
		g.Go(func() error {
			data, thumbnailURL, err := s.loadImage(gCtx, imgPath)
			if err != nil {
				slog.Error("Failed to load listing image", "image", imgPath, "error", err)
				return nil // skip, keep seeding
			}
			embedStart := time.Now()
			vector, err := s.embedder.Embed(gCtx, data)
			metrics.EmbedDuration.Observe(time.Since(embedStart).Seconds())
			if err != nil {
				slog.Error("Failed to embed listing image", "image", imgPath, "error", err)
				return nil
			}
			p := payload
			p.ThumbnailURL = thumbnailURL
			mu.Lock()
			points = append(points, vectorstore.Point{ID: pointID, Vector: vector, Payload: p})
			mu.Unlock()
			metrics.SeederImagesIndexed.Inc()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, false, err
	}
	return points, false, nil
}

// loadImage fetches a remote image or reads a local one relative to the
// images directory. The second return value is the thumbnail URL to store
// in the payload.
func (s *Seeder) loadImage(ctx context.Context, imgPath string) ([]byte, string, error) {
	if strings.HasPrefix(imgPath, "http://") || strings.HasPrefix(imgPath, "https://") {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, imgPath, nil)
		if err != nil {
			return nil, "", err
		}
		resp, err := s.httpClient.Do(req)
		if err != nil {
			metrics.SeederImageFetches.WithLabelValues("error").Inc()
			return nil, "", err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			metrics.SeederImageFetches.WithLabelValues(strconv.Itoa(resp.StatusCode)).Inc()
			return nil, "", fmt.Errorf("fetch %s: status %d", imgPath, resp.StatusCode)
		}
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, "", err
		}
		metrics.SeederImageFetches.WithLabelValues("ok").Inc()
		return data, imgPath, nil
	}

	// Metadata paths sometimes carry scraper subdirectories, but the
	// files sit flat in the images directory.
	local := filepath.Join(s.cfg.ImagesDir, imgPath)
	if _, err := os.Stat(local); err != nil {
		local = filepath.Join(s.cfg.ImagesDir, filepath.Base(imgPath))
	}
	data, err := os.ReadFile(local)
	if err != nil {
		return nil, "", err
	}
	return data, "/api/images/" + filepath.Base(local), nil
}

func (s *Seeder) flush(ctx context.Context, batch []vectorstore.Point) error {
	if err := s.store.Upsert(ctx, batch); err != nil {
		return fmt.Errorf("index: upsert batch: %w", err)
	}
	slog.Info("Batch upserted", "points", len(batch))
	return nil
}

func (s *Seeder) advance(current int, lastItem string, indexed int) {
	s.mu.Lock()
	s.status.Current = current
	s.status.LastItem = lastItem
	s.status.Indexed = indexed
	s.mu.Unlock()
}

func (s *Seeder) setComplete() {
	s.mu.Lock()
	s.status.IsComplete = true
	s.mu.Unlock()
}

// readMetadata parses the JSONL file, deduplicating by listing URL with
// last entry winning.
func readMetadata(path string) ([]types.ListingRecord, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	byURL := make(map[string]int)
	var records []types.ListingRecord

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 1<<20), 1<<20)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var rec types.ListingRecord
		if err := json.Unmarshal([]byte(line), &rec); err != nil {
			slog.Warn("Skipping malformed metadata line", "error", err)
			continue
		}
		if rec.URL == "" {
			continue
		}
		if i, ok := byURL[rec.URL]; ok {
			records[i] = rec
			continue
		}
		byURL[rec.URL] = len(records)
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

var priceDigitsRe = regexp.MustCompile(`[\d,]+`)

// ParsePrice extracts the numeric yen amount from a scraped price string
// such as "¥ 2,000~". Unparseable prices become 0.
func ParsePrice(raw string) int {
	m := priceDigitsRe.FindString(raw)
	if m == "" {
		return 0
	}
	n, err := strconv.Atoi(strings.ReplaceAll(m, ",", ""))
	if err != nil {
		return 0
	}
	return n
}

func payloadFor(rec types.ListingRecord) types.ItemPayload {
	return types.ItemPayload{
		Title:    rec.Title,
		Price:    ParsePrice(rec.Price),
		ShopName: rec.Shop,
		BoothURL: rec.URL,
		Category: rec.Category,
		Avatars:  rec.Avatars,
		Colors:   rec.Colors,
	}
}
