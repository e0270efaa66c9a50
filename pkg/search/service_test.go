package search

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/tyarity/boothlens/pkg/types"
	"github.com/tyarity/boothlens/pkg/vectorstore"
)

type stubEmbedder struct {
	vector  []float32
	err     error
	entered chan struct{}
	release chan struct{}
	calls   int
}

func (e *stubEmbedder) Embed(ctx context.Context, imageData []byte) ([]float32, error) {
	e.calls++
	if e.entered != nil {
		close(e.entered)
		e.entered = nil
		<-e.release
	}
	return e.vector, e.err
}

type stubStore struct {
	hits      []vectorstore.Hit
	err       error
	lastQuery vectorstore.Query
}

func (s *stubStore) EnsureCollection(ctx context.Context) error { return nil }
func (s *stubStore) Upsert(ctx context.Context, points []vectorstore.Point) error {
	return nil
}
func (s *stubStore) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Hit, error) {
	s.lastQuery = q
	return s.hits, s.err
}
func (s *stubStore) HasPoints(ctx context.Context, ids []string) (map[string]bool, error) {
	return nil, nil
}
func (s *stubStore) Count(ctx context.Context) (uint64, error) { return 0, nil }
func (s *stubStore) Close() error                              { return nil }

type stubExclusions struct{ shops []string }

func (s stubExclusions) Excluded() []string { return s.shops }

func testUpload(t *testing.T) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 16, 16))
	for y := 0; y < 16; y++ {
		for x := 0; x < 16; x++ {
			img.Set(x, y, color.NRGBA{R: 200, G: 100, B: 50, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("Failed to encode test image: %v", err)
	}
	return buf.Bytes()
}

func hitFor(id, url string, score float64) vectorstore.Hit {
	return vectorstore.Hit{
		ID:    id,
		Score: score,
		Payload: types.ItemPayload{
			Title:    "Item " + id,
			BoothURL: url,
		},
	}
}

func TestSearchPipeline(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Hit{
		hitFor("a", "https://booth.pm/ja/items/1", 0.9),
		hitFor("b", "https://booth.pm/ja/items/2", 0.8),
	}}
	svc := New(&stubEmbedder{vector: []float32{1, 0}}, store, Options{Limit: 12})

	items, err := svc.Search(context.Background(), testUpload(t), Filters{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 items, got %d", len(items))
	}
	if items[0].ID != "a" || items[1].ID != "b" {
		t.Errorf("Result order not preserved: %s, %s", items[0].ID, items[1].ID)
	}

	// Index is oversampled to cover deduplication.
	if store.lastQuery.Limit != 12*fetchMultiplier {
		t.Errorf("Expected fetch limit %d, got %d", 12*fetchMultiplier, store.lastQuery.Limit)
	}
}

func TestSearchDedupesByListing(t *testing.T) {
	store := &stubStore{hits: []vectorstore.Hit{
		hitFor("a1", "https://booth.pm/ja/items/1", 0.9),
		hitFor("a2", "https://booth.pm/ja/items/1", 0.85),
		hitFor("b1", "https://booth.pm/ja/items/2", 0.8),
		hitFor("a3", "https://booth.pm/ja/items/1", 0.7),
	}}
	svc := New(&stubEmbedder{vector: []float32{1, 0}}, store, Options{})

	items, err := svc.Search(context.Background(), testUpload(t), Filters{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 2 {
		t.Fatalf("Expected 2 unique listings, got %d", len(items))
	}
	// The best-scoring hit per listing survives.
	if items[0].ID != "a1" || items[1].ID != "b1" {
		t.Errorf("Expected a1,b1, got %s,%s", items[0].ID, items[1].ID)
	}
}

func TestSearchLimitTruncation(t *testing.T) {
	var hits []vectorstore.Hit
	for i := 0; i < 20; i++ {
		hits = append(hits, hitFor(
			string(rune('a'+i)),
			"https://booth.pm/ja/items/"+string(rune('a'+i)),
			1.0-float64(i)*0.01,
		))
	}
	svc := New(&stubEmbedder{vector: []float32{1}}, &stubStore{hits: hits}, Options{Limit: 5})

	items, err := svc.Search(context.Background(), testUpload(t), Filters{})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(items) != 5 {
		t.Errorf("Expected 5 items, got %d", len(items))
	}
}

func TestSearchSingleFlight(t *testing.T) {
	embedder := &stubEmbedder{
		vector:  []float32{1, 0},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	svc := New(embedder, &stubStore{}, Options{})
	upload := testUpload(t)

	done := make(chan error, 1)
	go func() {
		_, err := svc.Search(context.Background(), upload, Filters{})
		done <- err
	}()

	<-embedder.entered
	if _, err := svc.Search(context.Background(), upload, Filters{}); err != ErrInFlight {
		t.Errorf("Expected ErrInFlight, got %v", err)
	}

	close(embedder.release)
	if err := <-done; err != nil {
		t.Fatalf("First search failed: %v", err)
	}

	// The guard releases once the first search finishes.
	if _, err := svc.Search(context.Background(), upload, Filters{}); err != nil {
		t.Errorf("Expected search to succeed after release, got %v", err)
	}
}

func TestSearchExclusionsForwarded(t *testing.T) {
	store := &stubStore{}
	svc := New(&stubEmbedder{vector: []float32{1}}, store, Options{
		Exclusions: stubExclusions{shops: []string{"blocked-shop"}},
	})

	if _, err := svc.Search(context.Background(), testUpload(t), Filters{Category: "3D衣装"}); err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(store.lastQuery.ExcludedShops) != 1 || store.lastQuery.ExcludedShops[0] != "blocked-shop" {
		t.Errorf("Exclusions not forwarded: %v", store.lastQuery.ExcludedShops)
	}
	if store.lastQuery.Category != "3D衣装" {
		t.Errorf("Category filter not forwarded: %q", store.lastQuery.Category)
	}
}

func TestSearchInvalidImage(t *testing.T) {
	svc := New(&stubEmbedder{vector: []float32{1}}, &stubStore{}, Options{})
	if _, err := svc.Search(context.Background(), []byte("not an image"), Filters{}); err == nil {
		t.Error("Expected error for undecodable upload")
	}
}
