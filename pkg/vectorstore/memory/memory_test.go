package memory

import (
	"context"
	"testing"

	"github.com/tyarity/boothlens/pkg/types"
	"github.com/tyarity/boothlens/pkg/vectorstore"
)

func seedStore(t *testing.T) *Store {
	t.Helper()
	s := New()
	points := []vectorstore.Point{
		{
			ID:     "a",
			Vector: []float32{1, 0, 0},
			Payload: types.ItemPayload{
				Title: "Kikyo Dress", ShopName: "alpha", BoothURL: "https://booth.pm/ja/items/1",
				Category: "3D衣装", Avatars: []string{"kikyo"}, Colors: []string{"white"},
			},
		},
		{
			ID:     "b",
			Vector: []float32{0.9, 0.1, 0},
			Payload: types.ItemPayload{
				Title: "Moe Outfit", ShopName: "beta", BoothURL: "https://booth.pm/ja/items/2",
				Category: "3D衣装", Avatars: []string{"moe"}, Colors: []string{"black"},
			},
		},
		{
			ID:     "c",
			Vector: []float32{0, 1, 0},
			Payload: types.ItemPayload{
				Title: "Hair", ShopName: "alpha", BoothURL: "https://booth.pm/ja/items/3",
				Category: "3Dモデル", Avatars: nil, Colors: []string{"white", "pink"},
			},
		},
	}
	if err := s.Upsert(context.Background(), points); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	return s
}

func TestSearchOrdering(t *testing.T) {
	s := seedStore(t)
	hits, err := s.Search(context.Background(), vectorstore.Query{
		Vector: []float32{1, 0, 0},
		Limit:  10,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 3 {
		t.Fatalf("Expected 3 hits, got %d", len(hits))
	}
	if hits[0].ID != "a" || hits[1].ID != "b" || hits[2].ID != "c" {
		t.Errorf("Expected order a,b,c, got %s,%s,%s", hits[0].ID, hits[1].ID, hits[2].ID)
	}
	if hits[0].Score < hits[1].Score || hits[1].Score < hits[2].Score {
		t.Error("Scores are not descending")
	}
}

func TestSearchLimit(t *testing.T) {
	s := seedStore(t)
	hits, err := s.Search(context.Background(), vectorstore.Query{
		Vector: []float32{1, 0, 0},
		Limit:  2,
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("Expected 2 hits, got %d", len(hits))
	}
}

func TestSearchExcludedShops(t *testing.T) {
	s := seedStore(t)
	hits, err := s.Search(context.Background(), vectorstore.Query{
		Vector:        []float32{1, 0, 0},
		Limit:         10,
		ExcludedShops: []string{"alpha"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "b" {
		t.Errorf("Expected only hit b, got %v", hits)
	}
}

func TestSearchFilters(t *testing.T) {
	s := seedStore(t)

	hits, err := s.Search(context.Background(), vectorstore.Query{
		Vector:   []float32{1, 0, 0},
		Limit:    10,
		Category: "3Dモデル",
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "c" {
		t.Errorf("Expected only hit c for category filter, got %v", hits)
	}

	hits, err = s.Search(context.Background(), vectorstore.Query{
		Vector:  []float32{1, 0, 0},
		Limit:   10,
		Avatars: []string{"kikyo"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "a" {
		t.Errorf("Expected only hit a for avatar filter, got %v", hits)
	}

	hits, err = s.Search(context.Background(), vectorstore.Query{
		Vector: []float32{1, 0, 0},
		Limit:  10,
		Colors: []string{"white", "pink"},
	})
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != "c" {
		t.Errorf("Expected only hit c for color filter, got %v", hits)
	}
}

func TestUpsertReplaces(t *testing.T) {
	s := seedStore(t)
	err := s.Upsert(context.Background(), []vectorstore.Point{{
		ID:      "a",
		Vector:  []float32{0, 0, 1},
		Payload: types.ItemPayload{Title: "Replaced"},
	}})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	n, err := s.Count(context.Background())
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if n != 3 {
		t.Errorf("Expected 3 points after replace, got %d", n)
	}

	hits, _ := s.Search(context.Background(), vectorstore.Query{Vector: []float32{0, 0, 1}, Limit: 1})
	if len(hits) != 1 || hits[0].Payload.Title != "Replaced" {
		t.Errorf("Expected replaced payload, got %v", hits)
	}
}

func TestHasPoints(t *testing.T) {
	s := seedStore(t)
	found, err := s.HasPoints(context.Background(), []string{"a", "missing", "c"})
	if err != nil {
		t.Fatalf("HasPoints failed: %v", err)
	}
	if !found["a"] || !found["c"] {
		t.Error("Expected a and c to be found")
	}
	if found["missing"] {
		t.Error("Did not expect missing to be found")
	}
}
