// Package memory is a brute-force in-memory vectorstore.Store used when
// no Qdrant credentials are configured. It scans every point per query,
// which is fine for the local development index sizes it exists for.
package memory

import (
	"context"
	"slices"
	"sync"

	"gonum.org/v1/gonum/floats"

	"github.com/tyarity/boothlens/pkg/vectorstore"
)

// Store holds points in process memory. Safe for concurrent use.
type Store struct {
	mu     sync.RWMutex
	points map[string]entry
}

type entry struct {
	vector  []float64
	payload vectorstore.Point
}

// New returns an empty in-memory store.
func New() *Store {
	return &Store{points: make(map[string]entry)}
}

// EnsureCollection is a no-op for the in-memory store.
func (s *Store) EnsureCollection(ctx context.Context) error {
	return nil
}

// Upsert inserts or replaces points.
func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range points {
		vec := make([]float64, len(p.Vector))
		for i, x := range p.Vector {
			vec[i] = float64(x)
		}
		s.points[p.ID] = entry{vector: vec, payload: p}
	}
	return nil
}

// Search scans all points, scoring by dot product. Stored vectors are
// unit-normalized, so the dot product is the cosine similarity.
func (s *Store) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Hit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	query := make([]float64, len(q.Vector))
	for i, x := range q.Vector {
		query[i] = float64(x)
	}

	excluded := make(map[string]bool, len(q.ExcludedShops))
	for _, shop := range q.ExcludedShops {
		excluded[shop] = true
	}

	s.mu.RLock()
	hits := make([]vectorstore.Hit, 0, len(s.points))
	for id, e := range s.points {
		p := e.payload.Payload
		if excluded[p.ShopName] {
			continue
		}
		if q.Category != "" && p.Category != q.Category {
			continue
		}
		if !containsAll(p.Avatars, q.Avatars) || !containsAll(p.Colors, q.Colors) {
			continue
		}
		if len(e.vector) != len(query) {
			continue
		}
		hits = append(hits, vectorstore.Hit{
			ID:      id,
			Score:   floats.Dot(query, e.vector),
			Payload: p,
		})
	}
	s.mu.RUnlock()

	slices.SortFunc(hits, func(a, b vectorstore.Hit) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > limit {
		hits = hits[:limit]
	}
	return hits, nil
}

// HasPoints reports which IDs exist in the store.
func (s *Store) HasPoints(ctx context.Context, ids []string) (map[string]bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	found := make(map[string]bool, len(ids))
	for _, id := range ids {
		if _, ok := s.points[id]; ok {
			found[id] = true
		}
	}
	return found, nil
}

// Count returns the number of stored points.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return uint64(len(s.points)), nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}

func containsAll(have, want []string) bool {
	for _, w := range want {
		if !slices.Contains(have, w) {
			return false
		}
	}
	return true
}
