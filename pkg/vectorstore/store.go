// Package vectorstore defines a database-agnostic interface for the
// listing image index, so the search service never imports a concrete
// vector database. Adapters live in subpackages: qdrant for the hosted
// index and memory for the credential-less local fallback.
package vectorstore

import (
	"context"
	"crypto/md5"

	"github.com/google/uuid"

	"github.com/tyarity/boothlens/pkg/types"
)

// CollectionName is the single collection holding listing image vectors.
const CollectionName = "booth_items"

// VectorSize is the dimensionality of stored vectors (CLIP ViT-B/32).
const VectorSize = 512

// Point is one indexed listing image.
type Point struct {
	ID      string
	Vector  []float32
	Payload types.ItemPayload
}

// Hit is one scored match. Higher score means a closer match.
type Hit struct {
	ID      string
	Score   float64
	Payload types.ItemPayload
}

// Query is a similarity search request. ExcludedShops become must-not
// conditions on shopName; Category, Avatars and Colors become must
// conditions on their payload fields.
type Query struct {
	Vector        []float32
	Limit         int
	ExcludedShops []string
	Category      string
	Avatars       []string
	Colors        []string
}

// Store is the index surface consumed by the search service and the
// seeder.
type Store interface {
	// EnsureCollection creates the collection and its payload indexes
	// if missing.
	EnsureCollection(ctx context.Context) error
	// Upsert inserts or replaces points.
	Upsert(ctx context.Context, points []Point) error
	// Search returns up to Limit hits ordered by descending score.
	Search(ctx context.Context, q Query) ([]Hit, error)
	// HasPoints reports which of the given IDs are already indexed.
	HasPoints(ctx context.Context, ids []string) (map[string]bool, error)
	// Count returns the number of indexed points.
	Count(ctx context.Context) (uint64, error)
	// Close releases the underlying connection.
	Close() error
}

// PointID derives a stable UUID from an image path or URL, so re-seeding
// the same metadata never duplicates points. The UUID bytes are the MD5
// digest of the path, matching IDs written by earlier seeding runs.
func PointID(imagePath string) string {
	sum := md5.Sum([]byte(imagePath))
	id, err := uuid.FromBytes(sum[:])
	if err != nil {
		// FromBytes only fails on a length mismatch; a 16-byte digest
		// cannot trigger it.
		panic(err)
	}
	return id.String()
}
