// Package qdrant adapts a Qdrant collection to the vectorstore.Store
// interface.
package qdrant

import (
	"context"
	"fmt"
	"log/slog"

	qd "github.com/qdrant/go-client/qdrant"

	"github.com/tyarity/boothlens/pkg/types"
	"github.com/tyarity/boothlens/pkg/vectorstore"
)

// indexedFields get keyword payload indexes so exclusion and category
// filters stay fast as the collection grows.
var indexedFields = []string{"shopName", "category", "avatars", "colors"}

// Config holds Qdrant connection settings.
type Config struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Store implements vectorstore.Store on a Qdrant collection.
type Store struct {
	client     *qd.Client
	collection string
}

// New connects to Qdrant and returns the adapter. The connection is lazy;
// errors surface on the first call.
func New(cfg Config) (*Store, error) {
	if cfg.Port == 0 {
		cfg.Port = 6334
	}
	client, err := qd.NewClient(&qd.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: create client: %w", err)
	}
	return &Store{client: client, collection: vectorstore.CollectionName}, nil
}

// EnsureCollection creates the collection (512-dim cosine) and its
// keyword payload indexes if they do not exist yet.
func (s *Store) EnsureCollection(ctx context.Context) error {
	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return fmt.Errorf("qdrant: check collection: %w", err)
	}
	if exists {
		return nil
	}

	err = s.client.CreateCollection(ctx, &qd.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: qd.NewVectorsConfig(&qd.VectorParams{
			Size:     uint64(vectorstore.VectorSize),
			Distance: qd.Distance_Cosine,
		}),
	})
	if err != nil {
		return fmt.Errorf("qdrant: create collection: %w", err)
	}

	for _, field := range indexedFields {
		_, err := s.client.CreateFieldIndex(ctx, &qd.CreateFieldIndexCollection{
			CollectionName: s.collection,
			FieldName:      field,
			FieldType:      qd.FieldType_FieldTypeKeyword.Enum(),
			Wait:           qd.PtrOf(true),
		})
		if err != nil {
			slog.Error("Failed to create payload index", "field", field, "error", err)
		}
	}
	return nil
}

// Upsert inserts or replaces points.
func (s *Store) Upsert(ctx context.Context, points []vectorstore.Point) error {
	if len(points) == 0 {
		return nil
	}
	qdPoints := make([]*qd.PointStruct, 0, len(points))
	for _, p := range points {
		qdPoints = append(qdPoints, &qd.PointStruct{
			Id:      qd.NewID(p.ID),
			Vectors: qd.NewVectors(p.Vector...),
			Payload: payloadToValues(p.Payload),
		})
	}
	_, err := s.client.Upsert(ctx, &qd.UpsertPoints{
		CollectionName: s.collection,
		Points:         qdPoints,
		Wait:           qd.PtrOf(true),
	})
	if err != nil {
		return fmt.Errorf("qdrant: upsert %d points: %w", len(points), err)
	}
	return nil
}

// Search runs a filtered nearest-neighbor query.
func (s *Store) Search(ctx context.Context, q vectorstore.Query) ([]vectorstore.Hit, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = 10
	}

	var must, mustNot []*qd.Condition
	for _, shop := range q.ExcludedShops {
		mustNot = append(mustNot, qd.NewMatch("shopName", shop))
	}
	if q.Category != "" {
		must = append(must, qd.NewMatch("category", q.Category))
	}
	for _, avatar := range q.Avatars {
		must = append(must, qd.NewMatchKeywords("avatars", avatar))
	}
	for _, c := range q.Colors {
		must = append(must, qd.NewMatchKeywords("colors", c))
	}
	var filter *qd.Filter
	if len(must) > 0 || len(mustNot) > 0 {
		filter = &qd.Filter{Must: must, MustNot: mustNot}
	}

	scored, err := s.client.Query(ctx, &qd.QueryPoints{
		CollectionName: s.collection,
		Query:          qd.NewQuery(q.Vector...),
		Filter:         filter,
		Limit:          qd.PtrOf(uint64(limit)),
		WithPayload:    qd.NewWithPayload(true),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: query: %w", err)
	}

	hits := make([]vectorstore.Hit, 0, len(scored))
	for _, p := range scored {
		hits = append(hits, vectorstore.Hit{
			ID:      pointIDString(p.GetId()),
			Score:   float64(p.GetScore()),
			Payload: valuesToPayload(p.GetPayload()),
		})
	}
	return hits, nil
}

// HasPoints retrieves the given IDs without payloads or vectors and
// reports which exist.
func (s *Store) HasPoints(ctx context.Context, ids []string) (map[string]bool, error) {
	found := make(map[string]bool, len(ids))
	if len(ids) == 0 {
		return found, nil
	}
	qdIDs := make([]*qd.PointId, 0, len(ids))
	for _, id := range ids {
		qdIDs = append(qdIDs, qd.NewID(id))
	}
	points, err := s.client.Get(ctx, &qd.GetPoints{
		CollectionName: s.collection,
		Ids:            qdIDs,
		WithPayload:    qd.NewWithPayload(false),
		WithVectors:    qd.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant: get points: %w", err)
	}
	for _, p := range points {
		found[pointIDString(p.GetId())] = true
	}
	return found, nil
}

// Count returns the exact number of indexed points.
func (s *Store) Count(ctx context.Context) (uint64, error) {
	n, err := s.client.Count(ctx, &qd.CountPoints{
		CollectionName: s.collection,
		Exact:          qd.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("qdrant: count: %w", err)
	}
	return n, nil
}

// Close shuts down the underlying gRPC connection.
func (s *Store) Close() error {
	return s.client.Close()
}

func pointIDString(id *qd.PointId) string {
	if id == nil {
		return ""
	}
	if u := id.GetUuid(); u != "" {
		return u
	}
	return fmt.Sprintf("%d", id.GetNum())
}

func payloadToValues(p types.ItemPayload) map[string]*qd.Value {
	return qd.NewValueMap(map[string]any{
		"title":        p.Title,
		"price":        p.Price,
		"thumbnailUrl": p.ThumbnailURL,
		"shopName":     p.ShopName,
		"boothUrl":     p.BoothURL,
		"category":     p.Category,
		"avatars":      toAnySlice(p.Avatars),
		"colors":       toAnySlice(p.Colors),
	})
}

func valuesToPayload(values map[string]*qd.Value) types.ItemPayload {
	return types.ItemPayload{
		Title:        values["title"].GetStringValue(),
		Price:        int(values["price"].GetIntegerValue()),
		ThumbnailURL: values["thumbnailUrl"].GetStringValue(),
		ShopName:     values["shopName"].GetStringValue(),
		BoothURL:     values["boothUrl"].GetStringValue(),
		Category:     values["category"].GetStringValue(),
		Avatars:      toStringSlice(values["avatars"]),
		Colors:       toStringSlice(values["colors"]),
	}
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}

func toStringSlice(v *qd.Value) []string {
	list := v.GetListValue()
	if list == nil {
		return nil
	}
	out := make([]string, 0, len(list.GetValues()))
	for _, item := range list.GetValues() {
		if s := item.GetStringValue(); s != "" {
			out = append(out, s)
		}
	}
	return out
}
