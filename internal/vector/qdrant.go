package vector

import (
	"context"
	"fmt"
	"log"

	pb "github.com/qdrant/go-client/qdrant"

	"github.com/Yuu0413s/book-recom-web/internal/database/models"
)

// QdrantIndex implements Index using the official Qdrant Go SDK.
type QdrantIndex struct {
	client     *pb.Client
	collection string
	dimensions int
}

// NewQdrantIndex connects to Qdrant and ensures the target collection
// exists with the expected dimensionality and cosine distance.
func NewQdrantIndex(host string, port int, collection string, dimensions int) (*QdrantIndex, error) {
	client, err := pb.NewClient(&pb.Config{
		Host: host,
		Port: port,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}

	idx := &QdrantIndex{
		client:     client,
		collection: collection,
		dimensions: dimensions,
	}

	if err := idx.ensureCollection(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ensure collection %q: %w", collection, err)
	}

	log.Printf("[Qdrant] Connected to %s:%d, collection=%s (%d dims)", host, port, collection, dimensions)
	return idx, nil
}

func (q *QdrantIndex) ensureCollection(ctx context.Context) error {
	exists, err := q.client.CollectionExists(ctx, q.collection)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	err = q.client.CreateCollection(ctx, &pb.CreateCollection{
		CollectionName: q.collection,
		VectorsConfig: pb.NewVectorsConfig(&pb.VectorParams{
			Size:     uint64(q.dimensions),
			Distance: pb.Distance_Cosine,
		}),
	})
	if err != nil {
		return err
	}

	log.Printf("[Qdrant] Created collection %q", q.collection)
	return nil
}

// Upsert writes one book's vector, keyed by the book's store ID so a
// re-embedded book overwrites its previous point.
func (q *QdrantIndex) Upsert(ctx context.Context, book *models.Book, vec []float32) error {
	if len(vec) != q.dimensions {
		return fmt.Errorf("vector for book %d has %d dims, collection expects %d", book.ID, len(vec), q.dimensions)
	}

	point := &pb.PointStruct{
		Id:      pb.NewIDNum(uint64(book.ID)),
		Vectors: pb.NewVectors(vec...),
		Payload: pb.NewValueMap(map[string]any{
			"source":    string(book.Source),
			"source_id": book.SourceID,
			"title":     book.Title,
		}),
	}

	if _, err := q.client.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: q.collection,
		Points:         []*pb.PointStruct{point},
	}); err != nil {
		return fmt.Errorf("qdrant upsert failed for book %d: %w", book.ID, err)
	}
	return nil
}

// Nearest returns up to limit points ordered by descending cosine
// similarity to vec.
func (q *QdrantIndex) Nearest(ctx context.Context, vec []float32, limit int) ([]Hit, error) {
	points, err := q.client.Query(ctx, &pb.QueryPoints{
		CollectionName: q.collection,
		Query:          pb.NewQuery(vec...),
		Limit:          pb.PtrOf(uint64(limit)),
	})
	if err != nil {
		return nil, fmt.Errorf("qdrant query failed: %w", err)
	}

	hits := make([]Hit, 0, len(points))
	for _, p := range points {
		hits = append(hits, Hit{
			BookID: int64(p.Id.GetNum()),
			Score:  p.Score,
		})
	}
	return hits, nil
}

// Close closes the underlying Qdrant gRPC connection.
func (q *QdrantIndex) Close() error {
	return q.client.Close()
}
