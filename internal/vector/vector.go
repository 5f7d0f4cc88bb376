package vector

import (
	"context"

	"github.com/Yuu0413s/book-recom-web/internal/database/models"
)

// Hit is one nearest-neighbor match: the store ID of the book and its
// cosine similarity to the query vector, higher is closer.
type Hit struct {
	BookID int64
	Score  float32
}

// Index is the vector store consumed by semantic search and the embedding
// backfill. Only books that were explicitly upserted exist in the index,
// so records without an embedding can never appear in Nearest results.
type Index interface {
	Upsert(ctx context.Context, book *models.Book, vec []float32) error
	Nearest(ctx context.Context, vec []float32, limit int) ([]Hit, error)
	Close() error
}
