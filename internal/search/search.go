package search

import (
	"context"
	"fmt"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/embedding"
	"github.com/Yuu0413s/book-recom-web/internal/vector"
)

const (
	// DefaultLimit applies when the caller does not ask for a count.
	DefaultLimit = 10
	// MaxLimit bounds one query so the index is never asked for an
	// unbounded scan.
	MaxLimit = 50
)

// Result is one ranked record with its cosine similarity in [0,1].
type Result struct {
	Book       *models.Book `json:"book"`
	Similarity float32      `json:"similarity"`
}

// Service ranks stored books by semantic similarity to a free-text query.
type Service struct {
	embedder embedding.Embedder
	index    vector.Index
	repo     database.BookRepository
}

func NewService(embedder embedding.Embedder, index vector.Index, repo database.BookRepository) *Service {
	return &Service{embedder: embedder, index: index, repo: repo}
}

// Search embeds the query and returns up to limit books ordered by
// descending similarity. Books without an embedding are absent from the
// index and therefore can never rank. An embedding failure is a hard
// failure here: without a query vector there is nothing to rank by.
func (s *Service) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	vec, err := s.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	hits, err := s.index.Nearest(ctx, vec, limit)
	if err != nil {
		return nil, fmt.Errorf("nearest-neighbor query failed: %w", err)
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]int64, 0, len(hits))
	for _, h := range hits {
		ids = append(ids, h.BookID)
	}
	books, err := s.repo.GetByIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("failed to load ranked books: %w", err)
	}
	byID := make(map[int64]*models.Book, len(books))
	for _, b := range books {
		byID[b.ID] = b
	}

	// Preserve the index's similarity order; drop hits whose record has
	// vanished from the store since indexing.
	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		book, ok := byID[h.BookID]
		if !ok {
			continue
		}
		results = append(results, Result{Book: book, Similarity: h.Score})
	}
	return results, nil
}
