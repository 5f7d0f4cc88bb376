package embedding

import (
	"context"
	"log"
	"time"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/ratelimit"
	"github.com/Yuu0413s/book-recom-web/internal/vector"
)

// backfillDelay throttles embedding calls against the provider's rate limit.
const backfillDelay = 50 * time.Millisecond

// BackfillResult summarizes one backfill pass.
type BackfillResult struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
	Total     int `json:"total"`
}

// Backfiller populates vectors for books that don't have one yet. The pass
// is idempotent: a book is only marked embedded after its vector landed in
// the index, so a crashed pass simply resumes on the next run.
type Backfiller struct {
	repo     database.BookRepository
	index    vector.Index
	embedder Embedder
	limiter  *ratelimit.Limiter
	// batchSize caps how many books one pass picks up; 0 means all.
	batchSize int
}

func NewBackfiller(repo database.BookRepository, index vector.Index, embedder Embedder, batchSize int) *Backfiller {
	return &Backfiller{
		repo:      repo,
		index:     index,
		embedder:  embedder,
		limiter:   ratelimit.NewInterval("EmbeddingProvider", backfillDelay),
		batchSize: batchSize,
	}
}

// Run embeds every book missing a vector. Per-record failures are counted
// and logged but never abort the batch.
func (b *Backfiller) Run(ctx context.Context) (BackfillResult, error) {
	books, err := b.repo.ListMissingEmbedding(ctx, b.batchSize)
	if err != nil {
		return BackfillResult{}, err
	}

	result := BackfillResult{Total: len(books)}
	log.Printf("[Backfill] Found %d books to process", len(books))

	for _, book := range books {
		if err := b.limiter.Wait(ctx); err != nil {
			return result, err
		}

		vec, err := b.embedder.Embed(ctx, BuildBookText(book))
		if err != nil {
			log.Printf("[Backfill] Error embedding book %d: %v", book.ID, err)
			result.Failed++
			continue
		}
		if err := b.index.Upsert(ctx, book, vec); err != nil {
			log.Printf("[Backfill] Error indexing book %d: %v", book.ID, err)
			result.Failed++
			continue
		}
		if err := b.repo.MarkEmbedded(ctx, book.ID, time.Now()); err != nil {
			log.Printf("[Backfill] Error marking book %d embedded: %v", book.ID, err)
			result.Failed++
			continue
		}

		result.Processed++
		if result.Processed%10 == 0 {
			log.Printf("[Backfill] Processed %d/%d books", result.Processed, result.Total)
		}
	}

	return result, nil
}
