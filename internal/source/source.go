package source

import (
	"context"
	"fmt"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
)

// Adapter is one external catalog API. Sync fetches the adapter's fetch
// units, normalizes every raw item into a models.Book and upserts it.
// Unit-level failures are collected inside the returned SyncResult; a
// non-nil error means the adapter itself broke and produced no result.
type Adapter interface {
	Source() models.Source
	Sync(ctx context.Context) (SyncResult, error)
}

// SyncResult is the outcome of one adapter run. Immutable after return.
type SyncResult struct {
	Source  models.Source `json:"source"`
	Success bool          `json:"success"`
	Created int           `json:"created"`
	Updated int           `json:"updated"`
	Errors  []string      `json:"errors,omitempty"`
	Message string        `json:"message"`
}

func newSyncResult(src models.Source, created, updated int, errs []string) SyncResult {
	return SyncResult{
		Source:  src,
		Success: len(errs) == 0,
		Created: created,
		Updated: updated,
		Errors:  errs,
		Message: fmt.Sprintf("Synced %d new, %d updated", created, updated),
	}
}

// upsertBatch upserts books one by one, tallying creates and updates.
// On the first failing upsert it stops and returns the counts so far; the
// caller records those counts and tags the error with its fetch unit.
func upsertBatch(ctx context.Context, repo database.BookRepository, books []*models.Book) (created, updated int, err error) {
	for _, book := range books {
		wasCreated, uerr := repo.Upsert(ctx, book)
		if uerr != nil {
			return created, updated, fmt.Errorf("upsert %s/%s: %w", book.Source, book.SourceID, uerr)
		}
		if wasCreated {
			created++
		} else {
			updated++
		}
	}
	return created, updated, nil
}
