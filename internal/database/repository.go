package database

import (
	"context"
	"errors"
	"time"

	"github.com/Yuu0413s/book-recom-web/internal/database/models"
)

var ErrNotFound = errors.New("record not found")

// ListFilter narrows List/Count queries. A nil Source matches every source.
type ListFilter struct {
	Source *models.Source
	Limit  int
	Offset int
}

// BookRepository persists unified book records keyed by (source, source_id).
type BookRepository interface {
	GetBySourceID(ctx context.Context, source models.Source, sourceID string) (*models.Book, error)

	// Upsert inserts the book if no row exists for its (source, source_id)
	// pair, otherwise updates the existing row in place. The read and the
	// write form one read-modify-write sequence so two successive runs
	// overwrite rather than duplicate. Reports whether a row was created.
	Upsert(ctx context.Context, book *models.Book) (created bool, err error)

	List(ctx context.Context, filter ListFilter) ([]*models.Book, error)
	Count(ctx context.Context, filter ListFilter) (int, error)
	GetByIDs(ctx context.Context, ids []int64) ([]*models.Book, error)

	// ListMissingEmbedding returns up to limit books whose vector has not
	// been written yet (embedded_at is null). limit <= 0 means no limit.
	ListMissingEmbedding(ctx context.Context, limit int) ([]*models.Book, error)
	MarkEmbedded(ctx context.Context, id int64, at time.Time) error
}

// SyncLogRepository appends and finalizes sync audit entries.
type SyncLogRepository interface {
	CreateEntry(ctx context.Context, entry *models.SyncLog) (int64, error)
	UpdateEntry(ctx context.Context, entry *models.SyncLog) error
}
