package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/schema"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
)

// BunStore implements database.BookRepository and database.SyncLogRepository
// on top of a bun-wrapped SQL database.
type BunStore struct {
	db *bun.DB
}

func NewBunStore(db *sql.DB, dialect schema.Dialect) (*BunStore, error) {
	bunDB := bun.NewDB(db, dialect)

	store := &BunStore{db: bunDB}

	// Create tables if they don't exist
	ctx := context.Background()
	if _, err := bunDB.NewCreateTable().Model((*models.Book)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create books table: %w", err)
	}
	if _, err := bunDB.NewCreateTable().Model((*models.SyncLog)(nil)).IfNotExists().Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create sync_logs table: %w", err)
	}

	// (source, source_id) is the identity key for upsert. The unique index
	// is the final idempotency guard should two runs ever race.
	if _, err := bunDB.NewCreateIndex().
		Model((*models.Book)(nil)).
		Index("idx_books_source_source_id").
		Unique().
		IfNotExists().
		Column("source", "source_id").
		Exec(ctx); err != nil {
		return nil, fmt.Errorf("failed to create books identity index: %w", err)
	}

	return store, nil
}

// BookRepository implementation

func (s *BunStore) GetBySourceID(ctx context.Context, source models.Source, sourceID string) (*models.Book, error) {
	book := new(models.Book)
	if err := s.db.NewSelect().Model(book).
		Where("source = ?", source).
		Where("source_id = ?", sourceID).
		Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, database.ErrNotFound
		}
		return nil, err
	}
	return book, nil
}

func (s *BunStore) Upsert(ctx context.Context, book *models.Book) (bool, error) {
	existing, err := s.GetBySourceID(ctx, book.Source, book.SourceID)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return false, err
	}

	now := time.Now()
	if existing == nil {
		book.CreatedAt = now
		book.UpdatedAt = now
		if _, err := s.db.NewInsert().Model(book).Exec(ctx); err != nil {
			return false, err
		}
		return true, nil
	}

	book.ID = existing.ID
	book.CreatedAt = existing.CreatedAt
	// A refresh of the record must not drop its embedding marker.
	book.EmbeddedAt = existing.EmbeddedAt
	book.UpdatedAt = now
	if _, err := s.db.NewUpdate().Model(book).WherePK().Exec(ctx); err != nil {
		return false, err
	}
	return false, nil
}

func (s *BunStore) List(ctx context.Context, filter database.ListFilter) ([]*models.Book, error) {
	books := make([]*models.Book, 0)
	q := s.db.NewSelect().Model(&books).Order("updated_at DESC")
	if filter.Source != nil {
		q = q.Where("source = ?", *filter.Source)
	}
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		q = q.Offset(filter.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *BunStore) Count(ctx context.Context, filter database.ListFilter) (int, error) {
	q := s.db.NewSelect().Model((*models.Book)(nil))
	if filter.Source != nil {
		q = q.Where("source = ?", *filter.Source)
	}
	return q.Count(ctx)
}

func (s *BunStore) GetByIDs(ctx context.Context, ids []int64) ([]*models.Book, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	books := make([]*models.Book, 0, len(ids))
	if err := s.db.NewSelect().Model(&books).
		Where("b.id IN (?)", bun.In(ids)).
		Scan(ctx); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *BunStore) ListMissingEmbedding(ctx context.Context, limit int) ([]*models.Book, error) {
	books := make([]*models.Book, 0)
	q := s.db.NewSelect().Model(&books).
		Where("embedded_at IS NULL").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return books, nil
}

func (s *BunStore) MarkEmbedded(ctx context.Context, id int64, at time.Time) error {
	res, err := s.db.NewUpdate().Model((*models.Book)(nil)).
		Set("embedded_at = ?", at).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return database.ErrNotFound
	}
	return nil
}

// SyncLogRepository implementation

func (s *BunStore) CreateEntry(ctx context.Context, entry *models.SyncLog) (int64, error) {
	if _, err := s.db.NewInsert().Model(entry).Exec(ctx); err != nil {
		return 0, err
	}
	return entry.ID, nil
}

func (s *BunStore) UpdateEntry(ctx context.Context, entry *models.SyncLog) error {
	if _, err := s.db.NewUpdate().Model(entry).WherePK().Exec(ctx); err != nil {
		return err
	}
	return nil
}
