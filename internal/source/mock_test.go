package source

import (
	"context"
	"fmt"
	"time"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/fetch"
)

// memoryRepo implements database.BookRepository with a plain map, keyed by
// source|source_id like the real unique index.
type memoryRepo struct {
	books   map[string]*models.Book
	nextID  int64
	failIDs map[string]bool // source ids whose upsert should fail
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		books:   make(map[string]*models.Book),
		failIDs: make(map[string]bool),
	}
}

func repoKey(source models.Source, sourceID string) string {
	return string(source) + "|" + sourceID
}

func (m *memoryRepo) GetBySourceID(_ context.Context, source models.Source, sourceID string) (*models.Book, error) {
	book, ok := m.books[repoKey(source, sourceID)]
	if !ok {
		return nil, database.ErrNotFound
	}
	return book, nil
}

func (m *memoryRepo) Upsert(_ context.Context, book *models.Book) (bool, error) {
	if m.failIDs[book.SourceID] {
		return false, fmt.Errorf("simulated store failure for %s", book.SourceID)
	}
	key := repoKey(book.Source, book.SourceID)
	if existing, ok := m.books[key]; ok {
		book.ID = existing.ID
		book.CreatedAt = existing.CreatedAt
		book.UpdatedAt = time.Now()
		m.books[key] = book
		return false, nil
	}
	m.nextID++
	book.ID = m.nextID
	book.CreatedAt = time.Now()
	book.UpdatedAt = book.CreatedAt
	m.books[key] = book
	return true, nil
}

func (m *memoryRepo) List(_ context.Context, _ database.ListFilter) ([]*models.Book, error) {
	var books []*models.Book
	for _, b := range m.books {
		books = append(books, b)
	}
	return books, nil
}

func (m *memoryRepo) Count(_ context.Context, _ database.ListFilter) (int, error) {
	return len(m.books), nil
}

func (m *memoryRepo) GetByIDs(_ context.Context, ids []int64) ([]*models.Book, error) {
	var books []*models.Book
	for _, id := range ids {
		for _, b := range m.books {
			if b.ID == id {
				books = append(books, b)
			}
		}
	}
	return books, nil
}

func (m *memoryRepo) ListMissingEmbedding(_ context.Context, _ int) ([]*models.Book, error) {
	var books []*models.Book
	for _, b := range m.books {
		if b.EmbeddedAt == nil {
			books = append(books, b)
		}
	}
	return books, nil
}

func (m *memoryRepo) MarkEmbedded(_ context.Context, id int64, at time.Time) error {
	for _, b := range m.books {
		if b.ID == id {
			b.EmbeddedAt = &at
			return nil
		}
	}
	return database.ErrNotFound
}

func (m *memoryRepo) get(source models.Source, sourceID string) *models.Book {
	return m.books[repoKey(source, sourceID)]
}

func listFilterAll() database.ListFilter {
	return database.ListFilter{}
}

// fastClient keeps failure-path tests from sitting through real backoff.
func fastClient() *fetch.Client {
	return fetch.NewClientWithDefaults(fetch.Options{Retries: 1, RetryDelay: time.Millisecond})
}
