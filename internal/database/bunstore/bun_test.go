package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
)

func newTestStore(t *testing.T) *BunStore {
	t.Helper()

	db, err := sql.Open(sqliteshim.ShimName, ":memory:")
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	// An in-memory SQLite database lives per connection.
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })

	store, err := NewBunStore(db, sqlitedialect.New())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	return store
}

func sampleBook(sourceID string) *models.Book {
	return &models.Book{
		Source:   models.SourceNarou,
		SourceID: sourceID,
		Title:    "Some Novel",
		Author:   "Some Author",
		URL:      "https://ncode.syosetu.com/" + sourceID + "/",
		Metadata: map[string]any{"userid": 42},
	}
}

func TestUpsert_CreatesThenUpdates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	created, err := store.Upsert(ctx, sampleBook("n0001aa"))
	if err != nil {
		t.Fatalf("First upsert failed: %v", err)
	}
	if !created {
		t.Error("Expected first upsert to create")
	}

	second := sampleBook("n0001aa")
	second.Title = "Some Novel (revised)"
	created, err = store.Upsert(ctx, second)
	if err != nil {
		t.Fatalf("Second upsert failed: %v", err)
	}
	if created {
		t.Error("Expected second upsert to update, not create")
	}

	got, err := store.GetBySourceID(ctx, models.SourceNarou, "n0001aa")
	if err != nil {
		t.Fatalf("GetBySourceID failed: %v", err)
	}
	if got.Title != "Some Novel (revised)" {
		t.Errorf("Expected updated title, got %q", got.Title)
	}

	count, err := store.Count(ctx, database.ListFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 1 {
		t.Errorf("Expected a single row after two upserts, got %d", count)
	}
}

func TestUpsert_PreservesEmbeddingMarker(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	book := sampleBook("n0002bb")
	if _, err := store.Upsert(ctx, book); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if err := store.MarkEmbedded(ctx, book.ID, time.Now()); err != nil {
		t.Fatalf("MarkEmbedded failed: %v", err)
	}

	// A later sync refreshes the record without knowing about embeddings.
	if _, err := store.Upsert(ctx, sampleBook("n0002bb")); err != nil {
		t.Fatalf("Refresh upsert failed: %v", err)
	}

	got, err := store.GetBySourceID(ctx, models.SourceNarou, "n0002bb")
	if err != nil {
		t.Fatalf("GetBySourceID failed: %v", err)
	}
	if got.EmbeddedAt == nil {
		t.Error("Refresh upsert must not drop the embedding marker")
	}
}

func TestGetBySourceID_NotFound(t *testing.T) {
	store := newTestStore(t)

	_, err := store.GetBySourceID(context.Background(), models.SourceNarou, "missing")
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestSameSourceIDAcrossSourcesAreDistinct(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	narou := sampleBook("shared-id")
	other := sampleBook("shared-id")
	other.Source = models.SourceAozora

	if _, err := store.Upsert(ctx, narou); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	created, err := store.Upsert(ctx, other)
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if !created {
		t.Error("Same source_id under a different source must create a new row")
	}

	count, err := store.Count(ctx, database.ListFilter{})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 rows, got %d", count)
	}
}

func TestListAndCount_SourceFilter(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for i, src := range []models.Source{models.SourceNarou, models.SourceNarou, models.SourceAozora} {
		book := sampleBook(string(rune('a' + i)))
		book.Source = src
		if _, err := store.Upsert(ctx, book); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	src := models.SourceNarou
	books, err := store.List(ctx, database.ListFilter{Source: &src})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("Expected 2 NAROU books, got %d", len(books))
	}

	count, err := store.Count(ctx, database.ListFilter{Source: &src})
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 2 {
		t.Errorf("Expected count 2, got %d", count)
	}
}

func TestList_LimitAndOffset(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c", "d"} {
		if _, err := store.Upsert(ctx, sampleBook(id)); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	books, err := store.List(ctx, database.ListFilter{Limit: 2, Offset: 3})
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(books) != 1 {
		t.Errorf("Expected 1 book past offset 3 of 4, got %d", len(books))
	}
}

func TestListMissingEmbedding(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleBook("a")
	second := sampleBook("b")
	third := sampleBook("c")
	for _, b := range []*models.Book{first, second, third} {
		if _, err := store.Upsert(ctx, b); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}
	if err := store.MarkEmbedded(ctx, second.ID, time.Now()); err != nil {
		t.Fatalf("MarkEmbedded failed: %v", err)
	}

	missing, err := store.ListMissingEmbedding(ctx, 0)
	if err != nil {
		t.Fatalf("ListMissingEmbedding failed: %v", err)
	}
	if len(missing) != 2 {
		t.Fatalf("Expected 2 books without embedding, got %d", len(missing))
	}
	for _, b := range missing {
		if b.ID == second.ID {
			t.Error("Embedded book must not be listed as missing")
		}
	}

	limited, err := store.ListMissingEmbedding(ctx, 1)
	if err != nil {
		t.Fatalf("ListMissingEmbedding failed: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("Expected limit to apply, got %d books", len(limited))
	}
}

func TestMarkEmbedded_UnknownID(t *testing.T) {
	store := newTestStore(t)

	err := store.MarkEmbedded(context.Background(), 999, time.Now())
	if !errors.Is(err, database.ErrNotFound) {
		t.Errorf("Expected ErrNotFound for unknown id, got %v", err)
	}
}

func TestGetByIDs(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := sampleBook("a")
	second := sampleBook("b")
	for _, b := range []*models.Book{first, second} {
		if _, err := store.Upsert(ctx, b); err != nil {
			t.Fatalf("Upsert failed: %v", err)
		}
	}

	books, err := store.GetByIDs(ctx, []int64{first.ID, second.ID, 999})
	if err != nil {
		t.Fatalf("GetByIDs failed: %v", err)
	}
	if len(books) != 2 {
		t.Errorf("Expected 2 books, got %d", len(books))
	}

	none, err := store.GetByIDs(ctx, nil)
	if err != nil {
		t.Fatalf("GetByIDs with no ids failed: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("Expected no books for empty id list, got %d", len(none))
	}
}

func TestSyncLogLifecycle(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	entry := &models.SyncLog{
		Source:    models.SourceNarou,
		Status:    models.SyncStatusRunning,
		StartedAt: time.Now(),
	}
	id, err := store.CreateEntry(ctx, entry)
	if err != nil {
		t.Fatalf("CreateEntry failed: %v", err)
	}
	if id == 0 {
		t.Fatal("Expected a non-zero entry id")
	}

	now := time.Now()
	entry.Status = models.SyncStatusSuccess
	entry.Created = 3
	entry.EndedAt = &now
	if err := store.UpdateEntry(ctx, entry); err != nil {
		t.Fatalf("UpdateEntry failed: %v", err)
	}
}
