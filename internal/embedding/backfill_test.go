package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/vector"
)

type fakeRepo struct {
	missing  []*models.Book
	embedded map[int64]time.Time
}

func (f *fakeRepo) GetBySourceID(context.Context, models.Source, string) (*models.Book, error) {
	return nil, database.ErrNotFound
}

func (f *fakeRepo) Upsert(context.Context, *models.Book) (bool, error) { return false, nil }

func (f *fakeRepo) List(context.Context, database.ListFilter) ([]*models.Book, error) {
	return nil, nil
}

func (f *fakeRepo) Count(context.Context, database.ListFilter) (int, error) { return 0, nil }

func (f *fakeRepo) GetByIDs(context.Context, []int64) ([]*models.Book, error) { return nil, nil }

func (f *fakeRepo) ListMissingEmbedding(_ context.Context, limit int) ([]*models.Book, error) {
	if limit > 0 && limit < len(f.missing) {
		return f.missing[:limit], nil
	}
	return f.missing, nil
}

func (f *fakeRepo) MarkEmbedded(_ context.Context, id int64, at time.Time) error {
	if f.embedded == nil {
		f.embedded = make(map[int64]time.Time)
	}
	f.embedded[id] = at
	return nil
}

type fakeEmbedder struct {
	failOn map[string]bool // texts whose embedding fails
	calls  int
}

func (f *fakeEmbedder) Embed(_ context.Context, text string) ([]float32, error) {
	f.calls++
	if f.failOn[text] {
		return nil, errors.New("provider rejected request")
	}
	return []float32{1, 0, 0}, nil
}

func (f *fakeEmbedder) Dimensions() int { return 3 }

type fakeIndex struct {
	points map[int64][]float32
	failOn map[int64]bool
}

func (f *fakeIndex) Upsert(_ context.Context, book *models.Book, vec []float32) error {
	if f.failOn[book.ID] {
		return errors.New("index unavailable")
	}
	if f.points == nil {
		f.points = make(map[int64][]float32)
	}
	f.points[book.ID] = vec
	return nil
}

func (f *fakeIndex) Nearest(context.Context, []float32, int) ([]vector.Hit, error) {
	return nil, nil
}

func (f *fakeIndex) Close() error { return nil }

func missingBooks(n int) []*models.Book {
	books := make([]*models.Book, 0, n)
	for i := 1; i <= n; i++ {
		books = append(books, &models.Book{ID: int64(i), Title: string(rune('A' - 1 + i))})
	}
	return books
}

func TestBackfiller_ProcessesAllMissing(t *testing.T) {
	repo := &fakeRepo{missing: missingBooks(3)}
	index := &fakeIndex{}
	b := NewBackfiller(repo, index, &fakeEmbedder{}, 0)
	b.limiter = nil

	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Processed != 3 || result.Failed != 0 || result.Total != 3 {
		t.Errorf("Unexpected result %+v", result)
	}
	if len(index.points) != 3 {
		t.Errorf("Expected 3 indexed vectors, got %d", len(index.points))
	}
	if len(repo.embedded) != 3 {
		t.Errorf("Expected 3 books marked embedded, got %d", len(repo.embedded))
	}
}

func TestBackfiller_PerRecordFailureDoesNotAbort(t *testing.T) {
	repo := &fakeRepo{missing: missingBooks(3)}
	embedder := &fakeEmbedder{failOn: map[string]bool{"タイトル: B": true}}
	index := &fakeIndex{}
	b := NewBackfiller(repo, index, embedder, 0)
	b.limiter = nil

	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Processed != 2 || result.Failed != 1 {
		t.Errorf("Expected 2 processed / 1 failed, got %+v", result)
	}
	if _, ok := repo.embedded[2]; ok {
		t.Error("Failed book must not be marked embedded")
	}
}

func TestBackfiller_IndexFailureCountsAsFailed(t *testing.T) {
	repo := &fakeRepo{missing: missingBooks(2)}
	index := &fakeIndex{failOn: map[int64]bool{1: true}}
	b := NewBackfiller(repo, index, &fakeEmbedder{}, 0)
	b.limiter = nil

	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Processed != 1 || result.Failed != 1 {
		t.Errorf("Expected 1 processed / 1 failed, got %+v", result)
	}
	if _, ok := repo.embedded[1]; ok {
		t.Error("Book whose index write failed must not be marked embedded")
	}
}

func TestBackfiller_RespectsBatchSize(t *testing.T) {
	repo := &fakeRepo{missing: missingBooks(5)}
	b := NewBackfiller(repo, &fakeIndex{}, &fakeEmbedder{}, 2)
	b.limiter = nil

	result, err := b.Run(context.Background())
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if result.Total != 2 || result.Processed != 2 {
		t.Errorf("Expected batch of 2, got %+v", result)
	}
}
