package source

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/fetch"
	"github.com/Yuu0413s/book-recom-web/internal/ratelimit"
)

const (
	googleBooksBaseURL    = "https://www.googleapis.com/books/v1/volumes"
	googleBooksMaxResults = 20
	googleBooksDelay      = 500 * time.Millisecond
)

// 20 results x 5 keywords = 100 items per run.
var googleBooksKeywords = []string{"小説", "ファンタジー", "SF", "恋愛", "ミステリー"}

type googleBooksResponse struct {
	Items []googleBooksItem `json:"items"`
}

type googleBooksItem struct {
	ID         string `json:"id"`
	VolumeInfo struct {
		Title       string   `json:"title"`
		Authors     []string `json:"authors"`
		Description string   `json:"description"`
	} `json:"volumeInfo"`
}

// GoogleBooksAdapter syncs a fixed keyword list from the Google Books
// volumes API, one fetch unit per keyword.
type GoogleBooksAdapter struct {
	client  *fetch.Client
	repo    database.BookRepository
	baseURL string
	limiter *ratelimit.Limiter
}

func NewGoogleBooksAdapter(client *fetch.Client, repo database.BookRepository) *GoogleBooksAdapter {
	return &GoogleBooksAdapter{
		client:  client,
		repo:    repo,
		baseURL: googleBooksBaseURL,
		limiter: ratelimit.NewInterval("GoogleBooks", googleBooksDelay),
	}
}

func (a *GoogleBooksAdapter) Source() models.Source {
	return models.SourceGoogleBooks
}

func (a *GoogleBooksAdapter) Fetch(ctx context.Context, keyword string) (*googleBooksResponse, error) {
	reqURL := fmt.Sprintf("%s?q=%s&maxResults=%d&fields=items(id,volumeInfo(title,authors,description))",
		a.baseURL, url.QueryEscape(keyword), googleBooksMaxResults)

	var resp googleBooksResponse
	if err := a.client.GetJSON(ctx, reqURL, &resp, fetch.Options{}); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *GoogleBooksAdapter) Sync(ctx context.Context) (SyncResult, error) {
	var (
		created, updated int
		errs             []string
	)

	for _, keyword := range googleBooksKeywords {
		if err := a.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("keyword %q: %v", keyword, err))
			break
		}

		resp, err := a.Fetch(ctx, keyword)
		if err != nil {
			errs = append(errs, fmt.Sprintf("keyword %q: %v", keyword, err))
			continue
		}

		books := make([]*models.Book, 0, len(resp.Items))
		for _, item := range resp.Items {
			books = append(books, &models.Book{
				Source:      models.SourceGoogleBooks,
				SourceID:    item.ID,
				Title:       item.VolumeInfo.Title,
				Author:      strings.Join(item.VolumeInfo.Authors, ", "),
				Description: item.VolumeInfo.Description,
				URL:         fmt.Sprintf("https://books.google.com/books?id=%s", item.ID),
				Metadata:    map[string]any{"keyword": keyword},
			})
		}

		c, u, err := upsertBatch(ctx, a.repo, books)
		created += c
		updated += u
		if err != nil {
			errs = append(errs, fmt.Sprintf("keyword %q: %v", keyword, err))
		}
	}

	return newSyncResult(a.Source(), created, updated, errs), nil
}
