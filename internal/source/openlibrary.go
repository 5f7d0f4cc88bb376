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
	openLibraryBaseURL = "https://openlibrary.org"
	openLibraryLimit   = 200
	openLibraryTimeout = 15 * time.Second
	openLibraryDelay   = 1 * time.Second
)

var openLibraryKeywords = []string{
	"japanese novel",
	"fantasy fiction",
	"science fiction",
	"romance",
}

type openLibraryResponse struct {
	Docs []openLibraryDoc `json:"docs"`
}

type openLibraryDoc struct {
	Key        string   `json:"key"`
	Title      string   `json:"title"`
	AuthorName []string `json:"author_name"`
}

// OpenLibraryAdapter syncs a fixed keyword list from the Open Library
// search API. The search endpoint never returns descriptions.
type OpenLibraryAdapter struct {
	client  *fetch.Client
	repo    database.BookRepository
	baseURL string
	limiter *ratelimit.Limiter
}

func NewOpenLibraryAdapter(client *fetch.Client, repo database.BookRepository) *OpenLibraryAdapter {
	return &OpenLibraryAdapter{
		client:  client,
		repo:    repo,
		baseURL: openLibraryBaseURL,
		limiter: ratelimit.NewInterval("OpenLibrary", openLibraryDelay),
	}
}

func (a *OpenLibraryAdapter) Source() models.Source {
	return models.SourceOpenLibrary
}

func (a *OpenLibraryAdapter) Fetch(ctx context.Context, keyword string) (*openLibraryResponse, error) {
	reqURL := fmt.Sprintf("%s/search.json?q=%s&fields=key,title,author_name&limit=%d",
		a.baseURL, url.QueryEscape(keyword), openLibraryLimit)

	var resp openLibraryResponse
	// Open Library search is slow for broad queries, allow a longer attempt.
	if err := a.client.GetJSON(ctx, reqURL, &resp, fetch.Options{Timeout: openLibraryTimeout}); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *OpenLibraryAdapter) Sync(ctx context.Context) (SyncResult, error) {
	var (
		created, updated int
		errs             []string
	)

	for _, keyword := range openLibraryKeywords {
		if err := a.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("keyword %q: %v", keyword, err))
			break
		}

		resp, err := a.Fetch(ctx, keyword)
		if err != nil {
			errs = append(errs, fmt.Sprintf("keyword %q: %v", keyword, err))
			continue
		}

		books := make([]*models.Book, 0, len(resp.Docs))
		for _, doc := range resp.Docs {
			// "/works/OL15437W" -> "OL15437W"
			workID := strings.TrimPrefix(doc.Key, "/works/")

			books = append(books, &models.Book{
				Source:   models.SourceOpenLibrary,
				SourceID: workID,
				Title:    doc.Title,
				Author:   strings.Join(doc.AuthorName, ", "),
				URL:      openLibraryBaseURL + doc.Key,
				Metadata: map[string]any{"keyword": keyword},
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
