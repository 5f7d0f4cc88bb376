package source

import (
	"context"
	"fmt"
	"strings"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/fetch"
)

const (
	narouBaseURL = "https://api.syosetu.com/novelapi/api/"
	narouLimit   = 200
)

// narouEntry is one element of the Narou API response array. The first
// element carries only allcount and no novel fields.
type narouEntry struct {
	AllCount *int   `json:"allcount,omitempty"`
	Ncode    string `json:"ncode"`
	Title    string `json:"title"`
	Writer   string `json:"writer"`
	Story    string `json:"story"`
	UserID   int    `json:"userid"`
}

// NarouAdapter syncs from the 小説家になろう novel API: a single call with a
// fixed limit, no pagination.
type NarouAdapter struct {
	client  *fetch.Client
	repo    database.BookRepository
	baseURL string
}

func NewNarouAdapter(client *fetch.Client, repo database.BookRepository) *NarouAdapter {
	return &NarouAdapter{client: client, repo: repo, baseURL: narouBaseURL}
}

func (a *NarouAdapter) Source() models.Source {
	return models.SourceNarou
}

// Fetch retrieves the current novel ranking. The count header element is
// stripped before mapping.
func (a *NarouAdapter) Fetch(ctx context.Context) ([]narouEntry, error) {
	url := fmt.Sprintf("%s?out=json&of=n-t-w-s-u&lim=%d", a.baseURL, narouLimit)

	var entries []narouEntry
	if err := a.client.GetJSON(ctx, url, &entries, fetch.Options{}); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("narou response missing count header")
	}
	return entries[1:], nil
}

func (a *NarouAdapter) Sync(ctx context.Context) (SyncResult, error) {
	var errs []string

	novels, err := a.Fetch(ctx)
	if err != nil {
		errs = append(errs, err.Error())
		return newSyncResult(a.Source(), 0, 0, errs), nil
	}

	books := make([]*models.Book, 0, len(novels))
	for _, novel := range novels {
		books = append(books, &models.Book{
			Source:      models.SourceNarou,
			SourceID:    novel.Ncode,
			Title:       novel.Title,
			Author:      novel.Writer,
			Description: novel.Story,
			URL:         fmt.Sprintf("https://ncode.syosetu.com/%s/", strings.ToLower(novel.Ncode)),
			Metadata:    map[string]any{"userid": novel.UserID},
		})
	}

	created, updated, err := upsertBatch(ctx, a.repo, books)
	if err != nil {
		errs = append(errs, err.Error())
	}
	return newSyncResult(a.Source(), created, updated, errs), nil
}
