package source

import (
	"context"
	"encoding/json"
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
	aozoraBaseURL  = "https://api.bungomail.com/v0/books"
	aozoraPageSize = 50
	// 50 items x 4 pages = at most 200 items per run, bounding run time.
	aozoraMaxPages = 4
	aozoraDelay    = 500 * time.Millisecond
)

type aozoraResponse struct {
	Books []aozoraBook `json:"books"`
	Links struct {
		Next string `json:"next"`
	} `json:"links"`
}

// aozoraBook mirrors the ZORAPI field names, which are Japanese.
type aozoraBook struct {
	WorkID       json.Number `json:"作品ID"`
	Title        string      `json:"作品名"`
	TitleReading string      `json:"作品名読み"`
	FamilyName   string      `json:"姓"`
	GivenName    string      `json:"名"`
	Opening      string      `json:"書き出し"`
	CardURL      string      `json:"図書カードURL"`
	AccessCount  int         `json:"累計アクセス数"`
}

// AozoraAdapter syncs from the 青空文庫 ZORAPI with cursor-based pagination
// via the `after` token, capped at aozoraMaxPages pages per run.
type AozoraAdapter struct {
	client  *fetch.Client
	repo    database.BookRepository
	baseURL string
	limiter *ratelimit.Limiter
}

func NewAozoraAdapter(client *fetch.Client, repo database.BookRepository) *AozoraAdapter {
	return &AozoraAdapter{
		client:  client,
		repo:    repo,
		baseURL: aozoraBaseURL,
		limiter: ratelimit.NewInterval("Aozora", aozoraDelay),
	}
}

func (a *AozoraAdapter) Source() models.Source {
	return models.SourceAozora
}

func (a *AozoraAdapter) Fetch(ctx context.Context, after string) (*aozoraResponse, error) {
	reqURL := fmt.Sprintf("%s?limit=%d", a.baseURL, aozoraPageSize)
	if after != "" {
		reqURL += "&after=" + url.QueryEscape(after)
	}

	var resp aozoraResponse
	if err := a.client.GetJSON(ctx, reqURL, &resp, fetch.Options{}); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *AozoraAdapter) Sync(ctx context.Context) (SyncResult, error) {
	var (
		created, updated int
		errs             []string
		after            string
	)

	for page := 0; page < aozoraMaxPages; page++ {
		if err := a.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("page %d: %v", page+1, err))
			break
		}

		resp, err := a.Fetch(ctx, after)
		if err != nil {
			errs = append(errs, fmt.Sprintf("page %d: %v", page+1, err))
			break
		}

		books := make([]*models.Book, 0, len(resp.Books))
		for _, item := range resp.Books {
			workID := item.WorkID.String()

			var nameParts []string
			if item.FamilyName != "" {
				nameParts = append(nameParts, item.FamilyName)
			}
			if item.GivenName != "" {
				nameParts = append(nameParts, item.GivenName)
			}

			cardURL := item.CardURL
			if cardURL == "" {
				cardURL = fmt.Sprintf("https://www.aozora.gr.jp/cards/%s/", workID)
			}

			books = append(books, &models.Book{
				Source:      models.SourceAozora,
				SourceID:    workID,
				Title:       item.Title,
				Author:      strings.Join(nameParts, " "),
				Description: item.Opening,
				URL:         cardURL,
				Metadata: map[string]any{
					"titleReading": item.TitleReading,
					"accessCount":  item.AccessCount,
				},
			})
		}

		c, u, err := upsertBatch(ctx, a.repo, books)
		created += c
		updated += u
		if err != nil {
			errs = append(errs, fmt.Sprintf("page %d: %v", page+1, err))
			break
		}

		// Stop early when the API reports no next page.
		next := nextAozoraCursor(resp.Links.Next)
		if next == "" {
			break
		}
		after = next
	}

	return newSyncResult(a.Source(), created, updated, errs), nil
}

// nextAozoraCursor extracts the `after` token from the next-page link, which
// may be absolute or relative. An unparsable or missing link ends pagination.
func nextAozoraCursor(next string) string {
	if next == "" {
		return ""
	}
	u, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return u.Query().Get("after")
}
