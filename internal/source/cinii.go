package source

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/fetch"
	"github.com/Yuu0413s/book-recom-web/internal/ratelimit"
)

const (
	ciniiBaseURL = "https://ci.nii.ac.jp/books/opensearch/search"
	// 25 results x 4 keywords = 100 items per run.
	ciniiCount = 25
	ciniiDelay = 1 * time.Second
)

var ciniiKeywords = []string{"小説", "ファンタジー", "SF", "恋愛"}

// ncidPattern matches the NCID inside a CiNii identifier URL such as
// "https://ci.nii.ac.jp/ncid/BA01234567".
var ncidPattern = regexp.MustCompile(`(?i)ncid/([A-Z0-9]+)`)

type ciniiResponse struct {
	Graph []struct {
		Items []ciniiItem `json:"items"`
	} `json:"@graph"`
}

type ciniiItem struct {
	ID        string       `json:"@id"`
	Title     string       `json:"title"`
	Creator   stringOrList `json:"dc:creator"`
	Publisher stringOrList `json:"dc:publisher"`
}

// stringOrList absorbs JSON-LD fields that are a bare string for single
// values and an array for multiple values.
type stringOrList []string

func (s *stringOrList) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		if single == "" {
			*s = nil
		} else {
			*s = []string{single}
		}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

func (s stringOrList) Join() string {
	return strings.Join(s, ", ")
}

// CiNiiAdapter syncs a fixed keyword list from the CiNii Books opensearch
// API. The search endpoint never returns descriptions.
type CiNiiAdapter struct {
	client  *fetch.Client
	repo    database.BookRepository
	baseURL string
	limiter *ratelimit.Limiter
}

func NewCiNiiAdapter(client *fetch.Client, repo database.BookRepository) *CiNiiAdapter {
	return &CiNiiAdapter{
		client:  client,
		repo:    repo,
		baseURL: ciniiBaseURL,
		limiter: ratelimit.NewInterval("CiNii", ciniiDelay),
	}
}

func (a *CiNiiAdapter) Source() models.Source {
	return models.SourceCiNii
}

func (a *CiNiiAdapter) Fetch(ctx context.Context, keyword string) (*ciniiResponse, error) {
	reqURL := fmt.Sprintf("%s?q=%s&format=json&count=%d", a.baseURL, url.QueryEscape(keyword), ciniiCount)

	var resp ciniiResponse
	if err := a.client.GetJSON(ctx, reqURL, &resp, fetch.Options{}); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (a *CiNiiAdapter) Sync(ctx context.Context) (SyncResult, error) {
	var (
		created, updated int
		errs             []string
	)

	for _, keyword := range ciniiKeywords {
		if err := a.limiter.Wait(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("keyword %q: %v", keyword, err))
			break
		}

		resp, err := a.Fetch(ctx, keyword)
		if err != nil {
			errs = append(errs, fmt.Sprintf("keyword %q: %v", keyword, err))
			continue
		}

		var items []ciniiItem
		if len(resp.Graph) > 0 {
			items = resp.Graph[0].Items
		}

		books := make([]*models.Book, 0, len(items))
		for _, item := range items {
			sourceID := extractNCID(item.ID)
			if sourceID == item.ID {
				// Identifier did not match the expected ncid pattern; the
				// raw URL still keys the record uniquely, but flag it so
				// malformed upstream data stays visible.
				log.Printf("[CiNii] identifier %q has no NCID, using raw URL as source id", item.ID)
			}

			metadata := map[string]any{"keyword": keyword}
			if publisher := item.Publisher.Join(); publisher != "" {
				metadata["publisher"] = publisher
			}

			books = append(books, &models.Book{
				Source:   models.SourceCiNii,
				SourceID: sourceID,
				Title:    item.Title,
				Author:   item.Creator.Join(),
				URL:      item.ID,
				Metadata: metadata,
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

// extractNCID pulls the NCID out of a CiNii identifier URL, falling back to
// the raw identifier when the pattern does not match.
func extractNCID(id string) string {
	if m := ncidPattern.FindStringSubmatch(id); m != nil {
		return m[1]
	}
	return id
}
