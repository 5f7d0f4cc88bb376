package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/embedding"
	"github.com/Yuu0413s/book-recom-web/internal/search"
	syncpkg "github.com/Yuu0413s/book-recom-web/internal/sync"
)

const (
	// defaultBooksLimit applies when the listing caller omits limit.
	defaultBooksLimit = 200
	// maxBooksLimit caps one listing page.
	maxBooksLimit = 500
)

// SyncRunner triggers one full synchronization run.
type SyncRunner interface {
	SyncAll(ctx context.Context) (*syncpkg.FullSyncResult, error)
}

// Searcher ranks stored books against a free-text query.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Result, error)
}

// BackfillRunner embeds books that are missing a vector.
type BackfillRunner interface {
	Run(ctx context.Context) (embedding.BackfillResult, error)
}

// Server holds the dependencies for the HTTP API server
type Server struct {
	orchestrator SyncRunner
	books        database.BookRepository
	searcher     Searcher
	backfiller   BackfillRunner
	syncSecret   string
}

// NewServer initializes a new API server with the required dependencies
func NewServer(orchestrator SyncRunner, books database.BookRepository, searcher Searcher, backfiller BackfillRunner, syncSecret string) *Server {
	return &Server{
		orchestrator: orchestrator,
		books:        books,
		searcher:     searcher,
		backfiller:   backfiller,
		syncSecret:   syncSecret,
	}
}

// RegisterRoutes registers all API endpoints with a new ServeMux
func (s *Server) RegisterRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	// Go 1.22+ supports HTTP method routing directly in ServeMux
	mux.HandleFunc("GET /api/v1/sync", s.handleSync)
	mux.HandleFunc("GET /api/v1/books", s.handleBooks)
	mux.HandleFunc("GET /api/v1/search", s.handleSearch)
	mux.HandleFunc("POST /api/v1/embeddings/backfill", s.handleBackfill)

	return mux
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("[Server] Failed to encode response: %v", err)
	}
}

// handleSync triggers a full sync of every source. The endpoint is meant
// for a scheduler, so it authenticates with a shared bearer secret rather
// than user sessions.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	if s.syncSecret == "" {
		log.Printf("[Server] Sync triggered but no sync secret is configured")
		http.Error(w, "Sync secret is not configured", http.StatusInternalServerError)
		return
	}

	auth := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(auth, "Bearer ")
	if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(s.syncSecret)) != 1 {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	result, err := s.orchestrator.SyncAll(r.Context())
	if err != nil {
		if errors.Is(err, syncpkg.ErrSyncInProgress) {
			http.Error(w, "A sync is already in progress", http.StatusConflict)
			return
		}
		log.Printf("[Server] Sync run failed: %v", err)
		http.Error(w, "Sync failed", http.StatusInternalServerError)
		return
	}

	status := http.StatusOK
	message := "All sources synced successfully"
	if !result.Success {
		status = http.StatusMultiStatus
		message = "Some sources failed: " + strings.Join(result.FailedSources(), ", ")
	}

	writeJSON(w, status, map[string]any{
		"message":      message,
		"totalCreated": result.TotalCreated,
		"totalUpdated": result.TotalUpdated,
		"duration":     result.Duration.String(),
		"results":      result.Results,
	})
}

func (s *Server) handleBooks(w http.ResponseWriter, r *http.Request) {
	filter := database.ListFilter{Limit: defaultBooksLimit}

	if raw := r.URL.Query().Get("source"); raw != "" {
		src := models.Source(raw)
		if !src.Valid() {
			http.Error(w, "Unknown source: "+raw, http.StatusBadRequest)
			return
		}
		filter.Source = &src
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		if limit > maxBooksLimit {
			limit = maxBooksLimit
		}
		filter.Limit = limit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		offset, err := strconv.Atoi(raw)
		if err != nil || offset < 0 {
			http.Error(w, "Invalid offset", http.StatusBadRequest)
			return
		}
		filter.Offset = offset
	}

	books, err := s.books.List(r.Context(), filter)
	if err != nil {
		log.Printf("[Server] Failed to list books: %v", err)
		http.Error(w, "Failed to list books", http.StatusInternalServerError)
		return
	}
	total, err := s.books.Count(r.Context(), filter)
	if err != nil {
		log.Printf("[Server] Failed to count books: %v", err)
		http.Error(w, "Failed to list books", http.StatusInternalServerError)
		return
	}
	if books == nil {
		books = []*models.Book{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"books": books,
		"pagination": map[string]any{
			"total":   total,
			"limit":   filter.Limit,
			"offset":  filter.Offset,
			"hasMore": filter.Offset+len(books) < total,
		},
	})
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		http.Error(w, "Query parameter 'q' is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	results, err := s.searcher.Search(r.Context(), query, limit)
	if err != nil {
		log.Printf("[Server] Search failed for %q: %v", query, err)
		http.Error(w, "Search failed; check that the embedding provider and vector index are reachable", http.StatusInternalServerError)
		return
	}
	if results == nil {
		results = []search.Result{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"query":   query,
		"count":   len(results),
		"results": results,
	})
}

func (s *Server) handleBackfill(w http.ResponseWriter, r *http.Request) {
	result, err := s.backfiller.Run(r.Context())
	if err != nil {
		log.Printf("[Server] Embedding backfill failed: %v", err)
		http.Error(w, "Backfill failed", http.StatusInternalServerError)
		return
	}

	log.Printf("[Server] Backfill done: %d processed, %d failed of %d", result.Processed, result.Failed, result.Total)
	writeJSON(w, http.StatusOK, result)
}
