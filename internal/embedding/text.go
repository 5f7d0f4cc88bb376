package embedding

import (
	"strings"

	"github.com/Yuu0413s/book-recom-web/internal/database/models"
)

// BuildBookText renders the canonical embedding text for a book: non-empty
// fields in the fixed order title, author, description, one labeled line
// each. Index-time and query-time embeddings must both go through this
// exact form to stay comparable.
func BuildBookText(book *models.Book) string {
	parts := []string{"タイトル: " + book.Title}
	if book.Author != "" {
		parts = append(parts, "著者: "+book.Author)
	}
	if book.Description != "" {
		parts = append(parts, "概要: "+book.Description)
	}
	return strings.Join(parts, "\n")
}
