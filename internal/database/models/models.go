package models

import (
	"time"

	"github.com/uptrace/bun"
)

// Source identifies which external API a book record came from.
type Source string

const (
	SourceNarou       Source = "NAROU"
	SourceGoogleBooks Source = "GOOGLE_BOOKS"
	SourceOpenLibrary Source = "OPEN_LIBRARY"
	SourceAozora      Source = "AOZORA"
	SourceCiNii       Source = "CINII"
)

// AllSources lists every known source in the fixed sync order.
var AllSources = []Source{
	SourceNarou,
	SourceGoogleBooks,
	SourceOpenLibrary,
	SourceAozora,
	SourceCiNii,
}

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	for _, known := range AllSources {
		if s == known {
			return true
		}
	}
	return false
}

// SyncStatus represents the state of a single sync log entry.
type SyncStatus string

const (
	SyncStatusRunning SyncStatus = "RUNNING"
	SyncStatusSuccess SyncStatus = "SUCCESS"
	SyncStatusPartial SyncStatus = "PARTIAL"
	SyncStatusFailed  SyncStatus = "FAILED"
)

// Book is the unified record every source's raw item is normalized into.
// The pair (source, source_id) is the sole identity key for upsert; ID is
// a store-local surrogate and is never used for cross-source identity.
type Book struct {
	bun.BaseModel `bun:"table:books,alias:b"`

	ID          int64          `bun:",pk,autoincrement" json:"id"`
	Source      Source         `bun:",notnull" json:"source"`
	SourceID    string         `bun:"source_id,notnull" json:"sourceId"`
	Title       string         `bun:",notnull" json:"title"`
	Author      string         `bun:",nullzero" json:"author,omitempty"`
	Description string         `bun:",nullzero" json:"description,omitempty"`
	URL         string         `bun:"url,nullzero" json:"url,omitempty"`
	Metadata    map[string]any `bun:"metadata,type:jsonb" json:"metadata,omitempty"`

	// EmbeddedAt marks when this book's vector was written to the vector
	// index. Nil means no embedding exists for the record.
	EmbeddedAt *time.Time `bun:",nullzero" json:"embeddedAt,omitempty"`

	CreatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"createdAt"`
	UpdatedAt time.Time `bun:",nullzero,notnull,default:current_timestamp" json:"updatedAt"`
}

// SyncLog is one audit row per adapter invocation per orchestration run.
// It is created in RUNNING state before the adapter executes and moved to a
// terminal state after, even when the adapter fails outright.
type SyncLog struct {
	bun.BaseModel `bun:"table:sync_logs,alias:sl"`

	ID        int64      `bun:",pk,autoincrement" json:"id"`
	Source    Source     `bun:",notnull" json:"source"`
	Status    SyncStatus `bun:",notnull" json:"status"`
	Created   int        `bun:",notnull,default:0" json:"created"`
	Updated   int        `bun:",notnull,default:0" json:"updated"`
	Errors    string     `bun:",nullzero" json:"errors,omitempty"`
	StartedAt time.Time  `bun:",notnull" json:"startedAt"`
	EndedAt   *time.Time `bun:",nullzero" json:"endedAt,omitempty"`
}
