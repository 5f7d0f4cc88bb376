package sync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/Yuu0413s/book-recom-web/internal/database"
	"github.com/Yuu0413s/book-recom-web/internal/database/models"
	"github.com/Yuu0413s/book-recom-web/internal/source"
)

// ErrSyncInProgress is returned when a trigger arrives while a run is
// already executing. The store's unique constraint would keep the data
// consistent anyway, but interleaved runs would garble the audit log.
var ErrSyncInProgress = errors.New("sync already in progress")

// FullSyncResult aggregates one orchestration run across every adapter.
type FullSyncResult struct {
	Success      bool                `json:"success"`
	Results      []source.SyncResult `json:"results"`
	TotalCreated int                 `json:"totalCreated"`
	TotalUpdated int                 `json:"totalUpdated"`
	Duration     time.Duration       `json:"duration"`
}

// FailedSources lists the names of sources that did not fully succeed.
func (r *FullSyncResult) FailedSources() []string {
	var failed []string
	for _, res := range r.Results {
		if !res.Success {
			failed = append(failed, string(res.Source))
		}
	}
	return failed
}

// Orchestrator runs every adapter sequentially, isolating failures per
// source and recording a RUNNING→terminal audit pair for each invocation.
// Adapters run one at a time: the five upstream APIs are rate limited
// independently and the sync log must stay causally ordered.
type Orchestrator struct {
	adapters []source.Adapter
	logs     database.SyncLogRepository
	mu       sync.Mutex
}

func NewOrchestrator(adapters []source.Adapter, logs database.SyncLogRepository) *Orchestrator {
	return &Orchestrator{adapters: adapters, logs: logs}
}

// SyncAll runs every adapter in order. One adapter's failure never stops
// the rest; it is converted into a synthetic failed SyncResult instead.
func (o *Orchestrator) SyncAll(ctx context.Context) (*FullSyncResult, error) {
	if !o.mu.TryLock() {
		return nil, ErrSyncInProgress
	}
	defer o.mu.Unlock()

	start := time.Now()
	results := make([]source.SyncResult, 0, len(o.adapters))

	for _, adapter := range o.adapters {
		src := adapter.Source()

		entry := &models.SyncLog{
			Source:    src,
			Status:    models.SyncStatusRunning,
			StartedAt: time.Now(),
		}
		if _, err := o.logs.CreateEntry(ctx, entry); err != nil {
			// The audit trail is the point of the log; losing it is worth
			// surfacing, but it must not block the actual sync.
			log.Printf("[Sync] Failed to create log entry for %s: %v", src, err)
		}

		result, err := runAdapter(ctx, adapter)
		if err != nil {
			log.Printf("[Sync] %s failed: %v", src, err)
			result = source.SyncResult{
				Source:  src,
				Success: false,
				Message: err.Error(),
				Errors:  []string{err.Error()},
			}
			o.finalizeEntry(ctx, entry, models.SyncStatusFailed, result)
		} else {
			status := models.SyncStatusSuccess
			if !result.Success {
				status = models.SyncStatusPartial
			}
			o.finalizeEntry(ctx, entry, status, result)
			log.Printf("[Sync] %s: %s", src, result.Message)
		}

		results = append(results, result)
	}

	full := &FullSyncResult{
		Success:  true,
		Results:  results,
		Duration: time.Since(start),
	}
	for _, res := range results {
		full.TotalCreated += res.Created
		full.TotalUpdated += res.Updated
		if !res.Success {
			full.Success = false
		}
	}
	return full, nil
}

// runAdapter invokes one adapter, converting a panic into a plain error so
// a broken adapter cannot take down the remaining sources.
func runAdapter(ctx context.Context, adapter source.Adapter) (result source.SyncResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return adapter.Sync(ctx)
}

func (o *Orchestrator) finalizeEntry(ctx context.Context, entry *models.SyncLog, status models.SyncStatus, result source.SyncResult) {
	if entry.ID == 0 {
		return
	}
	now := time.Now()
	entry.Status = status
	entry.Created = result.Created
	entry.Updated = result.Updated
	entry.Errors = strings.Join(result.Errors, "\n")
	entry.EndedAt = &now
	if err := o.logs.UpdateEntry(ctx, entry); err != nil {
		log.Printf("[Sync] Failed to finalize log entry for %s: %v", entry.Source, err)
	}
}
