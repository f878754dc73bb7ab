package interfaces

import (
	"context"

	"github.com/venatordev/venator/internal/models"
)

// SearchService builds a query against the target site, triggers
// progressive content loading, and returns result ids in first-seen order.
type SearchService interface {
	Search(ctx context.Context, handle *BrowserHandle, query models.SearchQuery) ([]string, error)
}

// ExtractService converts the loaded DOM into keyed job records.
type ExtractService interface {
	// ExtractJobs snapshots the current result page and recovers one record
	// per card through the fallback strategy chain. Cards yielding no
	// identifier are omitted, never fatal.
	ExtractJobs(ctx context.Context, handle *BrowserHandle, limit int) (map[string]models.JobRecord, error)

	// ExtractJobDetails loads one job page and extracts the full record,
	// short-circuiting with Success=false when the posting is gone.
	ExtractJobDetails(ctx context.Context, handle *BrowserHandle, jobURL string) models.JobDetailResult
}
