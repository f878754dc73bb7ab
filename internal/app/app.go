package app

import (
	"context"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
	"github.com/venatordev/venator/internal/services/auth"
	"github.com/venatordev/venator/internal/services/browser"
	"github.com/venatordev/venator/internal/services/extract"
	"github.com/venatordev/venator/internal/services/search"
	"github.com/venatordev/venator/internal/services/status"
	badgerstore "github.com/venatordev/venator/internal/storage/badger"
)

// App holds all application components and dependencies
type App struct {
	Config *common.Config
	Logger arbor.ILogger

	StorageManager interfaces.StorageManager
	BrowserService interfaces.BrowserService
	AuthService    interfaces.AuthService
	SearchService  interfaces.SearchService
	ExtractService interfaces.ExtractService
	StatusWriter   *status.Writer
	RateLimiter    *search.RateLimiter
}

// New initializes the application with all dependencies
func New(cfg *common.Config, logger arbor.ILogger) (*App, error) {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if err := os.MkdirAll(cfg.Browser.StateDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}

	storageManager, err := badgerstore.NewManager(logger, &cfg.Storage.Badger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	app.StorageManager = storageManager

	app.BrowserService = browser.NewSupervisor(cfg, logger)
	app.AuthService = auth.NewService(cfg, logger)
	app.RateLimiter = search.NewRateLimiter(&cfg.RateLimit, logger)
	app.SearchService = search.NewPipeline(cfg, logger, app.AuthService, app.RateLimiter)
	app.ExtractService = extract.NewExtractor(cfg, logger)
	app.StatusWriter = status.NewWriter(cfg.Browser.StateDir, logger)

	logger.Info().Msg("Application initialized")
	return app, nil
}

// RunSearch executes each query in turn against the shared browser, merges
// the extracted records across queries (later extractions win on duplicate
// ids), persists them, and returns the merged set. A failed query is logged
// and skipped; the run always persists and returns the partial results the
// surviving queries produced.
func (a *App) RunSearch(ctx context.Context, queries []models.SearchQuery) (map[string]models.JobRecord, error) {
	handle, err := a.BrowserService.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer a.BrowserService.Release(handle)

	merged := make(map[string]models.JobRecord)
	failed := 0
	for i, query := range queries {
		ids, err := a.SearchService.Search(ctx, handle, query)
		if err != nil {
			failed++
			a.Logger.Warn().Err(err).
				Int("query", i+1).
				Str("keywords", query.Keywords).
				Msg("Query failed, continuing with remaining queries")
			continue
		}
		if len(ids) == 0 {
			continue
		}

		limit := query.Limit
		if limit <= 0 {
			limit = a.Config.Search.ResultLimit
		}
		records, err := a.ExtractService.ExtractJobs(ctx, handle, limit)
		if err != nil {
			// The ids are already in hand; losing enrichment is no reason
			// to lose the records.
			a.Logger.Warn().Err(err).Int("query", i+1).Msg("Card enrichment failed, keeping bare ids")
			records = nil
		}

		// Keep only the ids the search actually returned, synthesizing a
		// minimal record for any id the card parser could not enrich.
		batch := make(map[string]models.JobRecord, len(ids))
		for _, id := range ids {
			if rec, ok := records[id]; ok {
				batch[id] = rec
			} else {
				batch[id] = models.JobRecord{ID: id, Link: extract.CanonicalLink(id)}
			}
		}
		merged = models.MergeJobRecords(merged, batch)
	}

	if len(merged) > 0 {
		if err := a.StorageManager.JobStorage().SaveJobs(ctx, merged); err != nil {
			return merged, fmt.Errorf("failed to persist jobs: %w", err)
		}
	}

	a.Logger.Info().
		Int("jobs", len(merged)).
		Int("queries", len(queries)).
		Int("failed", failed).
		Msg("Search run completed")
	return merged, nil
}

// RunJobDetail fetches one job's detail page, persists the result when the
// posting still exists, and returns it either way.
func (a *App) RunJobDetail(ctx context.Context, jobURL string) (models.JobDetailResult, error) {
	handle, err := a.BrowserService.Acquire(ctx)
	if err != nil {
		return models.JobDetailResult{}, err
	}
	defer a.BrowserService.Release(handle)

	if _, err := a.AuthService.EnsureAuthenticated(ctx, handle); err != nil {
		return models.JobDetailResult{}, err
	}

	result := a.ExtractService.ExtractJobDetails(ctx, handle, jobURL)
	if result.Success && result.JobID != "" {
		record := &models.JobRecord{
			ID:          result.JobID,
			Link:        result.Link,
			Title:       result.Title,
			Company:     result.Company,
			Description: result.Description,
		}
		if err := a.StorageManager.JobStorage().SaveJob(ctx, record); err != nil {
			a.Logger.Warn().Err(err).Str("job_id", result.JobID).Msg("Failed to persist job detail")
		}
	}
	return result, nil
}

// CurrentStatus probes the browser and, when it is reachable, classifies
// the session, then publishes and returns the combined status.
func (a *App) CurrentStatus(ctx context.Context) models.ServiceStatus {
	st := a.BrowserService.Status(ctx)

	if st.BrowserAlive {
		if handle, err := a.BrowserService.Acquire(ctx); err == nil {
			if state, err := a.AuthService.Classify(ctx, handle); err == nil {
				st.Authenticated = state.IsAuthenticated()
			}
			a.BrowserService.Release(handle)
		}
	}

	if err := a.StatusWriter.Write(st); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to publish status")
	}
	return st
}

// Shutdown closes storage. The browser process is left running on purpose;
// Terminate is a separate, explicit operation.
func (a *App) Shutdown() {
	if a.StorageManager != nil {
		if err := a.StorageManager.Close(); err != nil {
			a.Logger.Warn().Err(err).Msg("Failed to close storage")
		}
	}
}

// TerminateBrowser shuts the shared browser down and clears its registry.
func (a *App) TerminateBrowser(ctx context.Context) {
	a.BrowserService.Terminate(ctx)
	if err := a.StatusWriter.Clear(); err != nil {
		a.Logger.Warn().Err(err).Msg("Failed to clear status file")
	}
	a.Logger.Info().Msg("Browser terminated")
}
