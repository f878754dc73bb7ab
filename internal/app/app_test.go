package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
	"github.com/venatordev/venator/internal/services/status"
)

type fakeBrowser struct {
	handle       *interfaces.BrowserHandle
	acquireErr   error
	acquireCalls int
	terminated   bool
}

func (f *fakeBrowser) Acquire(ctx context.Context) (*interfaces.BrowserHandle, error) {
	f.acquireCalls++
	return f.handle, f.acquireErr
}
func (f *fakeBrowser) Release(handle *interfaces.BrowserHandle) {}
func (f *fakeBrowser) Terminate(ctx context.Context)            { f.terminated = true }
func (f *fakeBrowser) Alive(ctx context.Context) bool           { return f.handle != nil }
func (f *fakeBrowser) Status(ctx context.Context) models.ServiceStatus {
	return models.ServiceStatus{Running: true, BrowserAlive: f.handle != nil, Timestamp: time.Now()}
}

type fakeAuthService struct {
	state       models.AuthState
	err         error
	ensureCalls int
}

func (f *fakeAuthService) Classify(ctx context.Context, h *interfaces.BrowserHandle) (models.AuthState, error) {
	return f.state, f.err
}
func (f *fakeAuthService) EnsureAuthenticated(ctx context.Context, h *interfaces.BrowserHandle) (models.AuthState, error) {
	f.ensureCalls++
	return f.state, f.err
}
func (f *fakeAuthService) AwaitManualVerification(ctx context.Context, h *interfaces.BrowserHandle, timeout time.Duration) (models.AuthState, error) {
	return f.state, f.err
}

type fakeSearch struct {
	results map[string][]string // keyed by keywords
	errs    map[string]error    // per-keyword failures
}

func (f *fakeSearch) Search(ctx context.Context, h *interfaces.BrowserHandle, q models.SearchQuery) ([]string, error) {
	if err := f.errs[q.Keywords]; err != nil {
		return nil, err
	}
	return f.results[q.Keywords], nil
}

type fakeExtract struct {
	records    map[string]models.JobRecord
	extractErr error
	details    models.JobDetailResult
}

func (f *fakeExtract) ExtractJobs(ctx context.Context, h *interfaces.BrowserHandle, limit int) (map[string]models.JobRecord, error) {
	if f.extractErr != nil {
		return nil, f.extractErr
	}
	return f.records, nil
}
func (f *fakeExtract) ExtractJobDetails(ctx context.Context, h *interfaces.BrowserHandle, jobURL string) models.JobDetailResult {
	return f.details
}

type memoryJobStorage struct {
	jobs map[string]models.JobRecord
}

func (m *memoryJobStorage) SaveJob(ctx context.Context, job *models.JobRecord) error {
	m.jobs[job.ID] = *job
	return nil
}
func (m *memoryJobStorage) SaveJobs(ctx context.Context, jobs map[string]models.JobRecord) error {
	for id, job := range jobs {
		m.jobs[id] = job
	}
	return nil
}
func (m *memoryJobStorage) GetJob(ctx context.Context, id string) (*models.JobRecord, error) {
	job, ok := m.jobs[id]
	if !ok {
		return nil, errors.New("job not found")
	}
	return &job, nil
}
func (m *memoryJobStorage) ListJobs(ctx context.Context) ([]*models.JobRecord, error) {
	out := make([]*models.JobRecord, 0, len(m.jobs))
	for id := range m.jobs {
		job := m.jobs[id]
		out = append(out, &job)
	}
	return out, nil
}
func (m *memoryJobStorage) DeleteJob(ctx context.Context, id string) error {
	delete(m.jobs, id)
	return nil
}
func (m *memoryJobStorage) CountJobs(ctx context.Context) (int, error) {
	return len(m.jobs), nil
}

type memoryStorageManager struct {
	job *memoryJobStorage
}

func (m *memoryStorageManager) JobStorage() interfaces.JobStorage { return m.job }
func (m *memoryStorageManager) Close() error                      { return nil }

func newTestApp(t *testing.T) (*App, *fakeBrowser, *fakeSearch, *fakeExtract, *memoryJobStorage) {
	t.Helper()

	cfg := common.DefaultConfig()
	cfg.Browser.StateDir = t.TempDir()
	logger := arbor.NewLogger()

	browserSvc := &fakeBrowser{handle: &interfaces.BrowserHandle{Ctx: context.Background()}}
	searchSvc := &fakeSearch{results: map[string][]string{}, errs: map[string]error{}}
	extractSvc := &fakeExtract{records: map[string]models.JobRecord{}}
	store := &memoryJobStorage{jobs: map[string]models.JobRecord{}}

	a := &App{
		Config:         cfg,
		Logger:         logger,
		StorageManager: &memoryStorageManager{job: store},
		BrowserService: browserSvc,
		AuthService:    &fakeAuthService{state: models.AuthStateAuthenticated},
		SearchService:  searchSvc,
		ExtractService: extractSvc,
		StatusWriter:   status.NewWriter(cfg.Browser.StateDir, logger),
	}
	return a, browserSvc, searchSvc, extractSvc, store
}

func TestRunSearchMergesAndPersists(t *testing.T) {
	a, _, searchSvc, extractSvc, store := newTestApp(t)

	searchSvc.results["go"] = []string{"1", "2"}
	searchSvc.results["rust"] = []string{"2", "3"}
	extractSvc.records = map[string]models.JobRecord{
		"1": {ID: "1", Link: "https://www.linkedin.com/jobs/view/1/", Title: "Go Engineer"},
		"2": {ID: "2", Link: "https://www.linkedin.com/jobs/view/2/", Title: "Polyglot"},
		"3": {ID: "3", Link: "https://www.linkedin.com/jobs/view/3/", Title: "Rust Engineer"},
	}

	merged, err := a.RunSearch(context.Background(), []models.SearchQuery{
		{Keywords: "go"},
		{Keywords: "rust"},
	})
	require.NoError(t, err)

	assert.Len(t, merged, 3, "overlapping ids collapse across queries")
	assert.Equal(t, "Polyglot", merged["2"].Title)
	assert.Len(t, store.jobs, 3, "all merged records are persisted")
}

func TestRunSearchSynthesizesMissingRecords(t *testing.T) {
	a, _, searchSvc, extractSvc, _ := newTestApp(t)

	// The search saw two ids but the card parser only enriched one.
	searchSvc.results["go"] = []string{"10", "11"}
	extractSvc.records = map[string]models.JobRecord{
		"10": {ID: "10", Link: "https://www.linkedin.com/jobs/view/10/", Title: "Engineer"},
	}

	merged, err := a.RunSearch(context.Background(), []models.SearchQuery{{Keywords: "go"}})
	require.NoError(t, err)

	require.Contains(t, merged, "11")
	assert.Equal(t, "https://www.linkedin.com/jobs/view/11/", merged["11"].Link)
	assert.Empty(t, merged["11"].Title)
}

func TestRunSearchContinuesPastFailedQuery(t *testing.T) {
	a, _, searchSvc, extractSvc, store := newTestApp(t)

	searchSvc.errs["go"] = models.ErrSelectorFailure
	searchSvc.results["rust"] = []string{"3"}
	extractSvc.records = map[string]models.JobRecord{
		"3": {ID: "3", Link: "https://www.linkedin.com/jobs/view/3/", Title: "Rust Engineer"},
	}

	merged, err := a.RunSearch(context.Background(), []models.SearchQuery{
		{Keywords: "go"},
		{Keywords: "rust"},
	})
	require.NoError(t, err, "one failed query must not abort the run")

	assert.Len(t, merged, 1)
	assert.Equal(t, "Rust Engineer", merged["3"].Title)
	assert.Len(t, store.jobs, 1, "partial results are persisted")
}

func TestRunSearchAllQueriesFailed(t *testing.T) {
	a, _, searchSvc, _, store := newTestApp(t)
	searchSvc.errs["go"] = models.ErrSelectorFailure

	merged, err := a.RunSearch(context.Background(), []models.SearchQuery{{Keywords: "go"}})
	require.NoError(t, err, "query failures surface in logs, not as run errors")
	assert.Empty(t, merged)
	assert.Empty(t, store.jobs)
}

func TestRunSearchEnrichmentFailureKeepsBareIDs(t *testing.T) {
	a, _, searchSvc, extractSvc, store := newTestApp(t)

	searchSvc.results["go"] = []string{"7"}
	extractSvc.extractErr = errors.New("target closed")

	merged, err := a.RunSearch(context.Background(), []models.SearchQuery{{Keywords: "go"}})
	require.NoError(t, err)

	require.Contains(t, merged, "7")
	assert.Equal(t, "https://www.linkedin.com/jobs/view/7/", merged["7"].Link)
	assert.Empty(t, merged["7"].Title)
	assert.Len(t, store.jobs, 1, "ids survive a failed enrichment pass")
}

func TestRunSearchBrowserFailure(t *testing.T) {
	a, browserSvc, _, _, _ := newTestApp(t)
	browserSvc.handle = nil
	browserSvc.acquireErr = models.ErrLaunchFailed

	_, err := a.RunSearch(context.Background(), []models.SearchQuery{{Keywords: "go"}})
	assert.ErrorIs(t, err, models.ErrLaunchFailed)
}

func TestRunJobDetailPersistsOnSuccess(t *testing.T) {
	a, _, _, extractSvc, store := newTestApp(t)
	extractSvc.details = models.JobDetailResult{
		JobID:       "42",
		Link:        "https://www.linkedin.com/jobs/view/42/",
		Title:       "Staff Engineer",
		Company:     "Acme",
		Description: "Build things.",
		Success:     true,
	}

	result, err := a.RunJobDetail(context.Background(), "https://www.linkedin.com/jobs/view/42/")
	require.NoError(t, err)
	assert.True(t, result.Success)

	saved, err := store.GetJob(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, "Staff Engineer", saved.Title)
	assert.Equal(t, "Build things.", saved.Description)
}

func TestRunJobDetailRemovedJobNotPersisted(t *testing.T) {
	a, _, _, extractSvc, store := newTestApp(t)
	extractSvc.details = models.JobDetailResult{
		JobID:   "42",
		Success: false,
		Error:   "job no longer available",
	}

	result, err := a.RunJobDetail(context.Background(), "https://www.linkedin.com/jobs/view/42/")
	require.NoError(t, err, "a removed posting is a reportable outcome, not an error")
	assert.False(t, result.Success)
	assert.Empty(t, store.jobs)
}

func TestHealthCheckTracksSessionExpiry(t *testing.T) {
	a, browserSvc, _, _, _ := newTestApp(t)
	auth := a.AuthService.(*fakeAuthService)
	handle := browserSvc.handle

	a.healthCheck(context.Background(), handle)
	st, err := a.StatusWriter.Read()
	require.NoError(t, err)
	assert.True(t, st.Authenticated)
	assert.Equal(t, 1, auth.ensureCalls)

	// The session expires between ticks; the next check re-probes instead
	// of replaying the startup state.
	auth.state = models.AuthStateAnonymous
	auth.err = models.ErrLoginRejected

	a.healthCheck(context.Background(), handle)
	st, err = a.StatusWriter.Read()
	require.NoError(t, err)
	assert.False(t, st.Authenticated)
	assert.Equal(t, 2, auth.ensureCalls, "each tick re-authenticates")
}

func TestHealthCheckSkipsAuthWhenBrowserDead(t *testing.T) {
	a, browserSvc, _, _, _ := newTestApp(t)
	auth := a.AuthService.(*fakeAuthService)
	handle := browserSvc.handle
	browserSvc.handle = nil

	a.healthCheck(context.Background(), handle)

	st, err := a.StatusWriter.Read()
	require.NoError(t, err)
	assert.False(t, st.BrowserAlive)
	assert.False(t, st.Authenticated)
	assert.Equal(t, 0, auth.ensureCalls, "no login traffic against a dead browser")
}

func TestCurrentStatusPublishes(t *testing.T) {
	a, _, _, _, _ := newTestApp(t)

	st := a.CurrentStatus(context.Background())
	assert.True(t, st.Running)
	assert.True(t, st.BrowserAlive)
	assert.True(t, st.Authenticated)

	published, err := a.StatusWriter.Read()
	require.NoError(t, err)
	assert.True(t, published.BrowserAlive)
}
