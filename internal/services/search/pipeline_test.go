package search

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
)

type fakeAuth struct {
	ensureCalls int
	state       models.AuthState
	err         error
}

func (f *fakeAuth) Classify(ctx context.Context, handle *interfaces.BrowserHandle) (models.AuthState, error) {
	return f.state, f.err
}

func (f *fakeAuth) EnsureAuthenticated(ctx context.Context, handle *interfaces.BrowserHandle) (models.AuthState, error) {
	f.ensureCalls++
	return f.state, f.err
}

func (f *fakeAuth) AwaitManualVerification(ctx context.Context, handle *interfaces.BrowserHandle, timeout time.Duration) (models.AuthState, error) {
	return f.state, f.err
}

// pipelineHarness scripts the page: which ids each collection cycle sees,
// whether the no-results banner or the login wall is present, and where
// navigations land.
type pipelineHarness struct {
	p    *Pipeline
	auth *fakeAuth

	batches      [][]string // ids visible at each collect cycle; last repeats
	collectCalls int
	scrollCalls  int
	noResults    bool
	loginWall    bool
	landings     []string // per-navigation landing URLs; last repeats
	navCount     int
	navURLs      []string
}

func newPipelineHarness(t *testing.T) *pipelineHarness {
	t.Helper()

	config := common.DefaultConfig()
	config.RateLimit = common.RateLimitConfig{} // no pacing in tests
	config.Search.ScrollDelayMin = 0
	config.Search.ScrollDelayMax = 0

	h := &pipelineHarness{
		auth:     &fakeAuth{state: models.AuthStateAuthenticated},
		landings: []string{"https://www.linkedin.com/jobs/search/?keywords=x"},
	}

	logger := arbor.NewLogger()
	p := NewPipeline(config, logger, h.auth, NewRateLimiter(&config.RateLimit, logger))
	p.navigate = func(ctx context.Context, handle *interfaces.BrowserHandle, url string) (string, error) {
		h.navURLs = append(h.navURLs, url)
		idx := h.navCount
		if idx >= len(h.landings) {
			idx = len(h.landings) - 1
		}
		h.navCount++
		return h.landings[idx], nil
	}
	p.evaluate = func(ctx context.Context, handle *interfaces.BrowserHandle, js string, out interface{}) error {
		switch js {
		case collectJobIDsJS:
			idx := h.collectCalls
			if idx >= len(h.batches) {
				idx = len(h.batches) - 1
			}
			h.collectCalls++
			batch := []string{}
			if len(h.batches) > 0 {
				batch = h.batches[idx]
			}
			*out.(*[]string) = append([]string(nil), batch...)
		case scrollToBottomJS:
			h.scrollCalls++
		case noResultsProbeJS:
			*out.(*bool) = h.noResults
		case loginWallProbeJS:
			*out.(*bool) = h.loginWall
		}
		return nil
	}
	p.sleep = func(ctx context.Context, d time.Duration) error { return nil }

	h.p = p
	return h
}

func testHandle() *interfaces.BrowserHandle {
	return &interfaces.BrowserHandle{Ctx: context.Background()}
}

func ids(n int, offset int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('0'+(offset+i)/10)) + string(rune('0'+(offset+i)%10))
	}
	return out
}

func TestSearchCapsAtLimit(t *testing.T) {
	h := newPipelineHarness(t)

	// Three cycles grow the list to 30 visible cards; the default limit is 25.
	h.batches = [][]string{ids(10, 0), ids(20, 0), ids(30, 0)}

	got, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "x"})
	require.NoError(t, err)
	assert.Len(t, got, 25)
	assert.Equal(t, ids(25, 0), got, "first-seen order, truncated at the cap")
}

func TestSearchPreservesFirstSeenOrder(t *testing.T) {
	h := newPipelineHarness(t)

	// Later cycles re-report earlier ids; the order of first sighting wins.
	h.batches = [][]string{
		{"30", "10", "20"},
		{"10", "30", "20", "40"},
	}

	got, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "x", Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"30", "10", "20", "40"}, got)
}

func TestSearchStopsAfterStallCycles(t *testing.T) {
	h := newPipelineHarness(t)
	h.p.config.Search.StallCycles = 3

	// The list never grows past 5 and never reaches the limit.
	h.batches = [][]string{ids(5, 0)}

	got, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "x", Limit: 25})
	require.NoError(t, err)
	assert.Len(t, got, 5)

	// Cycle 0 populates; cycles 1-3 are growthless. Well short of the ceiling.
	assert.Equal(t, 4, h.collectCalls)
	assert.Less(t, h.collectCalls, h.p.config.Search.MaxScrollCycles)
}

func TestSearchStallCounterResetsOnGrowth(t *testing.T) {
	h := newPipelineHarness(t)
	h.p.config.Search.StallCycles = 2

	h.batches = [][]string{
		ids(3, 0),
		ids(3, 0), // stall 1
		ids(6, 0), // growth resets the counter
		ids(6, 0), // stall 1
		ids(6, 0), // stall 2, stop
	}

	got, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "x", Limit: 25})
	require.NoError(t, err)
	assert.Len(t, got, 6)
	assert.Equal(t, 5, h.collectCalls)
}

func TestSearchCycleCeiling(t *testing.T) {
	h := newPipelineHarness(t)
	h.p.config.Search.MaxScrollCycles = 5
	h.p.config.Search.StallCycles = 100 // never triggers

	// One new id per cycle keeps the stall counter at zero forever.
	h.batches = [][]string{ids(1, 0), ids(2, 0), ids(3, 0), ids(4, 0), ids(5, 0), ids(6, 0)}

	got, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "x", Limit: 25})
	require.NoError(t, err)
	assert.Equal(t, 5, h.collectCalls, "collection must stop at the ceiling")
	assert.Len(t, got, 5)
}

func TestSearchNoMatchesIsNotAnError(t *testing.T) {
	h := newPipelineHarness(t)
	h.batches = [][]string{{}}
	h.noResults = true

	got, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "unobtainium"})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestSearchSelectorFailure(t *testing.T) {
	h := newPipelineHarness(t)
	h.batches = [][]string{{}}
	h.noResults = false // page loaded, no banner, no cards

	_, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "x"})
	assert.ErrorIs(t, err, models.ErrSelectorFailure)
}

func TestSearchRecoversFromLoginWall(t *testing.T) {
	h := newPipelineHarness(t)
	h.landings = []string{
		"https://www.linkedin.com/authwall?sessionRedirect=x",
		"https://www.linkedin.com/jobs/search/?keywords=x",
	}
	h.batches = [][]string{ids(5, 0)}

	got, err := h.p.Search(context.Background(), testHandle(), models.SearchQuery{Keywords: "x", Limit: 5})
	require.NoError(t, err)
	assert.Len(t, got, 5)
	assert.Equal(t, 1, h.auth.ensureCalls)
	assert.Equal(t, 2, h.navCount, "search page is re-requested after authentication")
}

func TestSearchResolvesGeoID(t *testing.T) {
	h := newPipelineHarness(t)
	h.batches = [][]string{ids(1, 0)}

	query := models.SearchQuery{Keywords: "x", Location: "Australia", Limit: 1}
	_, err := h.p.Search(context.Background(), testHandle(), query)
	require.NoError(t, err)

	require.NotEmpty(t, h.navURLs)
	assert.Contains(t, h.navURLs[0], "geoId=101452733")
}

func TestSearchAppliesConfiguredDefaults(t *testing.T) {
	h := newPipelineHarness(t)
	h.batches = [][]string{ids(30, 0)}

	query := models.SearchQuery{Keywords: "x"} // no limit, no distance
	got, err := h.p.Search(context.Background(), testHandle(), query)
	require.NoError(t, err)

	assert.Len(t, got, 25, "config result limit applies when the query has none")
	assert.Contains(t, h.navURLs[0], "distance=120")
}
