package extract

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
)

// extractorHarness serves a scripted snapshot instead of a live page.
type extractorHarness struct {
	e *Extractor

	html    string
	snapErr error
	navErr  error
	navURLs []string
}

func newExtractorHarness(t *testing.T, html string) *extractorHarness {
	t.Helper()

	h := &extractorHarness{html: html}

	e := NewExtractor(common.DefaultConfig(), arbor.NewLogger())
	e.snapshot = func(ctx context.Context, handle *interfaces.BrowserHandle) (string, error) {
		return h.html, h.snapErr
	}
	e.navigate = func(ctx context.Context, handle *interfaces.BrowserHandle, url string) error {
		h.navURLs = append(h.navURLs, url)
		return h.navErr
	}

	h.e = e
	return h
}

func testHandle() *interfaces.BrowserHandle {
	return &interfaces.BrowserHandle{Ctx: context.Background()}
}

func TestExtractJobsFromSnapshot(t *testing.T) {
	h := newExtractorHarness(t, legacyCardsHTML)

	jobs, err := h.e.ExtractJobs(context.Background(), testHandle(), 25)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "Data Engineer", jobs["5001"].Title)
}

func TestExtractJobsSnapshotFailure(t *testing.T) {
	h := newExtractorHarness(t, "")
	h.snapErr = errors.New("target closed")

	_, err := h.e.ExtractJobs(context.Background(), testHandle(), 25)
	assert.Error(t, err)
}

const detailPageHTML = `<html><body>
  <h1 class="top-card-layout__title">Staff Engineer</h1>
  <a class="topcard__org-name-link" href="/company/acme">Acme Corp</a>
  <div class="show-more-less-html__markup">
    <p>Build <strong>things</strong> that last.</p>
    <ul><li>Go</li><li>Chrome DevTools</li></ul>
  </div>
</body></html>`

func TestExtractJobDetails(t *testing.T) {
	h := newExtractorHarness(t, detailPageHTML)

	result := h.e.ExtractJobDetails(context.Background(), testHandle(),
		"https://www.linkedin.com/jobs/view/4012345678/?refId=abc&trackingId=def")

	assert.True(t, result.Success)
	assert.Empty(t, result.Error)
	assert.Equal(t, "4012345678", result.JobID)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/4012345678/", result.Link)
	assert.Equal(t, "Staff Engineer", result.Title)
	assert.Equal(t, "Acme Corp", result.Company)

	// The description comes back as markdown, not HTML.
	assert.Contains(t, result.Description, "**things**")
	assert.Contains(t, result.Description, "- Go")
	assert.NotContains(t, result.Description, "<p>")

	// Navigation went to the canonical URL, not the decorated input.
	require.Len(t, h.navURLs, 1)
	assert.Equal(t, "https://www.linkedin.com/jobs/view/4012345678/", h.navURLs[0])
}

func TestExtractJobDetailsNotFound(t *testing.T) {
	h := newExtractorHarness(t,
		`<html><body><h1>This job is no longer available</h1></body></html>`)

	result := h.e.ExtractJobDetails(context.Background(), testHandle(),
		"https://www.linkedin.com/jobs/view/1/")

	assert.False(t, result.Success)
	assert.Equal(t, "job no longer available", result.Error)
	assert.Equal(t, "1", result.JobID)
}

func TestExtractJobDetailsNavigationFailure(t *testing.T) {
	h := newExtractorHarness(t, detailPageHTML)
	h.navErr = errors.New("net::ERR_CONNECTION_REFUSED")

	result := h.e.ExtractJobDetails(context.Background(), testHandle(),
		"https://www.linkedin.com/jobs/view/1/")

	assert.False(t, result.Success)
	assert.Contains(t, result.Error, "navigation failed")
}

func TestExtractJobDetailsUnrecognizedPage(t *testing.T) {
	h := newExtractorHarness(t, `<html><body><div id="app"></div></body></html>`)

	result := h.e.ExtractJobDetails(context.Background(), testHandle(),
		"https://www.linkedin.com/jobs/view/1/")

	assert.False(t, result.Success)
	assert.Equal(t, "no recognizable fields on detail page", result.Error)
}
