package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
)

// Extractor turns live pages into job records. The browser's only role is
// producing a DOM snapshot; everything after that is pure parsing, which is
// what keeps the field logic testable against fixture HTML.
type Extractor struct {
	config *common.Config
	logger arbor.ILogger

	// Seams for tests; production code never overrides these.
	snapshot func(ctx context.Context, handle *interfaces.BrowserHandle) (string, error)
	navigate func(ctx context.Context, handle *interfaces.BrowserHandle, url string) error
}

// NewExtractor creates an extraction engine.
func NewExtractor(config *common.Config, logger arbor.ILogger) *Extractor {
	e := &Extractor{
		config: config,
		logger: logger,
	}
	e.snapshot = e.snapshotPage
	e.navigate = e.navigatePage
	return e
}

// ExtractJobs snapshots the current result page and returns the job records
// visible on it, keyed by id and capped at limit.
func (e *Extractor) ExtractJobs(ctx context.Context, handle *interfaces.BrowserHandle, limit int) (map[string]models.JobRecord, error) {
	html, err := e.snapshot(ctx, handle)
	if err != nil {
		return nil, fmt.Errorf("result page snapshot failed: %w", err)
	}

	jobs, err := ExtractCards(html, limit)
	if err != nil {
		return nil, err
	}

	e.logger.Debug().Int("count", len(jobs)).Msg("Extracted job cards")
	return jobs, nil
}

// ExtractJobDetails loads one job's detail page and extracts its fields,
// converting the description to markdown. A removed or unknown job is a
// valid outcome, reported through the result rather than an error.
func (e *Extractor) ExtractJobDetails(ctx context.Context, handle *interfaces.BrowserHandle, jobURL string) models.JobDetailResult {
	result := models.JobDetailResult{Link: jobURL}

	if m := jobIDPattern.FindStringSubmatch(jobURL); m != nil {
		result.JobID = m[1]
		result.Link = CanonicalLink(m[1])
	}

	if err := e.navigate(ctx, handle, result.Link); err != nil {
		result.Error = fmt.Sprintf("navigation failed: %v", err)
		return result
	}

	html, err := e.snapshot(ctx, handle)
	if err != nil {
		result.Error = fmt.Sprintf("detail page snapshot failed: %v", err)
		return result
	}

	if isJobNotFound(html) {
		result.Error = "job no longer available"
		e.logger.Info().Str("job_id", result.JobID).Msg("Job posting removed")
		return result
	}

	title, company, descriptionHTML, err := extractDetailFields(html)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	result.Title = title
	result.Company = company

	if descriptionHTML != "" {
		converter := md.NewConverter("", true, nil)
		markdown, err := converter.ConvertString(descriptionHTML)
		if err != nil {
			e.logger.Warn().Err(err).Str("job_id", result.JobID).Msg("Markdown conversion failed, keeping raw text")
			markdown = cleanText(descriptionHTML)
		}
		result.Description = strings.TrimSpace(markdown)
	}

	result.Success = result.Title != "" || result.Description != ""
	if !result.Success {
		result.Error = "no recognizable fields on detail page"
	}
	return result
}

func (e *Extractor) snapshotPage(ctx context.Context, handle *interfaces.BrowserHandle) (string, error) {
	snapCtx, cancel := context.WithTimeout(handle.Ctx, e.config.Browser.NavigationTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(snapCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (e *Extractor) navigatePage(ctx context.Context, handle *interfaces.BrowserHandle, url string) error {
	navCtx, cancel := context.WithTimeout(handle.Ctx, e.config.Browser.NavigationTimeout)
	defer cancel()

	return chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
	)
}
