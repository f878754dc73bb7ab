package search

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/google/uuid"
	"github.com/ternarybob/arbor"
	"github.com/venatordev/venator/internal/common"
	"github.com/venatordev/venator/internal/interfaces"
	"github.com/venatordev/venator/internal/models"
)

// collectJobIDsJS gathers job ids from the result list in DOM order. Card
// detection tries the current markup first and falls back through older
// layouts; id resolution tries the card attribute, then the nearest
// annotated ancestor, then the view-link href. The fallback chains are what
// keep searches working across the site's layout experiments.
const collectJobIDsJS = `
(() => {
	const seen = new Set();
	const ids = [];
	const push = (id) => {
		if (id && /^\d+$/.test(id) && !seen.has(id)) {
			seen.add(id);
			ids.push(id);
		}
	};
	const idFromCard = (card) => {
		let id = card.getAttribute('data-job-id');
		if (!id) {
			const ancestor = card.closest('[data-job-id]');
			if (ancestor) id = ancestor.getAttribute('data-job-id');
		}
		if (!id) {
			const link = card.matches('a[href*="/jobs/view/"]')
				? card
				: card.querySelector('a[href*="/jobs/view/"]');
			if (link) {
				const m = link.href.match(/\/jobs\/view\/(\d+)/);
				if (m) id = m[1];
			}
		}
		push(id);
	};
	const cardSelectors = [
		'[data-view-name="job-card"]',
		'.base-card',
		'.jobs-search-results__list-item',
	];
	for (const sel of cardSelectors) {
		const cards = document.querySelectorAll(sel);
		if (cards.length) {
			cards.forEach(idFromCard);
			return ids;
		}
	}
	document.querySelectorAll('a[href*="/jobs/view/"]').forEach((link) => {
		const m = link.href.match(/\/jobs\/view\/(\d+)/);
		if (m) push(m[1]);
	});
	return ids;
})()
`

// noResultsProbeJS distinguishes a genuinely empty result set from a layout
// change: the site shows an explicit banner when nothing matched.
const noResultsProbeJS = `
(() => {
	if (document.querySelector('.jobs-search-no-results-banner')) return true;
	const text = document.body ? document.body.innerText.toLowerCase() : '';
	return text.includes('no matching jobs found')
		|| text.includes("didn't find a match")
		|| text.includes('try a different search');
})()
`

// loginWallProbeJS detects the anonymous-visitor overlay on the search page.
const loginWallProbeJS = `
(() => {
	return document.querySelector('.authwall-sign-in-form, form.join-form, a[data-tracking-control-name*="auth-wall"]') !== null;
})()
`

const scrollToBottomJS = `window.scrollTo(0, document.body.scrollHeight)`

// Pipeline runs a job search end to end: pacing, navigation, login-wall
// recovery, incremental scroll collection, and empty-result diagnosis.
type Pipeline struct {
	config  *common.Config
	logger  arbor.ILogger
	auth    interfaces.AuthService
	limiter *RateLimiter

	// Seams for tests; production code never overrides these.
	navigate func(ctx context.Context, handle *interfaces.BrowserHandle, url string) (string, error)
	evaluate func(ctx context.Context, handle *interfaces.BrowserHandle, js string, out interface{}) error
	sleep    func(ctx context.Context, d time.Duration) error
	rng      *rand.Rand
}

// NewPipeline creates a search pipeline.
func NewPipeline(config *common.Config, logger arbor.ILogger, authService interfaces.AuthService, limiter *RateLimiter) *Pipeline {
	p := &Pipeline{
		config:  config,
		logger:  logger,
		auth:    authService,
		limiter: limiter,
		sleep:   sleepCtx,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	p.navigate = p.navigateAndLocate
	p.evaluate = p.evaluateInPage
	return p
}

// Search runs one query and returns the job ids found, in the order the
// result list presented them, capped at the query's limit. The query is
// taken by value; defaults fill a private copy.
func (p *Pipeline) Search(ctx context.Context, handle *interfaces.BrowserHandle, query models.SearchQuery) ([]string, error) {
	runID := uuid.New().String()[:8]
	log := p.logger.WithCorrelationId(runID)

	if err := p.limiter.AcquireSlot(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait aborted: %w", err)
	}

	if query.GeoID == "" && query.Location != "" {
		if id, ok := ResolveGeoID(query.Location); ok {
			query.GeoID = id
		}
	}
	if query.Limit <= 0 {
		query.Limit = p.config.Search.ResultLimit
	}
	if query.Distance <= 0 {
		query.Distance = p.config.Search.Distance
	}

	searchURL := BuildQuery(&query)
	log.Info().Str("keywords", query.Keywords).Str("location", query.Location).Int("limit", query.Limit).Msg("Starting search")

	landed, err := p.navigate(ctx, handle, searchURL)
	if err != nil {
		return nil, fmt.Errorf("search navigation failed: %w", err)
	}

	walled, err := p.hitLoginWall(ctx, handle, landed)
	if err != nil {
		return nil, err
	}
	if walled {
		log.Info().Msg("Login wall on search page, authenticating")
		if _, err := p.auth.EnsureAuthenticated(ctx, handle); err != nil {
			return nil, err
		}
		if _, err := p.navigate(ctx, handle, searchURL); err != nil {
			return nil, fmt.Errorf("post-login navigation failed: %w", err)
		}
	}

	ids, err := p.collectWithScroll(ctx, handle, query.Limit, log)
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return nil, p.diagnoseEmpty(ctx, handle, log)
	}

	log.Info().Int("count", len(ids)).Msg("Search completed")
	return ids, nil
}

// hitLoginWall reports whether the search page is hidden behind the
// anonymous-visitor wall, judged first by the landed URL and then by the
// wall markup itself.
func (p *Pipeline) hitLoginWall(ctx context.Context, handle *interfaces.BrowserHandle, landed string) (bool, error) {
	lower := strings.ToLower(landed)
	if strings.Contains(lower, "/login") || strings.Contains(lower, "/authwall") || strings.Contains(lower, "/signup") {
		return true, nil
	}

	var walled bool
	if err := p.evaluate(ctx, handle, loginWallProbeJS, &walled); err != nil {
		return false, fmt.Errorf("login wall probe failed: %w", err)
	}
	return walled, nil
}

// collectWithScroll accumulates job ids across scroll cycles, keeping
// first-seen order. Collection stops at the limit, after the configured run
// of growthless cycles, or at the absolute cycle ceiling, whichever comes
// first.
func (p *Pipeline) collectWithScroll(ctx context.Context, handle *interfaces.BrowserHandle, limit int, log arbor.ILogger) ([]string, error) {
	seen := make(map[string]bool)
	var ordered []string
	stall := 0

	for cycle := 0; cycle < p.config.Search.MaxScrollCycles; cycle++ {
		var batch []string
		if err := p.evaluate(ctx, handle, collectJobIDsJS, &batch); err != nil {
			return nil, fmt.Errorf("id collection failed: %w", err)
		}

		before := len(ordered)
		for _, id := range batch {
			if !seen[id] {
				seen[id] = true
				ordered = append(ordered, id)
			}
		}

		log.Debug().Int("cycle", cycle).Int("collected", len(ordered)).Msg("Scroll cycle")

		if len(ordered) >= limit {
			break
		}

		if len(ordered) == before {
			stall++
			if stall >= p.config.Search.StallCycles {
				log.Debug().Int("stall_cycles", stall).Msg("Result list fully loaded")
				break
			}
		} else {
			stall = 0
		}

		if err := p.evaluate(ctx, handle, scrollToBottomJS, nil); err != nil {
			return nil, fmt.Errorf("scroll failed: %w", err)
		}
		if err := p.sleep(ctx, p.scrollDelay()); err != nil {
			return nil, err
		}
	}

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}
	return ordered, nil
}

// diagnoseEmpty decides whether zero results means "nothing matched" or
// "the markup changed under us". The first is a valid outcome; the second
// is an operational failure that should page someone.
func (p *Pipeline) diagnoseEmpty(ctx context.Context, handle *interfaces.BrowserHandle, log arbor.ILogger) error {
	var noResults bool
	if err := p.evaluate(ctx, handle, noResultsProbeJS, &noResults); err != nil {
		return fmt.Errorf("empty-result probe failed: %w", err)
	}
	if noResults {
		log.Info().Msg("Search matched no jobs")
		return nil
	}
	log.Error().Msg("Result page loaded but no known selector matched")
	return models.ErrSelectorFailure
}

// scrollDelay returns a random pause between scroll cycles.
func (p *Pipeline) scrollDelay() time.Duration {
	min := p.config.Search.ScrollDelayMin
	span := p.config.Search.ScrollDelayMax - min
	if span <= 0 {
		return min
	}
	return min + time.Duration(p.rng.Int63n(int64(span)+1))
}

func (p *Pipeline) navigateAndLocate(ctx context.Context, handle *interfaces.BrowserHandle, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(handle.Ctx, p.config.Browser.NavigationTimeout)
	defer cancel()

	var landed string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.Sleep(2*time.Second),
		chromedp.Location(&landed),
	)
	return landed, err
}

func (p *Pipeline) evaluateInPage(ctx context.Context, handle *interfaces.BrowserHandle, js string, out interface{}) error {
	evalCtx, cancel := context.WithTimeout(handle.Ctx, p.config.Browser.NavigationTimeout)
	defer cancel()

	if out == nil {
		var discard interface{}
		return chromedp.Run(evalCtx, chromedp.Evaluate(js, &discard))
	}
	return chromedp.Run(evalCtx, chromedp.Evaluate(js, out))
}
