package extract

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/venatordev/venator/internal/models"
)

// jobIDPattern pulls the numeric job id out of a view URL, with or without
// tracking decoration after it.
var jobIDPattern = regexp.MustCompile(`/jobs/view/(\d+)`)

// CanonicalLink renders the undecorated view URL for a job id. Hrefs
// lifted from the page carry per-session tracking tokens, so stored links
// are always rebuilt from the id instead.
func CanonicalLink(id string) string {
	return fmt.Sprintf("https://www.linkedin.com/jobs/view/%s/", id)
}

// IDStrategy resolves a job id from a result card. Strategies are tried in
// order; the first hit wins.
type IDStrategy interface {
	Resolve(card *goquery.Selection) (string, bool)
	Name() string
}

// AttributeStrategy reads the id from an attribute on the card itself.
type AttributeStrategy struct {
	Attr string
}

func (s AttributeStrategy) Name() string { return "attribute:" + s.Attr }

func (s AttributeStrategy) Resolve(card *goquery.Selection) (string, bool) {
	id, ok := card.Attr(s.Attr)
	return id, ok && isJobID(id)
}

// AncestorStrategy walks up from the card to the nearest annotated ancestor.
type AncestorStrategy struct {
	Attr string
}

func (s AncestorStrategy) Name() string { return "ancestor:" + s.Attr }

func (s AncestorStrategy) Resolve(card *goquery.Selection) (string, bool) {
	closest := card.Closest("[" + s.Attr + "]")
	if closest.Length() == 0 {
		return "", false
	}
	id, ok := closest.Attr(s.Attr)
	return id, ok && isJobID(id)
}

// URLPatternStrategy extracts the id from a view-link href inside the card.
type URLPatternStrategy struct {
	Pattern *regexp.Regexp
}

func (s URLPatternStrategy) Name() string { return "url-pattern" }

func (s URLPatternStrategy) Resolve(card *goquery.Selection) (string, bool) {
	var href string
	if h, ok := card.Attr("href"); ok && strings.Contains(h, "/jobs/view/") {
		href = h
	} else if link := card.Find(`a[href*="/jobs/view/"]`).First(); link.Length() > 0 {
		href, _ = link.Attr("href")
	}
	if href == "" {
		return "", false
	}
	m := s.Pattern.FindStringSubmatch(href)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// defaultIDStrategies is the resolution chain applied to every card.
var defaultIDStrategies = []IDStrategy{
	AttributeStrategy{Attr: "data-job-id"},
	AncestorStrategy{Attr: "data-job-id"},
	URLPatternStrategy{Pattern: jobIDPattern},
}

// cardSelectors is the layered card detection chain, newest markup first.
// The last layer falls back to the view links themselves when no card
// container matches at all.
var cardSelectors = []string{
	`[data-view-name="job-card"]`,
	`.base-card`,
	`.jobs-search-results__list-item`,
	`a[href*="/jobs/view/"]`,
}

// FindCards locates result cards in a parsed document and reports which
// selector layer matched, for diagnostics.
func FindCards(doc *goquery.Document) (*goquery.Selection, string) {
	for _, sel := range cardSelectors {
		if cards := doc.Find(sel); cards.Length() > 0 {
			return cards, sel
		}
	}
	return nil, ""
}

// titleSelectors and companySelectors are field fallback chains within a
// card, again newest markup first.
var titleSelectors = []string{
	`.base-search-card__title`,
	`.job-card-list__title`,
	`strong[class*="title"]`,
	`h3`,
}

var companySelectors = []string{
	`.base-search-card__subtitle`,
	`.job-card-container__primary-description`,
	`[class*="company-name"]`,
	`h4`,
}

// ExtractCards parses a result-page snapshot and returns job records keyed
// by id, capped at limit. Cards whose id cannot be resolved by any strategy
// are skipped; missing title or company leaves the field empty rather than
// dropping the record.
func ExtractCards(html string, limit int) (map[string]models.JobRecord, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page snapshot: %w", err)
	}

	jobs := make(map[string]models.JobRecord)
	cards, _ := FindCards(doc)
	if cards == nil {
		return jobs, nil
	}

	cards.EachWithBreak(func(_ int, card *goquery.Selection) bool {
		if limit > 0 && len(jobs) >= limit {
			return false
		}

		id, ok := resolveID(card)
		if !ok {
			return true
		}
		if _, dup := jobs[id]; dup {
			return true
		}

		jobs[id] = models.JobRecord{
			ID:      id,
			Link:    CanonicalLink(id),
			Title:   firstText(card, titleSelectors),
			Company: firstText(card, companySelectors),
		}
		return true
	})

	return jobs, nil
}

func resolveID(card *goquery.Selection) (string, bool) {
	for _, strategy := range defaultIDStrategies {
		if id, ok := strategy.Resolve(card); ok {
			return id, true
		}
	}
	return "", false
}

func firstText(card *goquery.Selection, selectors []string) string {
	for _, sel := range selectors {
		if node := card.Find(sel).First(); node.Length() > 0 {
			if text := cleanText(node.Text()); text != "" {
				return text
			}
		}
	}
	return ""
}

// cleanText collapses the whitespace the site pads card fields with.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isJobID(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// notFoundMarkers are the phrases shown in place of a removed or never-
// existing job posting.
var notFoundMarkers = []string{
	"this job is no longer available",
	"no longer accepting applications",
	"job not found",
	"page not found",
}

// isJobNotFound reports whether a detail-page snapshot is the tombstone
// shown for removed postings. Checked before field extraction so a missing
// job yields a clean "gone" result instead of a pile of selector misses.
func isJobNotFound(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range notFoundMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Detail-page field chains.
var detailTitleSelectors = []string{
	`.top-card-layout__title`,
	`.jobs-unified-top-card__job-title`,
	`h1`,
}

var detailCompanySelectors = []string{
	`.topcard__org-name-link`,
	`.jobs-unified-top-card__company-name`,
	`a[class*="topcard__org"]`,
	`.top-card-layout__second-subline a`,
}

var descriptionSelectors = []string{
	`.show-more-less-html__markup`,
	`.jobs-description__content`,
	`#job-details`,
	`.description__text`,
}

// extractDetailFields pulls title, company and the raw description HTML out
// of a detail-page snapshot.
func extractDetailFields(html string) (title, company, descriptionHTML string, err error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", "", "", fmt.Errorf("failed to parse detail snapshot: %w", err)
	}

	title = firstText(doc.Selection, detailTitleSelectors)
	company = firstText(doc.Selection, detailCompanySelectors)

	for _, sel := range descriptionSelectors {
		if node := doc.Find(sel).First(); node.Length() > 0 {
			if inner, herr := node.Html(); herr == nil && strings.TrimSpace(inner) != "" {
				descriptionHTML = inner
				break
			}
		}
	}

	return title, company, descriptionHTML, nil
}
