package search

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/venatordev/venator/internal/models"
)

const searchBaseURL = "https://www.linkedin.com/jobs/search/"

// Filter vocabularies map the human-facing names accepted on the CLI to the
// target's opaque query codes. Unknown names are dropped rather than passed
// through: an invalid code makes the site silently ignore the whole filter
// group, which looks like a bug everywhere else.

// TimeFilters maps posting-age names to f_TPR codes (seconds lookback).
var TimeFilters = map[string]string{
	"24h":   "r86400",
	"day":   "r86400",
	"week":  "r604800",
	"month": "r2592000",
}

// JobTypeCodes maps employment types to f_JT codes.
var JobTypeCodes = map[string]string{
	"full-time":  "F",
	"part-time":  "P",
	"contract":   "C",
	"temporary":  "T",
	"internship": "I",
	"volunteer":  "V",
	"other":      "O",
}

// ExperienceLevelCodes maps seniority names to f_E codes.
var ExperienceLevelCodes = map[string]string{
	"internship": "1",
	"entry":      "2",
	"associate":  "3",
	"mid-senior": "4",
	"director":   "5",
	"executive":  "6",
}

// WorkTypeCodes maps workplace arrangements to f_WT codes.
var WorkTypeCodes = map[string]string{
	"onsite": "1",
	"remote": "2",
	"hybrid": "3",
}

// JobFunctionCodes maps job function names to f_F codes.
var JobFunctionCodes = map[string]string{
	"engineering":        "eng",
	"information-tech":   "it",
	"sales":              "sale",
	"marketing":          "mkt",
	"finance":            "fin",
	"human-resources":    "hr",
	"operations":         "ops",
	"product-management": "prdm",
	"design":             "dsgn",
	"consulting":         "cnsl",
}

// IndustryCodes maps industry names to f_SB2 codes.
var IndustryCodes = map[string]string{
	"software":           "4",
	"it-services":        "96",
	"financial-services": "43",
	"hospital-health":    "14",
	"manufacturing":      "25",
	"retail":             "27",
	"education":          "68",
	"government":         "75",
	"staffing":           "104",
}

// SortOptions maps result orderings to sortBy codes.
var SortOptions = map[string]string{
	"recent":   "DD",
	"relevant": "R",
}

// BuildQuery renders a search query as the canonical search URL. Unknown
// filter names are dropped; an empty query still yields a valid URL.
func BuildQuery(q *models.SearchQuery) string {
	params := url.Values{}

	if q.Keywords != "" {
		params.Set("keywords", q.Keywords)
	}
	if q.Location != "" {
		params.Set("location", q.Location)
	}
	if q.GeoID != "" {
		params.Set("geoId", q.GeoID)
	}
	if q.Distance > 0 {
		params.Set("distance", strconv.Itoa(q.Distance))
	}
	if code, ok := TimeFilters[strings.ToLower(q.TimeFilter)]; ok {
		params.Set("f_TPR", code)
	}

	setCodes(params, "f_JT", q.JobTypes, JobTypeCodes)
	setCodes(params, "f_E", q.ExperienceLevels, ExperienceLevelCodes)
	setCodes(params, "f_WT", q.WorkTypes, WorkTypeCodes)
	setCodes(params, "f_F", q.JobFunctions, JobFunctionCodes)
	setCodes(params, "f_SB2", q.Industries, IndustryCodes)

	if q.EasyApply != nil && *q.EasyApply {
		params.Set("f_EA", "true")
	}
	if q.ActivelyHiring != nil && *q.ActivelyHiring {
		params.Set("f_AL", "true")
	}
	if q.VerifiedJobs != nil && *q.VerifiedJobs {
		params.Set("f_VJ", "true")
	}
	if q.JobsAtConnections != nil && *q.JobsAtConnections {
		params.Set("f_JIYN", "true")
	}

	if code, ok := SortOptions[strings.ToLower(q.SortBy)]; ok {
		params.Set("sortBy", code)
	}
	if q.CityID != "" {
		params.Set("f_PP", q.CityID)
	}
	if q.CompanyID != "" {
		params.Set("f_C", q.CompanyID)
	}

	if len(params) == 0 {
		return searchBaseURL
	}
	return searchBaseURL + "?" + params.Encode()
}

// setCodes resolves a list of filter names against a vocabulary and joins
// the surviving codes with commas, the target's multi-value convention.
func setCodes(params url.Values, key string, names []string, vocab map[string]string) {
	var codes []string
	for _, name := range names {
		if code, ok := vocab[strings.ToLower(name)]; ok {
			codes = append(codes, code)
		}
	}
	if len(codes) > 0 {
		params.Set(key, strings.Join(codes, ","))
	}
}
