package models

// JobRecord is one extracted job posting, keyed by the target's opaque
// numeric identifier. Link is always the canonical view URL built from the
// id, never a tracking-decorated href lifted from the page.
type JobRecord struct {
	ID          string `json:"id" badgerhold:"key"`
	Link        string `json:"link"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
	CreatedAt   int64  `json:"created_at,omitempty"`
	UpdatedAt   int64  `json:"updated_at,omitempty"`
}

// JobDetailResult is the outcome of a single-job detail extraction. A job
// that has been removed or never existed yields Success=false with a reason
// rather than an error from the extractor.
type JobDetailResult struct {
	JobID       string `json:"job_id"`
	Link        string `json:"link,omitempty"`
	Title       string `json:"title,omitempty"`
	Company     string `json:"company,omitempty"`
	Description string `json:"description,omitempty"`
	Success     bool   `json:"success"`
	Error       string `json:"error,omitempty"`
}

// MergeJobRecords folds src into dst, overwriting on duplicate ids.
// Later extractions win so enrichment from a second pass replaces the
// basic record from the first.
func MergeJobRecords(dst, src map[string]JobRecord) map[string]JobRecord {
	if dst == nil {
		dst = make(map[string]JobRecord, len(src))
	}
	for id, rec := range src {
		dst[id] = rec
	}
	return dst
}
