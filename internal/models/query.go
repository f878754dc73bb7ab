package models

// SearchQuery holds the parameters for one job search. A run may carry
// several queries; results are merged by job id across them.
type SearchQuery struct {
	Keywords string `json:"keywords"`

	// Location is a free-text location name. When it resolves through the
	// static geo table, GeoID is used instead; otherwise the raw text is
	// passed through as a free-text filter.
	Location string `json:"location,omitempty"`
	GeoID    string `json:"geo_id,omitempty"`

	// Distance in miles/km from the location. Zero means the builder's
	// default applies.
	Distance int `json:"distance,omitempty"`

	// TimeFilter is a posting-age window name ("24h", "week", "month").
	TimeFilter string `json:"time_filter,omitempty"`

	// Multi-valued filter names, resolved against the static vocabularies
	// and comma-joined in the query string.
	JobTypes         []string `json:"job_types,omitempty"`         // f_JT
	ExperienceLevels []string `json:"experience_levels,omitempty"` // f_E
	WorkTypes        []string `json:"work_types,omitempty"`        // f_WT
	JobFunctions     []string `json:"job_functions,omitempty"`     // f_F
	Industries       []string `json:"industries,omitempty"`        // f_SB2

	// Tri-state boolean filters; nil means unset.
	EasyApply         *bool `json:"easy_apply,omitempty"`          // f_EA
	ActivelyHiring    *bool `json:"actively_hiring,omitempty"`     // f_AL
	VerifiedJobs      *bool `json:"verified_jobs,omitempty"`       // f_VJ
	JobsAtConnections *bool `json:"jobs_at_connections,omitempty"` // f_JIYN

	SortBy    string `json:"sort_by,omitempty"` // "recent" or "relevant"
	CityID    string `json:"city_id,omitempty"`
	CompanyID string `json:"company_id,omitempty"`

	// Limit caps the number of result ids collected. Zero or negative falls
	// back to the configured default.
	Limit int `json:"limit,omitempty"`
}
