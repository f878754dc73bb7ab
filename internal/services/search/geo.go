package search

import "strings"

// geoIDs maps location names to the target's numeric geo identifiers. The
// geoId parameter disambiguates where the free-text location parameter is
// ambiguous, so searches for "Springfield" land in the intended one.
var geoIDs = map[string]string{
	"united states":  "103644278",
	"united kingdom": "101165590",
	"canada":         "101174742",
	"australia":      "101452733",
	"germany":        "101282230",
	"france":         "105015875",
	"india":          "102713980",
	"netherlands":    "102890719",
	"singapore":      "102454443",
	"brazil":         "106057199",
	"new york":       "105080838",
	"san francisco":  "102277331",
	"london":         "102257491",
	"sydney":         "104769905",
	"melbourne":      "100992797",
	"toronto":        "100025096",
	"berlin":         "103035651",
}

// ResolveGeoID looks a location name up in the geo table. Names match
// case-insensitively; a value that is already numeric passes through
// unchanged so callers can supply identifiers the table does not know.
func ResolveGeoID(location string) (string, bool) {
	trimmed := strings.TrimSpace(location)
	if trimmed == "" {
		return "", false
	}
	if isNumeric(trimmed) {
		return trimmed, true
	}
	id, ok := geoIDs[strings.ToLower(trimmed)]
	return id, ok
}

func isNumeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return len(s) > 0
}
