package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResolveGeoID(t *testing.T) {
	tests := []struct {
		location string
		want     string
		ok       bool
	}{
		{"United States", "103644278", true},
		{"united states", "103644278", true},
		{"  Sydney  ", "104769905", true},
		{"103644278", "103644278", true}, // numeric passthrough
		{"Atlantis", "", false},
		{"", "", false},
		{"12a34", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.location, func(t *testing.T) {
			got, ok := ResolveGeoID(tt.location)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
