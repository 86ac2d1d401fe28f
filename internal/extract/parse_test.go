package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCoordinates(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		location string
		lat, lon float64
		ok       bool
	}{
		{"path segment", "https://maps.example.com/maps/place/Cafe/@41.38,2.17,15z/data=x", 41.38, 2.17, true},
		{"bare", "/@41.38,2.17,15z", 41.38, 2.17, true},
		{"negative", "/@-33.8688,-151.2093,12z", -33.8688, -151.2093, true},
		{"longitude out of range", "/@10.5,181.2,12z", 0, 0, false},
		{"integers", "/@40,-3,10z", 40, -3, true},
		{"missing", "https://maps.example.com/maps/search/cafes", 0, 0, false},
		{"latitude out of range", "/@91.5,2.1,15z", 0, 0, false},
		{"empty", "", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			lat, lon, ok := ParseCoordinates(tt.location)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.InDelta(t, tt.lat, lat, 1e-9)
				assert.InDelta(t, tt.lon, lon, 1e-9)
			}
		})
	}
}

func TestParseReviewCount(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want int
		ok   bool
	}{
		{"(1,234)", 1234, true},
		{"1.234 reseñas", 1234, true},
		{"2 345 reviews", 2345, true},
		{"87", 87, true},
		{"4.5 (1,234)", 1234, true},
		{"4 1,234", 4, true},
		{" (12)", 12, true},
		{"no reviews", 0, false},
		{"", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseReviewCount(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseRating(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want float64
		ok   bool
	}{
		{"4.5 stars", 4.5, true},
		{"4,6 estrellas", 4.6, true},
		{"Rated 3.9 out of 5", 3.9, true},
		{"5", 5, true},
		{"9.1", 0, false},
		{"stars", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseRating(tt.raw)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestSplitQuery(t *testing.T) {
	t.Parallel()

	tests := []struct {
		query, category, location string
	}{
		{"cafes in Barcelona", "cafes", "Barcelona"},
		{"bakeries", "bakeries", ""},
		{"  dentists in  New York ", "dentists", "New York"},
		{"bars in Madrid in Spain", "bars", "Madrid in Spain"},
		{"instruments", "instruments", ""},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			t.Parallel()
			c, l := SplitQuery(tt.query)
			assert.Equal(t, tt.category, c)
			assert.Equal(t, tt.location, l)
		})
	}
}

func TestDomainToWebsite(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://uno.es", DomainToWebsite("uno.es"))
	assert.Equal(t, "https://uno.es", DomainToWebsite(" uno.es "))
	assert.Equal(t, "http://uno.es", DomainToWebsite("http://uno.es"))
	assert.Empty(t, DomainToWebsite(""))
}

func TestCleanText(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Café", cleanText("  Café\n"))
	assert.Empty(t, cleanText(" \t "))
}
