package extract

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"
)

var (
	// coordRe matches the "@<lat>,<lon>" segment of a map location string.
	coordRe = regexp.MustCompile(`@(-?\d+(?:\.\d+)?),(-?\d+(?:\.\d+)?)`)
	// decimalRe matches the first decimal number, with comma or dot separator.
	decimalRe = regexp.MustCompile(`\d+(?:[.,]\d+)?`)
	// countRe matches an integer whose separators each precede a group of
	// three digits.
	countRe = regexp.MustCompile(`\d+(?:[.,\x{00A0}\x{202F} ]\d{3})*`)
	// parenRe captures the text inside the first pair of parentheses.
	parenRe = regexp.MustCompile(`\(([^)]*)\)`)
)

// ParseCoordinates extracts latitude and longitude from a location string
// such as ".../@41.38,2.17,15z/...". ok is false when the segment is missing,
// unparsable, or out of range.
func ParseCoordinates(location string) (lat, lon float64, ok bool) {
	m := coordRe.FindStringSubmatch(location)
	if m == nil {
		return 0, 0, false
	}
	lat, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, 0, false
	}
	lon, err = strconv.ParseFloat(m[2], 64)
	if err != nil {
		return 0, 0, false
	}
	if lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return 0, 0, false
	}
	return lat, lon, true
}

// ParseReviewCount parses a review count such as "1,234", "(1.234)" or
// "2 345 reviews". Grouping separators are dropped. ok is false when no
// digits are present.
func ParseReviewCount(raw string) (int, bool) {
	if p := parenRe.FindStringSubmatch(raw); p != nil {
		if m := countRe.FindString(p[1]); m != "" {
			raw = m
		}
	}
	m := countRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, m)
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// ParseRating parses the first decimal number in raw, accepting comma or dot
// as decimal separator. ok is false when nothing parses or the value falls
// outside 0.0-5.0.
func ParseRating(raw string) (float64, bool) {
	m := decimalRe.FindString(raw)
	if m == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(strings.Replace(m, ",", ".", 1), 64)
	if err != nil || v < 0 || v > 5 {
		return 0, false
	}
	return v, true
}

// SplitQuery splits a search query on the first literal " in ". The left side
// is the category and the right side the location. Without the separator the
// whole query is the category and location is empty.
func SplitQuery(query string) (category, location string) {
	query = strings.TrimSpace(query)
	before, after, found := strings.Cut(query, " in ")
	if !found {
		return query, ""
	}
	return strings.TrimSpace(before), strings.TrimSpace(after)
}

// DomainToWebsite turns the bare domain shown in the detail pane into a URL.
func DomainToWebsite(domain string) string {
	domain = strings.TrimSpace(domain)
	if domain == "" {
		return ""
	}
	if strings.HasPrefix(domain, "http://") || strings.HasPrefix(domain, "https://") {
		return domain
	}
	return "https://" + domain
}

// cleanText trims whitespace and normalizes to NFC so identical names typed
// with different code point sequences compare equal.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
