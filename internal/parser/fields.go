package parser

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/maltedev/smartphone-scraper/internal/models"
)

var (
	capacityPattern = regexp.MustCompile(`(?i)(\d+)\s*(MB|GB)`)
	pricePattern    = regexp.MustCompile(`\d+(?:\.\d*)?|\.\d+`)
	ordinalPattern  = regexp.MustCompile(`(\d{1,2})(?:st|nd|rd|th)`)
)

// dateRule pairs a matcher with the layout used to parse what it matched.
type dateRule struct {
	pattern *regexp.Regexp
	layout  string
	clean   func(string) string
}

// Evaluated in order, first match wins.
var shippingDateRules = []dateRule{
	{
		pattern: regexp.MustCompile(`\d{1,2}\s+[A-Za-z]{3}\s+\d{4}`),
		layout:  "2 Jan 2006",
	},
	{
		pattern: regexp.MustCompile(`\d{1,2}(?:st|nd|rd|th)\s+[A-Za-z]{3}\s+\d{4}`),
		layout:  "2 Jan 2006",
		clean: func(s string) string {
			return ordinalPattern.ReplaceAllString(s, "${1}")
		},
	},
	{
		pattern: regexp.MustCompile(`\d{4}-\d{2}-\d{2}`),
		layout:  "2006-01-02",
	},
}

// ParseCapacityMB converts strings like "64GB" or "512 mb" to megabytes.
func ParseCapacityMB(s string) (int, error) {
	matches := capacityPattern.FindStringSubmatch(s)
	if len(matches) < 3 {
		return 0, &ParseError{Field: "capacity", Input: s}
	}

	value, err := strconv.Atoi(matches[1])
	if err != nil || value <= 0 {
		return 0, &ParseError{Field: "capacity", Input: s}
	}

	if strings.EqualFold(matches[2], "GB") {
		if value > math.MaxInt/1000 {
			return 0, &ParseError{Field: "capacity", Input: s}
		}
		value *= 1000
	}
	return value, nil
}

// ParsePrice returns the first numeric run of a money string. Thousands
// separators are not understood: "1,299.99" yields 1.
func ParsePrice(s string) (float64, error) {
	match := pricePattern.FindString(s)
	if match == "" {
		return 0, &ParseError{Field: "price", Input: s}
	}

	price, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, &ParseError{Field: "price", Input: s}
	}
	return price, nil
}

// ParseAvailability returns the trimmed text after the first colon of
// "<label>: <status>".
func ParseAvailability(s string) (string, error) {
	_, status, found := strings.Cut(s, ":")
	if !found {
		return "", &ParseError{Field: "availability", Input: s}
	}
	return strings.TrimSpace(status), nil
}

// ParseShippingDate looks for a known date pattern in free text. A missing or
// unparsable date is reported through ok, never as an error.
func ParseShippingDate(s string) (date models.Date, ok bool) {
	for _, rule := range shippingDateRules {
		match := rule.pattern.FindString(s)
		if match == "" {
			continue
		}

		match = normalizeText(match)
		if rule.clean != nil {
			match = rule.clean(match)
		}

		t, err := time.Parse(rule.layout, match)
		if err != nil {
			return models.Date{}, false
		}
		return models.Date{Time: t}, true
	}

	return models.Date{}, false
}

// normalizeText trims and collapses internal whitespace runs to one space.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
