package geoselect

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agnivade/levenshtein"
)

// maxSuggestDistance caps the edit distance of a suggestion.
const maxSuggestDistance = 2

// maxSuggestInputLen bounds the input handed to the Levenshtein computation.
const maxSuggestInputLen = 128

var (
	ErrUnknownCountry = errors.New("unknown country")
	ErrUnknownCity    = errors.New("unknown city")
)

// SelectionError reports a submitted country or city that is not in the
// lookup table, with the closest known value when one is near enough.
type SelectionError struct {
	Field      string // "country" or "city"
	Value      string
	Suggestion string
	Err        error
}

func (e *SelectionError) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%s %q: %v (did you mean %q?)", e.Field, e.Value, e.Err, e.Suggestion)
	}
	return fmt.Sprintf("%s %q: %v", e.Field, e.Value, e.Err)
}

func (e *SelectionError) Unwrap() error { return e.Err }

// distance compares two strings case-insensitively. Identical strings are 0.
func distance(a, b string) int {
	if strings.EqualFold(a, b) {
		return 0
	}
	return levenshtein.ComputeDistance(strings.ToLower(a), strings.ToLower(b))
}

// Suggest returns the candidate closest to query within the distance cap.
// Ties go to the candidate listed first.
func Suggest(candidates []string, query string) (string, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return "", false
	}
	if runes := []rune(query); len(runes) > maxSuggestInputLen {
		query = string(runes[:maxSuggestInputLen])
	}

	best, bestDist := "", maxSuggestDistance+1
	for _, cand := range candidates {
		if d := distance(query, cand); d < bestDist {
			best, bestDist = cand, d
		}
	}
	return best, best != ""
}

// ValidateSelection checks that country is a key of table and that city is
// one of its cities. An empty city is accepted for a known country.
func ValidateSelection(table LookupTable, country, city string) error {
	if !table.Has(country) {
		s, _ := Suggest(table.Countries(), country)
		return &SelectionError{Field: "country", Value: country, Suggestion: s, Err: ErrUnknownCountry}
	}
	if city == "" {
		return nil
	}
	cities := table.Cities(country)
	for _, c := range cities {
		if c == city {
			return nil
		}
	}
	s, _ := Suggest(cities, city)
	return &SelectionError{Field: "city", Value: city, Suggestion: s, Err: ErrUnknownCity}
}
