package geoselect

import (
	"errors"
	"strings"
	"testing"
)

func TestSuggest(t *testing.T) {
	candidates := []string{"Brussels", "Liège", "Namur"}
	tests := []struct {
		query  string
		want   string
		wantOK bool
	}{
		{"Liege", "Liège", true},
		{"liège", "Liège", true},
		{"Brusels", "Brussels", true},
		{"NAMUR", "Namur", true},
		{"Antwerp", "", false},
		{"", "", false},
		{"   ", "", false},
		{strings.Repeat("x", 1000), "", false},
	}
	for _, tt := range tests {
		got, ok := Suggest(candidates, tt.query)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Suggest(%q) = %q, %v; want %q, %v", tt.query, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestValidateSelection(t *testing.T) {
	table := LookupTable{
		"Belgium": {"Brussels", "Liège"},
		"Chad":    {"N'Djamena"},
	}
	tests := []struct {
		name       string
		country    string
		city       string
		wantErr    error
		suggestion string
	}{
		{name: "valid pair", country: "Belgium", city: "Liège"},
		{name: "country only", country: "Belgium"},
		{name: "typo in country", country: "Belgim", city: "Liège", wantErr: ErrUnknownCountry, suggestion: "Belgium"},
		{name: "unknown country", country: "Atlantis", wantErr: ErrUnknownCountry},
		{name: "city of another country", country: "Chad", city: "Brussels", wantErr: ErrUnknownCity},
		{name: "accent dropped", country: "Belgium", city: "Liege", wantErr: ErrUnknownCity, suggestion: "Liège"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateSelection(table, tt.country, tt.city)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("ValidateSelection() error = %v, want nil", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("ValidateSelection() error = %v, want %v", err, tt.wantErr)
			}
			var selErr *SelectionError
			if !errors.As(err, &selErr) {
				t.Fatalf("error %T is not a *SelectionError", err)
			}
			if selErr.Suggestion != tt.suggestion {
				t.Errorf("Suggestion = %q, want %q", selErr.Suggestion, tt.suggestion)
			}
			if tt.suggestion != "" && !strings.Contains(err.Error(), "did you mean") {
				t.Errorf("Error() = %q, want a suggestion", err.Error())
			}
		})
	}
}
