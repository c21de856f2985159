package geoselect

import "strings"

// Placeholder labels rendered as the first, empty-valued option.
const (
	CountryPlaceholder = "Sélectionnez un pays"
	CityPlaceholder    = "Sélectionnez une ville"
)

// SelectOption is one entry of a selection control.
type SelectOption struct {
	Value    string
	Label    string
	Selected bool
}

// Select models a selection control. It is not safe for concurrent use.
type Select struct {
	ID       string
	Name     string
	Options  []SelectOption
	Disabled bool
	Initial  string // value of the data-initial attribute

	listeners []func(*Select)
}

// Value returns the value of the selected option. With nothing marked
// selected the first option wins, as in a browser; with no options it is "".
func (s *Select) Value() string {
	for _, o := range s.Options {
		if o.Selected {
			return o.Value
		}
	}
	if len(s.Options) > 0 {
		return s.Options[0].Value
	}
	return ""
}

// SetValue selects the option whose value is v and notifies the change
// listeners, as a user picking that option would. It returns false and
// notifies nobody when no option has value v.
func (s *Select) SetValue(v string) bool {
	idx := -1
	for i, o := range s.Options {
		if o.Value == v {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false
	}
	for i := range s.Options {
		s.Options[i].Selected = i == idx
	}
	for _, fn := range s.listeners {
		fn(s)
	}
	return true
}

// OnChange registers fn to run synchronously after every SetValue.
func (s *Select) OnChange(fn func(*Select)) {
	s.listeners = append(s.listeners, fn)
}

// identifiers returns the lowercase id and name, for marker matching.
func (s *Select) identifiers() []string {
	return []string{strings.ToLower(s.ID), strings.ToLower(s.Name)}
}

// PopulateCountry replaces the options of sel with a placeholder followed by
// one option per country of table, sorted. The country equal to selected
// is marked selected. A nil sel is ignored.
func PopulateCountry(sel *Select, table LookupTable, selected string) {
	if sel == nil {
		return
	}
	countries := table.Countries()
	opts := make([]SelectOption, 0, len(countries)+1)
	opts = append(opts, SelectOption{Label: CountryPlaceholder})
	for _, country := range countries {
		opts = append(opts, SelectOption{
			Value:    country,
			Label:    country,
			Selected: selected != "" && country == selected,
		})
	}
	sel.Options = opts
}

// PopulateCity replaces the options of sel with a placeholder followed by
// the sorted cities of country. sel is disabled when country is empty.
// A country missing from table leaves only the placeholder.
func PopulateCity(sel *Select, table LookupTable, country, selected string) {
	if sel == nil {
		return
	}
	sel.Disabled = country == ""
	cities := table.Cities(country)
	opts := make([]SelectOption, 0, len(cities)+1)
	opts = append(opts, SelectOption{Label: CityPlaceholder})
	for _, city := range cities {
		opts = append(opts, SelectOption{
			Value:    city,
			Label:    city,
			Selected: selected != "" && city == selected,
		})
	}
	sel.Options = opts
}

// PairState tracks the rendering of a country/city pair.
type PairState int

const (
	PairUninitialized PairState = iota
	PairCountryPopulated
	PairCityPopulated
	PairCityDisabled
)

func (s PairState) String() string {
	switch s {
	case PairUninitialized:
		return "uninitialized"
	case PairCountryPopulated:
		return "country-populated"
	case PairCityPopulated:
		return "city-populated"
	case PairCityDisabled:
		return "city-disabled"
	}
	return "unknown"
}

// Pair links a country control to the city control it drives.
type Pair struct {
	Country *Select
	City    *Select

	table LookupTable
	state PairState
	bound bool
}

// NewPair returns an unbound pair.
func NewPair(country, city *Select) *Pair {
	return &Pair{Country: country, City: city}
}

// State returns where the pair is in its rendering cycle.
func (p *Pair) State() PairState { return p.state }

// Bind renders both controls from table, honouring the controls' Initial
// values, and makes every later country change re-render the city control
// with no pre-selection. Binding again re-renders without adding a second
// listener.
func (p *Pair) Bind(table LookupTable) {
	if p.Country == nil || p.City == nil {
		return
	}
	p.table = table
	PopulateCountry(p.Country, table, p.Country.Initial)
	p.state = PairCountryPopulated

	// The effective country is what the control now shows, so an initial
	// value missing from the table renders a disabled city control.
	p.renderCity(p.Country.Value(), p.City.Initial)

	if !p.bound {
		p.Country.OnChange(func(s *Select) {
			p.renderCity(s.Value(), "")
		})
		p.bound = true
	}
}

func (p *Pair) renderCity(country, selected string) {
	PopulateCity(p.City, p.table, country, selected)
	if p.City.Disabled {
		p.state = PairCityDisabled
	} else {
		p.state = PairCityPopulated
	}
}

// PairConfig declares a pair by the id (or, failing that, name) of its
// controls.
type PairConfig struct {
	CountryField string `yaml:"country" json:"country"`
	CityField    string `yaml:"city" json:"city"`
}

// Identifier fragments of country and city controls, matched case-insensitively.
var (
	countryMarkers = []string{"country", "pays"}
	cityMarkers    = []string{"city", "ville"}
)

func matchMarker(s *Select, markers []string) (string, bool) {
	for _, ident := range s.identifiers() {
		for _, m := range markers {
			if ident != "" && strings.Contains(ident, m) {
				return m, true
			}
		}
	}
	return "", false
}

// fieldKey is the identifier a PairConfig uses for s.
func fieldKey(s *Select) string {
	if s.ID != "" {
		return s.ID
	}
	return s.Name
}

// DiscoverPairs pairs controls by identifier when no pairs are declared.
// Each control whose id or name contains "country" or "pays" is paired with
// an unpaired control whose id or name contains "city" or "ville": first the
// one named like the country control with the marker swapped (birth_country
// → birth_city), otherwise the first one in document order. A control is
// never paired twice.
func DiscoverPairs(selects []*Select) []PairConfig {
	used := make(map[*Select]bool)
	var pairs []PairConfig

	for _, country := range selects {
		if used[country] {
			continue
		}
		marker, ok := matchMarker(country, countryMarkers)
		if !ok {
			continue
		}

		var city *Select
		want := swappedIdentifiers(country, marker)
		for _, cand := range selects {
			if cand == country || used[cand] {
				continue
			}
			if _, ok := matchMarker(cand, countryMarkers); ok {
				continue
			}
			if _, ok := matchMarker(cand, cityMarkers); !ok {
				continue
			}
			if city == nil {
				city = cand
			}
			if hasAny(cand.identifiers(), want) {
				city = cand
				break
			}
		}
		if city == nil {
			continue
		}
		used[country] = true
		used[city] = true
		pairs = append(pairs, PairConfig{CountryField: fieldKey(country), CityField: fieldKey(city)})
	}
	return pairs
}

// swappedIdentifiers returns the identifiers of s with marker replaced by
// each city marker.
func swappedIdentifiers(s *Select, marker string) map[string]bool {
	out := make(map[string]bool)
	for _, ident := range s.identifiers() {
		if ident == "" {
			continue
		}
		for _, cm := range cityMarkers {
			out[strings.Replace(ident, marker, cm, 1)] = true
		}
	}
	return out
}

func hasAny(idents []string, set map[string]bool) bool {
	for _, ident := range idents {
		if ident != "" && set[ident] {
			return true
		}
	}
	return false
}
