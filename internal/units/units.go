// Package units stores the portal's consular units and derives the
// country→cities lookup table from the active ones.
package units

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/andreiashu/geoselect"
)

// ErrNotFound is returned for an unknown unit id.
var ErrNotFound = errors.New("unit not found")

// Location is a point in degrees.
type Location struct {
	Latitude  float64 `yaml:"lat" json:"lat"`
	Longitude float64 `yaml:"lng" json:"lng"`
}

// Unit is a consular unit (embassy, consulate general, honorary consulate).
type Unit struct {
	ID          int64     `yaml:"id,omitempty" json:"id"`
	Name        string    `yaml:"name" json:"name"`
	Type        string    `yaml:"type" json:"type"`
	City        string    `yaml:"city" json:"city"`
	Country     string    `yaml:"country" json:"country"`
	CountryCode string    `yaml:"country_code,omitempty" json:"country_code,omitempty"`
	Active      bool      `yaml:"active" json:"active"`
	Location    *Location `yaml:"location,omitempty" json:"location,omitempty"`
}

// Validate checks the fields every unit needs.
func (u Unit) Validate() error {
	var missing []string
	if strings.TrimSpace(u.Name) == "" {
		missing = append(missing, "name")
	}
	if strings.TrimSpace(u.Type) == "" {
		missing = append(missing, "type")
	}
	if strings.TrimSpace(u.City) == "" {
		missing = append(missing, "city")
	}
	if strings.TrimSpace(u.Country) == "" {
		missing = append(missing, "country")
	}
	if len(missing) > 0 {
		return fmt.Errorf("unit %q: missing %s", u.Name, strings.Join(missing, ", "))
	}
	if u.Location != nil {
		if u.Location.Latitude < -90 || u.Location.Latitude > 90 ||
			u.Location.Longitude < -180 || u.Location.Longitude > 180 {
			return fmt.Errorf("unit %q: location out of range", u.Name)
		}
	}
	return nil
}

// Store persists consular units.
type Store interface {
	Create(ctx context.Context, u *Unit) error
	Get(ctx context.Context, id int64) (*Unit, error)
	List(ctx context.Context) ([]Unit, error)
	Active(ctx context.Context) ([]Unit, error)
	SetActive(ctx context.Context, id int64, active bool) error
}

// BuildTable folds the active units into a lookup table: one key per
// country, its cities deduplicated and sorted. Names are trimmed.
func BuildTable(units []Unit) geoselect.LookupTable {
	seen := make(map[string]map[string]bool)
	for _, u := range units {
		if !u.Active {
			continue
		}
		country := strings.TrimSpace(u.Country)
		city := strings.TrimSpace(u.City)
		if country == "" || city == "" {
			continue
		}
		if seen[country] == nil {
			seen[country] = make(map[string]bool)
		}
		seen[country][city] = true
	}

	table := make(geoselect.LookupTable, len(seen))
	for country, cities := range seen {
		list := make([]string, 0, len(cities))
		for city := range cities {
			list = append(list, city)
		}
		sort.Strings(list)
		table[country] = list
	}
	return table
}

// seedFile is the YAML layout of a seed file.
type seedFile struct {
	Units []Unit `yaml:"units"`
}

// ReadSeed decodes a YAML seed file and validates each unit. Entries that
// give only a country_code get their country from names, which may be nil.
func ReadSeed(r io.Reader, names CountryNames) ([]Unit, error) {
	var f seedFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("decoding seed: %w", err)
	}
	names.Fill(f.Units)
	for i, u := range f.Units {
		if err := u.Validate(); err != nil {
			return nil, fmt.Errorf("seed entry %d: %w", i, err)
		}
	}
	return f.Units, nil
}

// Seed creates every unit in store.
func Seed(ctx context.Context, store Store, units []Unit) error {
	for i := range units {
		if err := store.Create(ctx, &units[i]); err != nil {
			return fmt.Errorf("creating %q: %w", units[i].Name, err)
		}
	}
	return nil
}
