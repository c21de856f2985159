package units

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// CountryNames maps ISO 3166-1 alpha-2 codes to country names.
type CountryNames map[string]string

// ReadCountryNames loads country names from a GeoNames countryInfo.txt file.
// Format: ISO<tab>ISO3<tab>ISO-Numeric<tab>fips<tab>Country<tab>...
// Two-column "ISO<tab>Country" files are accepted too. Lines starting with
// '#' are comments.
func ReadCountryNames(r io.Reader) (CountryNames, error) {
	names := make(CountryNames)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		fields := strings.Split(line, "\t")
		var name string
		switch {
		case len(fields) >= 5:
			name = fields[4]
		case len(fields) >= 2:
			name = fields[1]
		default:
			continue
		}

		code := strings.ToUpper(strings.TrimSpace(fields[0]))
		name = strings.TrimSpace(name)
		if len(code) != 2 || name == "" {
			continue
		}
		names[code] = name
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading country names: %w", err)
	}
	return names, nil
}

// Name returns the country name for code, or "" when unknown.
func (n CountryNames) Name(code string) string {
	return n[strings.ToUpper(strings.TrimSpace(code))]
}

// Fill sets the Country of every unit that only carries a CountryCode.
// It returns how many units were filled.
func (n CountryNames) Fill(units []Unit) int {
	filled := 0
	for i := range units {
		if strings.TrimSpace(units[i].Country) != "" || units[i].CountryCode == "" {
			continue
		}
		if name := n.Name(units[i].CountryCode); name != "" {
			units[i].Country = name
			filled++
		}
	}
	return filled
}
