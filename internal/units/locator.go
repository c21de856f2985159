package units

import (
	"math"

	"github.com/golang/geo/s2"
)

// locatorCellLevel sets the S2 grid the locator buckets units into.
// Level 6 cells are roughly 150 km across; consular units are sparse, so
// finer cells would leave nearly every neighbourhood empty.
const locatorCellLevel = 6

// earthRadiusKm converts S2 angles to distances.
const earthRadiusKm = 6371.0088

// Match is a unit and its distance from the query point.
type Match struct {
	Unit       Unit    `json:"unit"`
	DistanceKm float64 `json:"distance_km"`
}

// Locator answers nearest-unit queries. Safe for concurrent use after
// construction.
type Locator struct {
	units     []Unit
	cellIndex map[s2.CellID][]int
}

// NewLocator indexes the units that carry a location.
func NewLocator(units []Unit) *Locator {
	l := &Locator{cellIndex: make(map[s2.CellID][]int)}
	for _, u := range units {
		if u.Location == nil {
			continue
		}
		l.units = append(l.units, cloneUnit(u))
	}
	for i, u := range l.units {
		cell := s2.CellIDFromLatLng(latLng(u.Location)).Parent(locatorCellLevel)
		l.cellIndex[cell] = append(l.cellIndex[cell], i)
	}
	return l
}

// Len returns the number of indexed units.
func (l *Locator) Len() int { return len(l.units) }

func latLng(loc *Location) s2.LatLng {
	return s2.LatLngFromDegrees(loc.Latitude, loc.Longitude)
}

// cellAndNeighbors returns the given cell plus its edge and corner neighbours.
func cellAndNeighbors(cell s2.CellID) []s2.CellID {
	cells := make([]s2.CellID, 0, 9)
	cells = append(cells, cell)

	edgeNeighbors := cell.EdgeNeighbors()
	cells = append(cells, edgeNeighbors[:]...)

	seen := make(map[s2.CellID]bool, 9)
	for _, c := range cells {
		seen[c] = true
	}
	for _, n := range edgeNeighbors {
		for _, corner := range n.EdgeNeighbors() {
			if !seen[corner] {
				cells = append(cells, corner)
				seen[corner] = true
			}
		}
	}
	return cells
}

// Nearest returns the unit closest to (lat, lng). Units in the query's cell
// and its neighbours are searched first. That neighbourhood contains every
// point within one minimum cell width of the query, so a best match farther
// than that may be beaten by a unit outside it; every unit is then scanned.
// ok is false for invalid coordinates or an empty locator.
func (l *Locator) Nearest(lat, lng float64) (Match, bool) {
	if math.IsNaN(lat) || math.IsNaN(lng) || math.IsInf(lat, 0) || math.IsInf(lng, 0) ||
		lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return Match{}, false
	}
	if len(l.units) == 0 {
		return Match{}, false
	}

	query := s2.LatLngFromDegrees(lat, lng)
	queryCell := s2.CellIDFromLatLng(query).Parent(locatorCellLevel)

	var candidates []int
	for _, cell := range cellAndNeighbors(queryCell) {
		candidates = append(candidates, l.cellIndex[cell]...)
	}
	best, ok := l.closest(query, candidates)
	if !ok || best.DistanceKm > coveredKm {
		all := make([]int, len(l.units))
		for i := range l.units {
			all[i] = i
		}
		best, _ = l.closest(query, all)
	}
	best.Unit = cloneUnit(best.Unit)
	return best, true
}

// coveredKm is the radius around a query that its cell neighbourhood is
// guaranteed to contain.
var coveredKm = s2.MinWidthMetric.Value(locatorCellLevel) * earthRadiusKm

// closest returns the best of the indexed units at idxs, ordered by
// distance, then name, then id.
func (l *Locator) closest(query s2.LatLng, idxs []int) (Match, bool) {
	var (
		best  Match
		found bool
	)
	for _, idx := range idxs {
		u := l.units[idx]
		m := Match{Unit: u, DistanceKm: float64(query.Distance(latLng(u.Location))) * earthRadiusKm}
		if !found || better(m, best) {
			best, found = m, true
		}
	}
	return best, found
}

func better(a, b Match) bool {
	if a.DistanceKm != b.DistanceKm {
		return a.DistanceKm < b.DistanceKm
	}
	if a.Unit.Name != b.Unit.Name {
		return a.Unit.Name < b.Unit.Name
	}
	return a.Unit.ID < b.Unit.ID
}
