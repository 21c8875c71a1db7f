// Package geoindex provides grid-bucketed nearest-neighbor lookups over
// citywide point sets (subway stations, amenities, flood zones).
package geoindex

import (
	"math"
	"sort"
)

// Grid cells are floor(lat*1000) x floor(lon*1000), roughly 111m tall at
// city scale. The window scan bounds nearest-neighbor search to a small
// block of cells instead of a full table scan.
const cellsPerDegree = 1000

// Search windows in cells. Transit needs finer precision than amenities,
// hence the asymmetry.
const (
	TransitWindow = 5  // ~550m
	AmenityWindow = 10 // ~1100m
)

// Point is an indexed location.
type Point struct {
	ID       string
	Name     string
	Category string
	Lines    string
	Lat      float64
	Lon      float64
}

// Match is a candidate point with its distance from the query.
type Match struct {
	Point     Point
	DistanceM float64
}

type cell struct {
	latCell int
	lonCell int
}

// Index buckets points into grid cells for bounded lookups.
type Index struct {
	cells map[cell][]Point
	size  int
}

// NewIndex builds an index over the given points.
func NewIndex(points []Point) *Index {
	idx := &Index{cells: make(map[cell][]Point, len(points))}
	for _, p := range points {
		c := cellFor(p.Lat, p.Lon)
		idx.cells[c] = append(idx.cells[c], p)
		idx.size++
	}
	return idx
}

// Size returns the number of indexed points.
func (idx *Index) Size() int {
	return idx.size
}

func cellFor(lat, lon float64) cell {
	return cell{
		latCell: int(math.Floor(lat * cellsPerDegree)),
		lonCell: int(math.Floor(lon * cellsPerDegree)),
	}
}

// Distance approximates meters between two points with a planar
// equirectangular projection. Valid at city scale only.
func Distance(lat1, lon1, lat2, lon2 float64) float64 {
	dLat := (lat2 - lat1) * 111000
	dLon := (lon2 - lon1) * 111000 * math.Cos(lat1*math.Pi/180)
	return math.Sqrt(dLat*dLat + dLon*dLon)
}

// Nearest returns up to maxResults points within a ±window cell block of
// the query, closest first. An empty result means nothing lies inside the
// window, which callers treat as a definitive "none nearby".
func (idx *Index) Nearest(lat, lon float64, window, maxResults int) []Match {
	center := cellFor(lat, lon)

	var matches []Match
	for dLat := -window; dLat <= window; dLat++ {
		for dLon := -window; dLon <= window; dLon++ {
			c := cell{latCell: center.latCell + dLat, lonCell: center.lonCell + dLon}
			for _, p := range idx.cells[c] {
				matches = append(matches, Match{
					Point:     p,
					DistanceM: Distance(lat, lon, p.Lat, p.Lon),
				})
			}
		}
	}

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].DistanceM < matches[j].DistanceM
	})

	if maxResults > 0 && len(matches) > maxResults {
		matches = matches[:maxResults]
	}
	return matches
}

// CountByCategory tallies points within the window by category.
func (idx *Index) CountByCategory(lat, lon float64, window int) map[string]int {
	counts := make(map[string]int)
	for _, m := range idx.Nearest(lat, lon, window, 0) {
		counts[m.Point.Category]++
	}
	return counts
}
