package geoindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCellAssignment(t *testing.T) {
	// Two points ~14m apart share or neighbor a cell; either way both fall
	// inside any window scan around the other.
	a := cellFor(40.7128, -74.0060)
	b := cellFor(40.7129, -74.0061)

	assert.LessOrEqual(t, abs(a.latCell-b.latCell), 1)
	assert.LessOrEqual(t, abs(a.lonCell-b.lonCell), 1)

	// Negative longitudes floor toward negative infinity, not zero
	assert.Equal(t, -74006, cellFor(0, -74.006).lonCell)
}

func TestDistancePlanar(t *testing.T) {
	// One thousandth of a degree of latitude is ~111m
	d := Distance(40.7128, -74.0060, 40.7138, -74.0060)
	assert.InDelta(t, 111.0, d, 1.0)

	// Longitude shrinks by cos(lat) at NYC's latitude
	d = Distance(40.7128, -74.0060, 40.7128, -74.0050)
	assert.InDelta(t, 84.0, d, 2.0)

	assert.Zero(t, Distance(40.7, -74.0, 40.7, -74.0))
}

func TestNearestOrdersByDistance(t *testing.T) {
	idx := NewIndex([]Point{
		{ID: "far", Lat: 40.7160, Lon: -74.0060},
		{ID: "near", Lat: 40.7130, Lon: -74.0060},
		{ID: "mid", Lat: 40.7145, Lon: -74.0060},
	})

	matches := idx.Nearest(40.7128, -74.0060, TransitWindow, 0)

	require.Len(t, matches, 3)
	assert.Equal(t, "near", matches[0].Point.ID)
	assert.Equal(t, "mid", matches[1].Point.ID)
	assert.Equal(t, "far", matches[2].Point.ID)
	assert.True(t, matches[0].DistanceM <= matches[1].DistanceM)
}

func TestNearestRespectsWindow(t *testing.T) {
	// ~2km north, well outside a ±5-cell (~550m) window
	idx := NewIndex([]Point{{ID: "distant", Lat: 40.7310, Lon: -74.0060}})

	assert.Empty(t, idx.Nearest(40.7128, -74.0060, TransitWindow, 0))

	// The wider amenity window still misses it
	assert.Empty(t, idx.Nearest(40.7128, -74.0060, AmenityWindow, 0))
}

func TestNearestMaxResults(t *testing.T) {
	points := make([]Point, 10)
	for i := range points {
		points[i] = Point{ID: string(rune('a' + i)), Lat: 40.7128 + float64(i)*0.0001, Lon: -74.0060}
	}
	idx := NewIndex(points)

	matches := idx.Nearest(40.7128, -74.0060, TransitWindow, 3)
	assert.Len(t, matches, 3)
}

func TestCountByCategory(t *testing.T) {
	idx := NewIndex([]Point{
		{ID: "p1", Category: "park", Lat: 40.7128, Lon: -74.0060},
		{ID: "p2", Category: "park", Lat: 40.7132, Lon: -74.0062},
		{ID: "s1", Category: "school", Lat: 40.7130, Lon: -74.0055},
		{ID: "h1", Category: "hospital", Lat: 40.9000, Lon: -74.0060}, // out of window
	})

	counts := idx.CountByCategory(40.7128, -74.0060, AmenityWindow)

	assert.Equal(t, 2, counts["park"])
	assert.Equal(t, 1, counts["school"])
	assert.Zero(t, counts["hospital"])
}

func TestEmptyIndex(t *testing.T) {
	idx := NewIndex(nil)
	assert.Zero(t, idx.Size())
	assert.Empty(t, idx.Nearest(40.7128, -74.0060, AmenityWindow, 0))
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
