package fetch

import (
	"database/sql"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Socrata timestamps are ISO8601 without a zone ("floating").
var timeLayouts = []string{
	"2006-01-02T15:04:05.000",
	"2006-01-02T15:04:05",
	"2006-01-02",
	time.RFC3339,
}

// strField returns the first non-empty string value among keys.
func strField(row map[string]any, keys ...string) string {
	for _, k := range keys {
		if v, ok := row[k]; ok {
			if s, ok := v.(string); ok {
				s = strings.TrimSpace(s)
				if s != "" {
					return s
				}
			}
		}
	}
	return ""
}

// floatField parses a numeric field that upstream may send as either a JSON
// number or a quoted string.
func floatField(row map[string]any, keys ...string) (float64, bool) {
	for _, k := range keys {
		switch v := row[k].(type) {
		case float64:
			return v, true
		case string:
			if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
				return f, true
			}
		}
	}
	return 0, false
}

// intField parses an integer field with the same leniency as floatField.
func intField(row map[string]any, keys ...string) (int64, bool) {
	if f, ok := floatField(row, keys...); ok {
		return int64(f), true
	}
	return 0, false
}

// timeField parses a timestamp field across the layouts Socrata emits.
func timeField(row map[string]any, keys ...string) (time.Time, bool) {
	s := strField(row, keys...)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// pointField extracts lat/lon from a GeoJSON-style point column, or from
// explicit latitude/longitude fields.
func pointField(row map[string]any) (lat, lon float64, ok bool) {
	if geom, found := row["the_geom"].(map[string]any); found {
		if coords, found := geom["coordinates"].([]any); found && len(coords) == 2 {
			lonV, okLon := coords[0].(float64)
			latV, okLat := coords[1].(float64)
			if okLon && okLat {
				return latV, lonV, true
			}
		}
	}

	latV, okLat := floatField(row, "latitude", "lat")
	lonV, okLon := floatField(row, "longitude", "lon", "lng")
	if okLat && okLon {
		return latV, lonV, true
	}
	return 0, 0, false
}

// composeBBL builds a 10-digit BBL from borough, block and lot fields when
// the feed does not carry one directly.
func composeBBL(row map[string]any) string {
	if bbl := strField(row, "bbl"); bbl != "" {
		return bbl
	}

	boro, okB := intField(row, "borough_code", "boroid", "boro")
	block, okBl := intField(row, "block")
	lot, okL := intField(row, "lot")
	if !okB || !okBl || !okL {
		// Borough may arrive as a name
		boroName := strings.ToUpper(strField(row, "borough"))
		codes := map[string]int64{
			"MANHATTAN": 1, "BRONX": 2, "BROOKLYN": 3, "QUEENS": 4, "STATEN ISLAND": 5,
		}
		if code, found := codes[boroName]; found && okBl && okL {
			boro, okB = code, true
		}
	}
	if !okB || !okBl || !okL {
		return ""
	}
	return fmt.Sprintf("%d%05d%04d", boro, block, lot)
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t time.Time, ok bool) sql.NullTime {
	return sql.NullTime{Time: t, Valid: ok}
}

func nullFloat(f float64, ok bool) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: ok}
}

func nullInt(i int64, ok bool) sql.NullInt64 {
	return sql.NullInt64{Int64: i, Valid: ok}
}
