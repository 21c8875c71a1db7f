package models

import (
	"database/sql"
	"time"
)

// Match types for entity resolution, in strict priority order.
const (
	MatchExact     = "exact"     // exact BBL hit
	MatchRegistry  = "registry"  // base-BBL building-level hit
	MatchAddress   = "address"   // normalized address|zip composite key
	MatchUnmatched = "unmatched" // explicit no-match, kept for auditing
)

// ConfidenceFor returns the match confidence for a match type. Confidence is
// a pure function of the tier and is never assigned independently.
func ConfidenceFor(matchType string) float64 {
	switch matchType {
	case MatchExact:
		return 1.0
	case MatchRegistry:
		return 0.9
	case MatchAddress:
		return 0.7
	default:
		return 0
	}
}

// ResolutionRecord links one raw source record to at most one canonical
// property. Unmatched records are persisted with a null property id.
type ResolutionRecord struct {
	ID              int64         `db:"id" json:"id"`
	SourceSystem    string        `db:"source_system" json:"source_system"`
	SourceKey       string        `db:"source_key" json:"source_key"`
	PropertyID      sql.NullInt64 `db:"property_id" json:"property_id"`
	MatchType       string        `db:"match_type" json:"match_type"`
	MatchConfidence float64       `db:"match_confidence" json:"match_confidence"`
	ResolvedAt      time.Time     `db:"resolved_at" json:"resolved_at"`
}

// ResolutionStats is the per-source coverage metric surfaced to operators.
type ResolutionStats struct {
	SourceSystem string  `db:"source_system" json:"source_system"`
	Matched      int     `db:"matched" json:"matched"`
	Unmatched    int     `db:"unmatched" json:"unmatched"`
	MatchRate    float64 `db:"-" json:"match_rate"`
}
