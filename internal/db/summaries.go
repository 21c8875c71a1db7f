package db

import (
	"fmt"

	"propsignal/internal/models"
)

// UpsertSignalSummary replaces the signal summary for one property. The
// whole row is recomputed each batch run, so every column is overwritten.
func (db *DB) UpsertSignalSummary(s *models.SignalSummary) error {
	query := `
		INSERT INTO property_signal_summaries (
			property_id, open_violations, open_complaints, recent_311, permits_last_12mo,
			nearest_subway_m, subway_lines, parks_nearby, schools_nearby, hospitals_nearby,
			flood_zone, flood_high_risk,
			building_health_score, transit_score, amenity_score,
			opportunity_score, opportunity_value_pts, opportunity_trend_pts, opportunity_recency_pts,
			data_completeness, signal_confidence, computed_at
		) VALUES (
			:property_id, :open_violations, :open_complaints, :recent_311, :permits_last_12mo,
			:nearest_subway_m, :subway_lines, :parks_nearby, :schools_nearby, :hospitals_nearby,
			:flood_zone, :flood_high_risk,
			:building_health_score, :transit_score, :amenity_score,
			:opportunity_score, :opportunity_value_pts, :opportunity_trend_pts, :opportunity_recency_pts,
			:data_completeness, :signal_confidence, :computed_at
		)
		ON CONFLICT(property_id) DO UPDATE SET
			open_violations = excluded.open_violations,
			open_complaints = excluded.open_complaints,
			recent_311 = excluded.recent_311,
			permits_last_12mo = excluded.permits_last_12mo,
			nearest_subway_m = excluded.nearest_subway_m,
			subway_lines = excluded.subway_lines,
			parks_nearby = excluded.parks_nearby,
			schools_nearby = excluded.schools_nearby,
			hospitals_nearby = excluded.hospitals_nearby,
			flood_zone = excluded.flood_zone,
			flood_high_risk = excluded.flood_high_risk,
			building_health_score = excluded.building_health_score,
			transit_score = excluded.transit_score,
			amenity_score = excluded.amenity_score,
			opportunity_score = excluded.opportunity_score,
			opportunity_value_pts = excluded.opportunity_value_pts,
			opportunity_trend_pts = excluded.opportunity_trend_pts,
			opportunity_recency_pts = excluded.opportunity_recency_pts,
			data_completeness = excluded.data_completeness,
			signal_confidence = excluded.signal_confidence,
			computed_at = excluded.computed_at
	`

	_, err := db.NamedExec(query, s)
	if err != nil {
		return fmt.Errorf("failed to upsert summary for property %d: %w", s.PropertyID, err)
	}
	return nil
}

// GetSignalSummary returns the signal summary for one property, or nil when
// the property has not been scored yet.
func (db *DB) GetSignalSummary(propertyID int64) (*models.SignalSummary, error) {
	var s models.SignalSummary
	err := db.Get(&s, `SELECT * FROM property_signal_summaries WHERE property_id = ?`, propertyID)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// GetSummaryCount returns the number of scored properties.
func (db *DB) GetSummaryCount() (int, error) {
	var count int
	err := db.Get(&count, `SELECT COUNT(*) FROM property_signal_summaries`)
	return count, err
}
