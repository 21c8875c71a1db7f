package models

import (
	"database/sql"
	"time"
)

// Signal confidence tiers derived from data completeness.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// SignalSummary holds the derived per-property metrics. One row per
// canonical property, recomputed wholesale each batch run.
type SignalSummary struct {
	PropertyID      int64 `db:"property_id" json:"property_id"`
	OpenViolations  int   `db:"open_violations" json:"open_violations"`
	OpenComplaints  int   `db:"open_complaints" json:"open_complaints"`
	Recent311       int   `db:"recent_311" json:"recent_311"`
	PermitsLast12Mo int   `db:"permits_last_12mo" json:"permits_last_12mo"`

	NearestSubwayM sql.NullFloat64 `db:"nearest_subway_m" json:"nearest_subway_m"`
	SubwayLines    sql.NullString  `db:"subway_lines" json:"subway_lines"` // comma separated

	ParksNearby     int `db:"parks_nearby" json:"parks_nearby"`
	SchoolsNearby   int `db:"schools_nearby" json:"schools_nearby"`
	HospitalsNearby int `db:"hospitals_nearby" json:"hospitals_nearby"`

	FloodZone     sql.NullString `db:"flood_zone" json:"flood_zone"`
	FloodHighRisk bool           `db:"flood_high_risk" json:"flood_high_risk"`

	BuildingHealthScore float64 `db:"building_health_score" json:"building_health_score"`
	TransitScore        float64 `db:"transit_score" json:"transit_score"`
	AmenityScore        float64 `db:"amenity_score" json:"amenity_score"`

	// Opportunity is surfaced as a visible 40/30/30 breakdown, never an
	// opaque composite.
	OpportunityScore      float64 `db:"opportunity_score" json:"opportunity_score"`
	OpportunityValuePts   float64 `db:"opportunity_value_pts" json:"opportunity_value_pts"`
	OpportunityTrendPts   float64 `db:"opportunity_trend_pts" json:"opportunity_trend_pts"`
	OpportunityRecencyPts float64 `db:"opportunity_recency_pts" json:"opportunity_recency_pts"`

	DataCompleteness float64   `db:"data_completeness" json:"data_completeness"`
	SignalConfidence string    `db:"signal_confidence" json:"signal_confidence"`
	ComputedAt       time.Time `db:"computed_at" json:"computed_at"`
}

// PipelineRun records one orchestrator execution for auditability.
type PipelineRun struct {
	ID         string         `db:"id" json:"id"`
	Stage      string         `db:"stage" json:"stage"`
	StartedAt  time.Time      `db:"started_at" json:"started_at"`
	FinishedAt sql.NullTime   `db:"finished_at" json:"finished_at"`
	Fetched    int            `db:"fetched" json:"fetched"`
	Resolved   int            `db:"resolved" json:"resolved"`
	Computed   int            `db:"computed" json:"computed"`
	Failed     int            `db:"failed" json:"failed"`
	Error      sql.NullString `db:"error" json:"error"`
}
