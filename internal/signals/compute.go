// Package signals derives per-property scores from resolved and proximate
// open data. All scoring is deterministic arithmetic; no randomness.
package signals

import (
	"database/sql"
	"math"
	"strings"
	"time"

	"propsignal/internal/models"
)

// Inputs carries everything the computer needs for one property. The
// gatherer assembles it from staging, resolution and proximity data.
type Inputs struct {
	Property models.Property

	OpenViolations  int
	OpenComplaints  int
	Recent311       int
	PermitsLast12Mo int
	PermitsPrior12  int

	// NearestSubwayM is nil when no station falls in the transit window,
	// which scores 0, not "unknown".
	NearestSubwayM *float64
	SubwayLines    []string

	ParksNearby     int
	SchoolsNearby   int
	HospitalsNearby int

	FloodZone string

	// ZipMedianValuePerSqft is the market comparison base; 0 when the zip
	// has no assessable peers.
	ZipMedianValuePerSqft float64

	// NewestRecordAt is the timestamp of the freshest contributing record.
	NewestRecordAt time.Time

	// Source-presence flags feed data completeness.
	HasViolationsData bool
	HasPermitsData    bool
	Has311Data        bool
	HasTransitData    bool
	HasAmenityData    bool
	HasFloodData      bool
	HasValueData      bool
}

// BuildingHealthScore is the 311-inclusive clamped formula:
// 100 - 5*openViolations - 3*openComplaints - 2*recent311, floored at 0.
func BuildingHealthScore(openViolations, openComplaints, recent311 int) float64 {
	score := 100.0 - 5.0*float64(openViolations) - 3.0*float64(openComplaints) - 2.0*float64(recent311)
	return math.Max(0, score)
}

// TransitScore is a step function of nearest-subway distance with linear
// decay past 1000m. A nil distance means no station in the grid window and
// scores 0.
func TransitScore(nearestM *float64) float64 {
	if nearestM == nil {
		return 0
	}
	d := *nearestM
	switch {
	case d < 200:
		return 100
	case d < 400:
		return 90
	case d < 600:
		return 75
	case d < 800:
		return 60
	case d < 1000:
		return 45
	default:
		return math.Max(0, 45-(d-1000)/50)
	}
}

// AmenityScore weighs nearby amenity counts, hospitals highest, capped at
// 100.
func AmenityScore(parks, schools, hospitals int) float64 {
	return math.Min(100, 10*float64(parks)+8*float64(schools)+15*float64(hospitals))
}

// FloodHighRisk reports whether a FEMA zone code marks the high-risk A/V
// series.
func FloodHighRisk(zoneCode string) bool {
	z := strings.ToUpper(strings.TrimSpace(zoneCode))
	return strings.HasPrefix(z, "A") || strings.HasPrefix(z, "V")
}

// OpportunityBreakdown is the user-facing 40/30/30 split. The total is
// always the sum of its parts.
type OpportunityBreakdown struct {
	ValuePts   float64 // vs. zip median $/sqft, 40 max
	TrendPts   float64 // permit trend, 30 max
	RecencyPts float64 // data freshness, 30 max
}

// Total sums the breakdown.
func (b OpportunityBreakdown) Total() float64 {
	return b.ValuePts + b.TrendPts + b.RecencyPts
}

// OpportunityScore computes the 40/30/30 breakdown. The value term rewards
// pricing below the zip median; the trend term rewards growing permit
// activity; the recency term decays over a year of staleness.
func OpportunityScore(in Inputs, now time.Time) OpportunityBreakdown {
	var b OpportunityBreakdown

	if in.HasValueData && in.ZipMedianValuePerSqft > 0 &&
		in.Property.AssessedValue.Valid && in.Property.BldgArea.Valid && in.Property.BldgArea.Float64 > 0 {
		vpsf := in.Property.AssessedValue.Float64 / in.Property.BldgArea.Float64
		ratio := vpsf / in.ZipMedianValuePerSqft
		// ratio 0.5 -> full points, 1.0 (at median) -> half, 1.5+ -> none
		b.ValuePts = 40 * clamp01(1.5-ratio)
	}

	if in.HasPermitsData {
		prior := float64(in.PermitsPrior12)
		if prior < 1 {
			prior = 1
		}
		growth := (float64(in.PermitsLast12Mo) - float64(in.PermitsPrior12)) / prior
		b.TrendPts = 30 * clamp01(0.5+growth/2)
	}

	if !in.NewestRecordAt.IsZero() {
		ageDays := now.Sub(in.NewestRecordAt).Hours() / 24
		b.RecencyPts = 30 * clamp01(1-ageDays/365)
	}

	return b
}

// Completeness is the fraction of contributing sources present for a
// property.
func Completeness(in Inputs) float64 {
	flags := []bool{
		in.HasViolationsData,
		in.HasPermitsData,
		in.Has311Data,
		in.HasTransitData,
		in.HasAmenityData,
		in.HasFloodData,
		in.HasValueData,
	}
	present := 0
	for _, f := range flags {
		if f {
			present++
		}
	}
	return float64(present) / float64(len(flags))
}

// ConfidenceTier maps completeness to the operator-facing tier.
func ConfidenceTier(completeness float64) string {
	switch {
	case completeness >= 0.75:
		return models.ConfidenceHigh
	case completeness >= 0.4:
		return models.ConfidenceMedium
	default:
		return models.ConfidenceLow
	}
}

// Compute derives the full signal summary for one property.
func Compute(in Inputs, now time.Time) models.SignalSummary {
	breakdown := OpportunityScore(in, now)
	completeness := Completeness(in)

	summary := models.SignalSummary{
		PropertyID:      in.Property.ID,
		OpenViolations:  in.OpenViolations,
		OpenComplaints:  in.OpenComplaints,
		Recent311:       in.Recent311,
		PermitsLast12Mo: in.PermitsLast12Mo,

		ParksNearby:     in.ParksNearby,
		SchoolsNearby:   in.SchoolsNearby,
		HospitalsNearby: in.HospitalsNearby,

		BuildingHealthScore: BuildingHealthScore(in.OpenViolations, in.OpenComplaints, in.Recent311),
		TransitScore:        TransitScore(in.NearestSubwayM),
		AmenityScore:        AmenityScore(in.ParksNearby, in.SchoolsNearby, in.HospitalsNearby),

		OpportunityScore:      breakdown.Total(),
		OpportunityValuePts:   breakdown.ValuePts,
		OpportunityTrendPts:   breakdown.TrendPts,
		OpportunityRecencyPts: breakdown.RecencyPts,

		DataCompleteness: completeness,
		SignalConfidence: ConfidenceTier(completeness),
		ComputedAt:       now,
	}

	if in.NearestSubwayM != nil {
		summary.NearestSubwayM = sql.NullFloat64{Float64: *in.NearestSubwayM, Valid: true}
		if len(in.SubwayLines) > 0 {
			summary.SubwayLines = sql.NullString{String: strings.Join(in.SubwayLines, ","), Valid: true}
		}
	}
	if in.FloodZone != "" {
		summary.FloodZone = sql.NullString{String: in.FloodZone, Valid: true}
		summary.FloodHighRisk = FloodHighRisk(in.FloodZone)
	}

	return summary
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
