package signals

import (
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsignal/internal/models"
)

func TestBuildingHealthScore(t *testing.T) {
	tests := []struct {
		name       string
		violations int
		complaints int
		recent311  int
		want       float64
	}{
		{"clean building", 0, 0, 0, 100},
		{"typical", 2, 1, 0, 87},
		{"mixed", 3, 2, 4, 71},
		{"floored at zero", 20, 10, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildingHealthScore(tt.violations, tt.complaints, tt.recent311))
		})
	}
}

func TestTransitScoreSteps(t *testing.T) {
	dist := func(d float64) *float64 { return &d }

	tests := []struct {
		name    string
		nearest *float64
		want    float64
	}{
		{"no station in window", nil, 0},
		{"150m", dist(150), 100},
		{"350m", dist(350), 90},
		{"550m", dist(550), 75},
		{"750m", dist(750), 60},
		{"950m", dist(950), 45},
		{"1200m linear decay", dist(1200), 41},
		{"far enough to floor", dist(4000), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, TransitScore(tt.nearest))
		})
	}
}

func TestTransitScoreBoundaries(t *testing.T) {
	// Thresholds are half-open: exactly 200m falls into the next band down.
	edge := func(d float64) *float64 { return &d }
	assert.Equal(t, 90.0, TransitScore(edge(200)))
	assert.Equal(t, 75.0, TransitScore(edge(400)))
	assert.Equal(t, 45.0, TransitScore(edge(800)))
}

func TestAmenityScore(t *testing.T) {
	assert.Equal(t, 0.0, AmenityScore(0, 0, 0))
	assert.Equal(t, 33.0, AmenityScore(1, 1, 1))
	assert.Equal(t, 100.0, AmenityScore(10, 10, 10), "capped at 100")
}

func TestFloodHighRisk(t *testing.T) {
	assert.True(t, FloodHighRisk("AE"))
	assert.True(t, FloodHighRisk("VE"))
	assert.True(t, FloodHighRisk(" a "))
	assert.False(t, FloodHighRisk("X"))
	assert.False(t, FloodHighRisk("0.2 PCT ANNUAL CHANCE"))
	assert.False(t, FloodHighRisk(""))
}

func TestOpportunityBreakdownSumsToTotal(t *testing.T) {
	now := time.Now()
	in := Inputs{
		Property: models.Property{
			AssessedValue: sql.NullFloat64{Float64: 500000, Valid: true},
			BldgArea:      sql.NullFloat64{Float64: 1000, Valid: true},
		},
		ZipMedianValuePerSqft: 1000,
		PermitsLast12Mo:       3,
		PermitsPrior12:        1,
		NewestRecordAt:        now.AddDate(0, -1, 0),
		HasPermitsData:        true,
		HasValueData:          true,
	}

	b := OpportunityScore(in, now)
	assert.InDelta(t, b.ValuePts+b.TrendPts+b.RecencyPts, b.Total(), 1e-9)
	assert.Equal(t, 40.0, b.ValuePts, "half-of-median pricing earns full value points")
	assert.Greater(t, b.TrendPts, 15.0, "growing permits score above the flat midpoint")
	assert.Greater(t, b.RecencyPts, 25.0, "month-old data is nearly fresh")
}

func TestOpportunityScoreMissingInputs(t *testing.T) {
	b := OpportunityScore(Inputs{}, time.Now())
	assert.Zero(t, b.ValuePts)
	assert.Zero(t, b.TrendPts)
	assert.Zero(t, b.RecencyPts)
}

func TestOpportunityScoreStaleData(t *testing.T) {
	now := time.Now()
	b := OpportunityScore(Inputs{NewestRecordAt: now.AddDate(-2, 0, 0)}, now)
	assert.Zero(t, b.RecencyPts, "data older than a year earns no recency points")
}

func TestCompletenessAndConfidence(t *testing.T) {
	full := Inputs{
		HasViolationsData: true,
		HasPermitsData:    true,
		Has311Data:        true,
		HasTransitData:    true,
		HasAmenityData:    true,
		HasFloodData:      true,
		HasValueData:      true,
	}
	assert.Equal(t, 1.0, Completeness(full))
	assert.Equal(t, models.ConfidenceHigh, ConfidenceTier(Completeness(full)))

	partial := Inputs{HasViolationsData: true, HasPermitsData: true, Has311Data: true}
	assert.InDelta(t, 3.0/7.0, Completeness(partial), 1e-9)
	assert.Equal(t, models.ConfidenceMedium, ConfidenceTier(Completeness(partial)))

	assert.Equal(t, models.ConfidenceLow, ConfidenceTier(Completeness(Inputs{})))
}

func TestComputeEndToEnd(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	nearest := 340.0

	in := Inputs{
		Property: models.Property{
			ID:  42,
			BBL: sql.NullString{String: "1001230001", Valid: true},
		},
		OpenViolations:    2,
		OpenComplaints:    1,
		Recent311:         0,
		NearestSubwayM:    &nearest,
		SubwayLines:       []string{"A", "C"},
		ParksNearby:       2,
		SchoolsNearby:     1,
		HospitalsNearby:   0,
		FloodZone:         "X",
		HasViolationsData: true,
		Has311Data:        true,
		HasTransitData:    true,
		HasAmenityData:    true,
		HasFloodData:      true,
	}

	s := Compute(in, now)

	assert.Equal(t, int64(42), s.PropertyID)
	assert.Equal(t, 87.0, s.BuildingHealthScore)
	assert.Equal(t, 90.0, s.TransitScore)
	assert.Equal(t, 28.0, s.AmenityScore)

	require.True(t, s.NearestSubwayM.Valid)
	assert.Equal(t, 340.0, s.NearestSubwayM.Float64)
	assert.Equal(t, "A,C", s.SubwayLines.String)

	require.True(t, s.FloodZone.Valid)
	assert.Equal(t, "X", s.FloodZone.String)
	assert.False(t, s.FloodHighRisk)

	assert.InDelta(t, s.OpportunityValuePts+s.OpportunityTrendPts+s.OpportunityRecencyPts, s.OpportunityScore, 1e-9)
	assert.Equal(t, now, s.ComputedAt)
	assert.Equal(t, models.ConfidenceMedium, s.SignalConfidence)
}

func TestComputeScoresAreBounded(t *testing.T) {
	nearest := 50000.0
	in := Inputs{
		OpenViolations:  100,
		OpenComplaints:  100,
		Recent311:       100,
		NearestSubwayM:  &nearest,
		ParksNearby:     100,
		SchoolsNearby:   100,
		HospitalsNearby: 100,
	}
	s := Compute(in, time.Now())

	for name, score := range map[string]float64{
		"health":      s.BuildingHealthScore,
		"transit":     s.TransitScore,
		"amenity":     s.AmenityScore,
		"opportunity": s.OpportunityScore,
	} {
		assert.GreaterOrEqual(t, score, 0.0, name)
		assert.LessOrEqual(t, score, 100.0, name)
	}
}
