package resolve

import (
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propsignal/internal/models"
)

func testIndex() *PropertyIndex {
	return BuildIndex([]models.Property{
		{
			ID:      1,
			BBL:     sql.NullString{String: "1001230001", Valid: true},
			Address: sql.NullString{String: "123 Main Street", Valid: true},
			ZipCode: sql.NullString{String: "10001", Valid: true},
		},
		{
			ID:      2,
			BBL:     sql.NullString{String: "1001237502", Valid: true},
			BaseBBL: sql.NullString{String: "1001237501", Valid: true},
		},
		{
			ID:      3,
			BBL:     sql.NullString{String: "3004560001", Valid: true},
			Address: sql.NullString{String: "88 Ocean Avenue", Valid: true},
			ZipCode: sql.NullString{String: "11226", Valid: true},
		},
	})
}

func TestResolveExactBBL(t *testing.T) {
	r := NewResolver(testIndex())

	rec := r.Resolve(RawRef{SourceSystem: "hpd_violations", SourceKey: "v1", BBL: "1001230001"})

	require.True(t, rec.PropertyID.Valid)
	assert.Equal(t, int64(1), rec.PropertyID.Int64)
	assert.Equal(t, models.MatchExact, rec.MatchType)
	assert.Equal(t, 1.0, rec.MatchConfidence)
}

func TestResolveRegistryTier(t *testing.T) {
	r := NewResolver(testIndex())

	// Unit record carrying only the building's base BBL
	rec := r.Resolve(RawRef{SourceKey: "c1", BaseBBL: "1001237501"})

	require.True(t, rec.PropertyID.Valid)
	assert.Equal(t, int64(2), rec.PropertyID.Int64)
	assert.Equal(t, models.MatchRegistry, rec.MatchType)
	assert.Equal(t, 0.9, rec.MatchConfidence)
}

func TestResolveAddressTier(t *testing.T) {
	r := NewResolver(testIndex())

	// No BBL at all; variant spelling of the indexed address
	rec := r.Resolve(RawRef{SourceKey: "a1", Address: "88 OCEAN AVE.", ZipCode: "11226"})

	require.True(t, rec.PropertyID.Valid)
	assert.Equal(t, int64(3), rec.PropertyID.Int64)
	assert.Equal(t, models.MatchAddress, rec.MatchType)
	assert.Equal(t, 0.7, rec.MatchConfidence)
}

func TestResolveUnmatched(t *testing.T) {
	r := NewResolver(testIndex())

	rec := r.Resolve(RawRef{SourceKey: "x1", BBL: "9999999999", Address: "1 Nowhere Street", ZipCode: "00000"})

	assert.False(t, rec.PropertyID.Valid)
	assert.Equal(t, models.MatchUnmatched, rec.MatchType)
	assert.Equal(t, 0.0, rec.MatchConfidence)
}

func TestResolveTierPriority(t *testing.T) {
	r := NewResolver(testIndex())

	// Carries an exact BBL and a matchable address; the exact tier must win.
	rec := r.Resolve(RawRef{
		SourceKey: "p1",
		BBL:       "1001230001",
		Address:   "88 Ocean Avenue",
		ZipCode:   "11226",
	})

	assert.Equal(t, models.MatchExact, rec.MatchType)
	assert.Equal(t, int64(1), rec.PropertyID.Int64)
}

func TestConfidenceFollowsTier(t *testing.T) {
	assert.Equal(t, 1.0, models.ConfidenceFor(models.MatchExact))
	assert.Equal(t, 0.9, models.ConfidenceFor(models.MatchRegistry))
	assert.Equal(t, 0.7, models.ConfidenceFor(models.MatchAddress))
	assert.Equal(t, 0.0, models.ConfidenceFor(models.MatchUnmatched))
}

func TestResolveAllStats(t *testing.T) {
	r := NewResolver(testIndex())

	refs := []RawRef{
		{SourceKey: "1", BBL: "1001230001"},
		{SourceKey: "2", BBL: "3004560001"},
		{SourceKey: "3", BBL: "5555555555"},
		{SourceKey: "4"},
	}

	records, stats := r.ResolveAll("dob_permits", refs)

	require.Len(t, records, 4, "unmatched records are emitted, not dropped")
	assert.Equal(t, 2, stats.Matched)
	assert.Equal(t, 2, stats.Unmatched)
	assert.Equal(t, 0.5, stats.MatchRate())

	for _, rec := range records {
		assert.Equal(t, "dob_permits", rec.SourceSystem)
	}
}

func TestResolveAllIsDeterministic(t *testing.T) {
	r := NewResolver(testIndex())
	refs := []RawRef{
		{SourceKey: "1", BBL: "1001230001"},
		{SourceKey: "2", Address: "88 Ocean Ave", ZipCode: "11226"},
	}

	first, _ := r.ResolveAll("s", refs)
	second, _ := r.ResolveAll("s", refs)

	require.Len(t, second, len(first))
	for i := range first {
		assert.Equal(t, first[i].PropertyID, second[i].PropertyID)
		assert.Equal(t, first[i].MatchType, second[i].MatchType)
	}
}

func TestMatchRateEmpty(t *testing.T) {
	assert.Equal(t, 0.0, Stats{}.MatchRate())
}

func TestBuildIndexNormalizesAddresses(t *testing.T) {
	idx := BuildIndex([]models.Property{
		{
			ID:      7,
			BBL:     sql.NullString{String: "2000010001", Valid: true},
			Address: sql.NullString{String: "45 East First Street", Valid: true},
			ZipCode: sql.NullString{String: "10003", Valid: true},
		},
	})
	r := NewResolver(idx)

	rec := r.Resolve(RawRef{SourceKey: "k", Address: "45 E 1ST ST", ZipCode: "10003"})

	require.True(t, rec.PropertyID.Valid)
	assert.Equal(t, int64(7), rec.PropertyID.Int64)
	assert.Equal(t, models.MatchAddress, rec.MatchType)
}
